package catalog

import (
	"sort"

	"github.com/pkg/errors"
)

// DefaultStepMinutes is the duration assumed for a step without an estimate.
const DefaultStepMinutes = 10

type EnrollmentStatus string

const (
	EnrollmentActive   EnrollmentStatus = "active"
	EnrollmentInactive EnrollmentStatus = "inactive"
)

func ParseEnrollmentStatus(s string) (EnrollmentStatus, error) {
	switch st := EnrollmentStatus(s); st {
	case EnrollmentActive, EnrollmentInactive:
		return st, nil
	case "":
		return EnrollmentActive, nil
	}
	return "", errors.Errorf("unknown enrollment status %q", s)
}

func (s *EnrollmentStatus) UnmarshalText(text []byte) error {
	st, err := ParseEnrollmentStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

type (
	Class struct {
		ID        string `json:"id" yaml:"id"`
		Name      string `json:"name" yaml:"name"`
		TrainerID string `json:"trainer_id" yaml:"trainer_id"`
		IsActive  bool   `json:"is_active" yaml:"is_active"`
	}

	Module struct {
		ID          string `json:"id" yaml:"id"`
		ClassID     string `json:"class_id" yaml:"class_id"`
		Title       string `json:"title" yaml:"title"`
		Description string `json:"description,omitempty" yaml:"description"`
		OrderNumber int    `json:"order_number" yaml:"order_number"`
		IsActive    bool   `json:"is_active" yaml:"is_active"`
		Steps       []Step `json:"steps" yaml:"steps"`
	}

	Step struct {
		ID               string `json:"id" yaml:"id"`
		ModuleID         string `json:"module_id" yaml:"module_id"`
		Title            string `json:"title" yaml:"title"`
		OrderNumber      int    `json:"order_number" yaml:"order_number"`
		EstimatedMinutes int    `json:"estimated_minutes,omitempty" yaml:"estimated_minutes"`
	}

	Assignment struct {
		ID               string `json:"id" yaml:"id"`
		ClassID          string `json:"class_id" yaml:"class_id"`
		ModuleID         string `json:"module_id,omitempty" yaml:"module_id"`
		StepID           string `json:"step_id,omitempty" yaml:"step_id"`
		Title            string `json:"title" yaml:"title"`
		Instructions     string `json:"instructions" yaml:"instructions"`
		Rubric           string `json:"rubric,omitempty" yaml:"rubric"`
		AIGradingEnabled bool   `json:"ai_grading_enabled" yaml:"ai_grading_enabled"`
		IsActive         bool   `json:"is_active" yaml:"-"`
	}

	Enrollment struct {
		ClassID      string           `json:"class_id" yaml:"class_id"`
		StudentID    string           `json:"student_id" yaml:"student_id"`
		StudentName  string           `json:"student_name" yaml:"student_name"`
		StudentEmail string           `json:"student_email" yaml:"student_email"`
		Status       EnrollmentStatus `json:"status" yaml:"status"`
	}
)

// Minutes returns the step's estimate, falling back to DefaultStepMinutes.
func (s Step) Minutes() int {
	if s.EstimatedMinutes > 0 {
		return s.EstimatedMinutes
	}
	return DefaultStepMinutes
}

// Step returns the module's step with the given id.
func (m Module) Step(id string) (Step, bool) {
	for _, s := range m.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

func (e Enrollment) IsActive() bool {
	return e.Status == EnrollmentActive
}

// SortModules orders modules by order_number, and each module's steps likewise.
func SortModules(modules []Module) {
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].OrderNumber < modules[j].OrderNumber })
	for i := range modules {
		steps := modules[i].Steps
		sort.SliceStable(steps, func(a, b int) bool { return steps[a].OrderNumber < steps[b].OrderNumber })
	}
}

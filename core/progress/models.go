package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/catalog"
)

// StepStatus is the persisted state of a step; "not started" is the absence of a StepProgress.
type StepStatus string

const (
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
)

func ParseStepStatus(s string) (StepStatus, error) {
	switch st := StepStatus(s); st {
	case StatusInProgress, StatusCompleted:
		return st, nil
	}
	return "", errors.Errorf("unknown step status %q", s)
}

func (s *StepStatus) UnmarshalText(text []byte) error {
	st, err := ParseStepStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

type (
	Repository interface {
		// GetStepProgress fails with a *core.NotFoundError when the user never visited the step.
		GetStepProgress(ctx context.Context, userID, stepID string) (StepProgress, error)
		QueryStepProgress(ctx context.Context, userID string) ([]StepProgress, error)
		// CreateStepProgress fails with a *core.ConflictError when (user, step) already exists.
		CreateStepProgress(ctx context.Context, sp StepProgress) (StepProgress, error)
		UpdateStepProgress(ctx context.Context, sp StepProgress) (StepProgress, error)
	}

	StepProgress struct {
		ID          string     `json:"id"`
		UserID      string     `json:"user_id"`
		ModuleID    string     `json:"module_id"`
		StepID      string     `json:"step_id"`
		Status      StepStatus `json:"status"`
		StartedAt   time.Time  `json:"started_at"`
		CompletedAt *time.Time `json:"completed_at"`
		Notes       string     `json:"notes,omitempty"`
		UpdatedAt   time.Time  `json:"updated_at"`
	}

	ModuleProgress struct {
		ModuleID             string `json:"module_id"`
		TotalSteps           int    `json:"total_steps"`
		CompletedSteps       int    `json:"completed_steps"`
		InProgressSteps      int    `json:"in_progress_steps"`
		CompletionPercentage int    `json:"completion_percentage"`
		IsCompleted          bool   `json:"is_completed"`
		IsStarted            bool   `json:"is_started"`
	}

	OverallProgress struct {
		TotalModules      int `json:"total_modules"`
		CompletedModules  int `json:"completed_modules"`
		InProgressModules int `json:"in_progress_modules"`
		TotalSteps        int `json:"total_steps"`
		CompletedSteps    int `json:"completed_steps"`
		OverallPercentage int `json:"overall_percentage"`
	}

	NextStep struct {
		Module      catalog.Module `json:"module"`
		Step        catalog.Step   `json:"step"`
		IsFirstStep bool           `json:"is_first_step"`
	}

	TimeEstimate struct {
		Minutes   int     `json:"minutes"`
		Hours     float64 `json:"hours"`
		Formatted string  `json:"formatted"`
	}

	StepExport struct {
		ID       string        `json:"id"`
		Title    string        `json:"title"`
		Progress *StepProgress `json:"progress"`
	}

	ModuleExport struct {
		ID       string         `json:"id"`
		Title    string         `json:"title"`
		Progress ModuleProgress `json:"progress"`
		Steps    []StepExport   `json:"steps"`
	}

	Export struct {
		UserID        string          `json:"user_id"`
		Summary       OverallProgress `json:"summary"`
		TimeRemaining TimeEstimate    `json:"time_remaining"`
		Modules       []ModuleExport  `json:"modules"`
		ExportedAt    time.Time       `json:"exported_at"`
	}
)

func (sp StepProgress) IsCompleted() bool {
	return sp.Status == StatusCompleted
}

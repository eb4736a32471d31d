package catalog

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Catalog is a flat set of catalog records, as imported by Repository.Import.
type Catalog struct {
	Classes     []Class
	Modules     []Module
	Assignments []Assignment
	Enrollments []Enrollment
}

type (
	yamlFile struct {
		Classes []yamlClass `yaml:"classes"`
	}

	yamlClass struct {
		ID          string           `yaml:"id"`
		Name        string           `yaml:"name"`
		TrainerID   string           `yaml:"trainer_id"`
		IsActive    *bool            `yaml:"is_active"`
		Modules     []yamlModule     `yaml:"modules"`
		Assignments []yamlAssignment `yaml:"assignments"`
		Enrollments []Enrollment     `yaml:"enrollments"`
	}

	yamlModule struct {
		ID          string `yaml:"id"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		OrderNumber int    `yaml:"order_number"`
		IsActive    *bool  `yaml:"is_active"`
		Steps       []Step `yaml:"steps"`
	}

	yamlAssignment struct {
		Assignment `yaml:",inline"`
		IsActive   *bool `yaml:"is_active"`
	}
)

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// LoadYAML reads a catalog fixture where modules, assignments and enrollments are nested under their class.
// Records are active unless stated otherwise.
func LoadYAML(r io.Reader) (Catalog, error) {
	var f yamlFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Catalog{}, errors.Wrap(err, "decoding catalog")
	}

	var c Catalog
	seen := make(map[string]bool)
	checkID := func(kind, id string) error {
		if id == "" {
			return errors.Errorf("%s without id", kind)
		}
		key := kind + ":" + id
		if seen[key] {
			return errors.Errorf("duplicate %s id %q", kind, id)
		}
		seen[key] = true
		return nil
	}

	for _, yc := range f.Classes {
		if err := checkID("class", yc.ID); err != nil {
			return Catalog{}, err
		}
		c.Classes = append(c.Classes, Class{
			ID:        yc.ID,
			Name:      yc.Name,
			TrainerID: yc.TrainerID,
			IsActive:  boolOr(yc.IsActive, true),
		})

		for _, ym := range yc.Modules {
			if err := checkID("module", ym.ID); err != nil {
				return Catalog{}, err
			}
			m := Module{
				ID:          ym.ID,
				ClassID:     yc.ID,
				Title:       ym.Title,
				Description: ym.Description,
				OrderNumber: ym.OrderNumber,
				IsActive:    boolOr(ym.IsActive, true),
				Steps:       make([]Step, 0, len(ym.Steps)),
			}
			for _, s := range ym.Steps {
				if err := checkID("step", s.ID); err != nil {
					return Catalog{}, err
				}
				s.ModuleID = ym.ID
				m.Steps = append(m.Steps, s)
			}
			c.Modules = append(c.Modules, m)
		}

		for _, ya := range yc.Assignments {
			if err := checkID("assignment", ya.ID); err != nil {
				return Catalog{}, err
			}
			a := ya.Assignment
			a.ClassID = yc.ID
			a.IsActive = boolOr(ya.IsActive, true)
			c.Assignments = append(c.Assignments, a)
		}

		for _, e := range yc.Enrollments {
			if e.StudentID == "" {
				return Catalog{}, errors.Errorf("enrollment without student_id in class %q", yc.ID)
			}
			e.ClassID = yc.ID
			if e.Status == "" {
				e.Status = EnrollmentActive
			}
			c.Enrollments = append(c.Enrollments, e)
		}
	}

	SortModules(c.Modules)
	return c, nil
}

// ImportFile loads a YAML catalog file and imports it into repo.
func ImportFile(ctx context.Context, repo Repository, path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, errors.Wrap(err, "opening catalog file")
	}
	defer func() { _ = f.Close() }()

	c, err := LoadYAML(f)
	if err != nil {
		return Catalog{}, err
	}
	if err := repo.Import(ctx, c); err != nil {
		return Catalog{}, errors.Wrap(err, "importing catalog")
	}
	return c, nil
}

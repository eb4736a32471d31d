package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
)

type catalogRepository struct {
	db *catalogTables
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db.catalog}
}

// withSteps must be called with the lock held.
func (repo *catalogRepository) withSteps(m catalog.Module) catalog.Module {
	m.Steps = make([]catalog.Step, 0)
	for _, s := range repo.db.steps {
		if s.ModuleID == m.ID {
			m.Steps = append(m.Steps, s)
		}
	}
	sort.SliceStable(m.Steps, func(i, j int) bool {
		if m.Steps[i].OrderNumber == m.Steps[j].OrderNumber {
			return m.Steps[i].ID < m.Steps[j].ID
		}
		return m.Steps[i].OrderNumber < m.Steps[j].OrderNumber
	})
	return m
}

// activeModules must be called with the lock held.
func (repo *catalogRepository) activeModules(classIDs map[string]bool) []catalog.Module {
	modules := make([]catalog.Module, 0)
	for _, m := range repo.db.modules {
		if m.IsActive && classIDs[m.ClassID] {
			modules = append(modules, repo.withSteps(m))
		}
	}
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].OrderNumber == modules[j].OrderNumber {
			return modules[i].ID < modules[j].ID
		}
		return modules[i].OrderNumber < modules[j].OrderNumber
	})
	return modules
}

func (repo *catalogRepository) GetClass(_ context.Context, id string) (catalog.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return c, nil
	}
	return catalog.Class{}, core.NewNotFoundError("class", id)
}

func (repo *catalogRepository) GetModule(_ context.Context, id string) (catalog.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.modules[id]; ok {
		return repo.withSteps(m), nil
	}
	return catalog.Module{}, core.NewNotFoundError("module", id)
}

func (repo *catalogRepository) GetStep(_ context.Context, id string) (catalog.Step, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.steps[id]; ok {
		return s, nil
	}
	return catalog.Step{}, core.NewNotFoundError("step", id)
}

func (repo *catalogRepository) QueryClassModules(_ context.Context, classID string) ([]catalog.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.activeModules(map[string]bool{classID: true}), nil
}

func (repo *catalogRepository) QueryEnrolledModules(_ context.Context, studentID string) ([]catalog.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classIDs := make(map[string]bool)
	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID && e.IsActive() {
			classIDs[e.ClassID] = true
		}
	}
	return repo.activeModules(classIDs), nil
}

func (repo *catalogRepository) GetAssignment(_ context.Context, id string) (catalog.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return catalog.Assignment{}, core.NewNotFoundError("assignment", id)
}

func (repo *catalogRepository) QueryClassAssignments(_ context.Context, classID string) ([]catalog.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]catalog.Assignment, 0)
	for _, a := range repo.db.assignments {
		if a.ClassID == classID && a.IsActive {
			assignments = append(assignments, a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (repo *catalogRepository) GetEnrollment(_ context.Context, classID, studentID string) (catalog.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[key(classID, studentID)]; ok {
		return e, nil
	}
	return catalog.Enrollment{}, core.NewNotFoundError("enrollment", classID)
}

func (repo *catalogRepository) QueryClassEnrollments(_ context.Context, classID string) ([]catalog.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := make([]catalog.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if e.ClassID == classID && e.IsActive() {
			enrollments = append(enrollments, e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool {
		if enrollments[i].StudentName == enrollments[j].StudentName {
			return enrollments[i].StudentID < enrollments[j].StudentID
		}
		return enrollments[i].StudentName < enrollments[j].StudentName
	})
	return enrollments, nil
}

func (repo *catalogRepository) Import(_ context.Context, c catalog.Catalog) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, cl := range c.Classes {
		repo.db.classes[cl.ID] = cl
	}
	for _, m := range c.Modules {
		for _, s := range m.Steps {
			s.ModuleID = m.ID
			repo.db.steps[s.ID] = s
		}
		m.Steps = nil
		repo.db.modules[m.ID] = m
	}
	for _, a := range c.Assignments {
		repo.db.assignments[a.ID] = a
	}
	for _, e := range c.Enrollments {
		repo.db.enrollments[key(e.ClassID, e.StudentID)] = e
	}
	return nil
}

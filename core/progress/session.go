package progress

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
)

// Session is a learner's read-through view of their enrolled modules and progress rows.
// The store stays the source of truth: mutations go through the Engine and the store's record replaces
// the cached one, while changes made elsewhere are only seen after Refresh.
type Session struct {
	engine  *Engine
	userID  string
	modules []catalog.Module
	index   Index
	stale   bool
}

func (s *Session) UserID() string { return s.userID }

// Refresh reloads modules and progress rows from the store.
func (s *Session) Refresh(ctx context.Context) error {
	modules, err := s.engine.catalog.QueryEnrolledModules(ctx, s.userID)
	if err != nil {
		return errors.Wrap(err, "querying enrolled modules")
	}
	rows, err := s.engine.repo.QueryStepProgress(ctx, s.userID)
	if err != nil {
		return errors.Wrap(err, "querying step progress")
	}
	s.modules = modules
	s.index = NewIndex(rows)
	s.stale = false
	return nil
}

// Invalidate marks the cached rows as outdated; the next EnsureFresh reloads them.
func (s *Session) Invalidate() {
	s.stale = true
}

func (s *Session) Stale() bool { return s.stale }

// EnsureFresh refreshes the session if it was invalidated.
func (s *Session) EnsureFresh(ctx context.Context) error {
	if !s.stale {
		return nil
	}
	return s.Refresh(ctx)
}

func (s *Session) apply(sp StepProgress) {
	s.index[sp.StepID] = sp
}

func (s *Session) StartStep(ctx context.Context, moduleID, stepID string) (StepProgress, error) {
	sp, err := s.engine.StartStep(ctx, moduleID, stepID, s.userID)
	if err != nil {
		return StepProgress{}, err
	}
	s.apply(sp)
	return sp, nil
}

func (s *Session) CompleteStep(ctx context.Context, moduleID, stepID, notes string) (StepProgress, error) {
	sp, err := s.engine.CompleteStep(ctx, moduleID, stepID, s.userID, notes)
	if err != nil {
		return StepProgress{}, err
	}
	s.apply(sp)
	return sp, nil
}

func (s *Session) Modules() []catalog.Module {
	return s.modules
}

// StepProgress returns the cached progress of a step, if any.
func (s *Session) StepProgress(stepID string) (StepProgress, bool) {
	sp, ok := s.index[stepID]
	return sp, ok
}

func (s *Session) ModuleProgress(moduleID string) (ModuleProgress, error) {
	for _, m := range s.modules {
		if m.ID == moduleID {
			return ComputeModuleProgress(m, s.index), nil
		}
	}
	return ModuleProgress{}, core.NewNotFoundError("module", moduleID)
}

func (s *Session) NextStep() *NextStep {
	return FindNextStep(s.modules, s.index)
}

func (s *Session) EstimatedTimeRemaining() TimeEstimate {
	return EstimateTimeRemaining(s.modules, s.index)
}

func (s *Session) OverallProgress() OverallProgress {
	return ComputeOverallProgress(s.modules, s.index)
}

// Export snapshots the whole session.
func (s *Session) Export() Export {
	exp := Export{
		UserID:        s.userID,
		Summary:       s.OverallProgress(),
		TimeRemaining: s.EstimatedTimeRemaining(),
		Modules:       make([]ModuleExport, 0, len(s.modules)),
		ExportedAt:    s.engine.nowFunc(),
	}
	for _, m := range s.modules {
		me := ModuleExport{
			ID:       m.ID,
			Title:    m.Title,
			Progress: ComputeModuleProgress(m, s.index),
			Steps:    make([]StepExport, 0, len(m.Steps)),
		}
		for _, st := range m.Steps {
			se := StepExport{ID: st.ID, Title: st.Title}
			if sp, ok := s.index[st.ID]; ok {
				sp := sp
				se.Progress = &sp
			}
			me.Steps = append(me.Steps, se)
		}
		exp.Modules = append(exp.Modules, me)
	}
	return exp
}

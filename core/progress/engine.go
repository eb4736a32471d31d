package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
)

// Engine owns the step transition rules.
type Engine struct {
	repo    Repository
	catalog catalog.Repository
	metrics core.Metrics
	nowFunc func() time.Time // mockable
}

func NewEngine(repo Repository, catalogRepo catalog.Repository, metrics core.Metrics) *Engine {
	return &Engine{
		repo:    repo,
		catalog: catalogRepo,
		metrics: metrics,
		nowFunc: core.NowUTC,
	}
}

// SetClock replaces the engine's clock.
func (e *Engine) SetClock(now func() time.Time) {
	e.nowFunc = now
}

// resolveStep checks that the step belongs to an active module the user is actively enrolled in.
func (e *Engine) resolveStep(ctx context.Context, moduleID, stepID, userID string) (catalog.Module, error) {
	mod, err := e.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return catalog.Module{}, errors.Wrap(err, "getting module")
	}
	if !mod.IsActive {
		return catalog.Module{}, core.NewNotFoundError("module", moduleID)
	}
	if _, ok := mod.Step(stepID); !ok {
		return catalog.Module{}, core.NewNotFoundError("step", stepID)
	}

	enr, err := e.catalog.GetEnrollment(ctx, mod.ClassID, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return catalog.Module{}, core.NewNotFoundError("module", moduleID)
		}
		return catalog.Module{}, errors.Wrap(err, "getting enrollment")
	}
	if !enr.IsActive() {
		return catalog.Module{}, core.NewNotFoundError("module", moduleID)
	}
	return mod, nil
}

// StartStep records a visit to a step. Revisiting a step never regresses its progress.
func (e *Engine) StartStep(ctx context.Context, moduleID, stepID, userID string) (StepProgress, error) {
	if _, err := e.resolveStep(ctx, moduleID, stepID, userID); err != nil {
		return StepProgress{}, err
	}

	for attempt := 0; ; attempt++ {
		existing, err := e.repo.GetStepProgress(ctx, userID, stepID)
		switch {
		case err == nil:
			if existing.IsCompleted() || !existing.StartedAt.IsZero() {
				return existing, nil
			}
			existing.StartedAt = e.nowFunc()
			existing.UpdatedAt = existing.StartedAt
			sp, err := e.repo.UpdateStepProgress(ctx, existing)
			return sp, errors.Wrap(err, "updating step progress")

		case core.IsNotFound(err):
			now := e.nowFunc()
			sp, err := e.repo.CreateStepProgress(ctx, StepProgress{
				ID:        uuid.NewString(),
				UserID:    userID,
				ModuleID:  moduleID,
				StepID:    stepID,
				Status:    StatusInProgress,
				StartedAt: now,
				UpdatedAt: now,
			})
			if core.IsConflict(err) && attempt == 0 {
				continue // lost a concurrent create: apply the rules to the winner's row
			}
			if err != nil {
				return StepProgress{}, errors.Wrap(err, "creating step progress")
			}
			e.metrics.StepTransition(string(StatusInProgress))
			return sp, nil

		default:
			return StepProgress{}, errors.Wrap(err, "getting step progress")
		}
	}
}

// CompleteStep marks a step completed, creating its progress when the step was never started.
// Completing a completed step refreshes completed_at and notes.
func (e *Engine) CompleteStep(ctx context.Context, moduleID, stepID, userID, notes string) (StepProgress, error) {
	if _, err := e.resolveStep(ctx, moduleID, stepID, userID); err != nil {
		return StepProgress{}, err
	}
	notes = core.CleanString(notes)

	for attempt := 0; ; attempt++ {
		now := e.nowFunc()
		existing, err := e.repo.GetStepProgress(ctx, userID, stepID)
		switch {
		case err == nil:
			existing.Status = StatusCompleted
			existing.CompletedAt = &now
			existing.Notes = notes
			existing.UpdatedAt = now
			if existing.StartedAt.IsZero() {
				existing.StartedAt = now
			}
			sp, err := e.repo.UpdateStepProgress(ctx, existing)
			if err != nil {
				return StepProgress{}, errors.Wrap(err, "updating step progress")
			}
			e.metrics.StepTransition(string(StatusCompleted))
			return sp, nil

		case core.IsNotFound(err):
			sp, err := e.repo.CreateStepProgress(ctx, StepProgress{
				ID:          uuid.NewString(),
				UserID:      userID,
				ModuleID:    moduleID,
				StepID:      stepID,
				Status:      StatusCompleted,
				StartedAt:   now,
				CompletedAt: &now,
				Notes:       notes,
				UpdatedAt:   now,
			})
			if core.IsConflict(err) && attempt == 0 {
				continue
			}
			if err != nil {
				return StepProgress{}, errors.Wrap(err, "creating step progress")
			}
			e.metrics.StepTransition(string(StatusCompleted))
			return sp, nil

		default:
			return StepProgress{}, errors.Wrap(err, "getting step progress")
		}
	}
}

// NewSession loads the user's enrolled modules and progress.
func (e *Engine) NewSession(ctx context.Context, userID string) (*Session, error) {
	s := &Session{engine: e, userID: userID}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

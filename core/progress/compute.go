package progress

import (
	"fmt"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
)

// Index maps step ids to the learner's progress on them.
type Index map[string]StepProgress

func NewIndex(rows []StepProgress) Index {
	idx := make(Index, len(rows))
	for _, sp := range rows {
		idx[sp.StepID] = sp
	}
	return idx
}

func (idx Index) isCompleted(stepID string) bool {
	sp, ok := idx[stepID]
	return ok && sp.IsCompleted()
}

// ComputeModuleProgress aggregates the progress rows of the module's steps.
func ComputeModuleProgress(m catalog.Module, idx Index) ModuleProgress {
	mp := ModuleProgress{ModuleID: m.ID, TotalSteps: len(m.Steps)}
	for _, s := range m.Steps {
		sp, ok := idx[s.ID]
		if !ok {
			continue
		}
		mp.IsStarted = true
		switch sp.Status {
		case StatusCompleted:
			mp.CompletedSteps++
		case StatusInProgress:
			mp.InProgressSteps++
		}
	}
	mp.CompletionPercentage = core.Percentage(mp.CompletedSteps, mp.TotalSteps)
	mp.IsCompleted = mp.TotalSteps > 0 && mp.CompletedSteps == mp.TotalSteps
	return mp
}

// FindNextStep returns the earliest incomplete step in catalog order, or nil once everything is completed.
func FindNextStep(modules []catalog.Module, idx Index) *NextStep {
	for _, m := range modules {
		for _, s := range m.Steps {
			if !idx.isCompleted(s.ID) {
				return &NextStep{Module: m, Step: s, IsFirstStep: len(idx) == 0}
			}
		}
	}
	return nil
}

// EstimateTimeRemaining sums the estimates of every step not completed yet.
func EstimateTimeRemaining(modules []catalog.Module, idx Index) TimeEstimate {
	var minutes int
	for _, m := range modules {
		for _, s := range m.Steps {
			if !idx.isCompleted(s.ID) {
				minutes += s.Minutes()
			}
		}
	}
	return TimeEstimate{
		Minutes:   minutes,
		Hours:     core.Round(float64(minutes)/60, 1),
		Formatted: FormatDuration(minutes),
	}
}

func ComputeOverallProgress(modules []catalog.Module, idx Index) OverallProgress {
	op := OverallProgress{TotalModules: len(modules)}
	for _, m := range modules {
		mp := ComputeModuleProgress(m, idx)
		op.TotalSteps += mp.TotalSteps
		op.CompletedSteps += mp.CompletedSteps
		if mp.IsCompleted {
			op.CompletedModules++
		} else if mp.IsStarted {
			op.InProgressModules++
		}
	}
	op.OverallPercentage = core.Percentage(op.CompletedSteps, op.TotalSteps)
	return op
}

// FormatDuration renders minutes as "X min", "H hr" or "H hr M min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours, mins := minutes/60, minutes%60
	if mins == 0 {
		return fmt.Sprintf("%d hr", hours)
	}
	return fmt.Sprintf("%d hr %d min", hours, mins)
}

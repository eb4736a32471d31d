package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) GetStepProgress(_ context.Context, userID, stepID string) (progress.StepProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sp, ok := repo.db.table[key(userID, stepID)]; ok {
		return sp, nil
	}
	return progress.StepProgress{}, core.NewNotFoundError("step progress", stepID)
}

func (repo *progressRepository) QueryStepProgress(_ context.Context, userID string) ([]progress.StepProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]progress.StepProgress, 0)
	for _, sp := range repo.db.table {
		if sp.UserID == userID {
			rows = append(rows, sp)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartedAt.Before(rows[j].StartedAt) })
	return rows, nil
}

func (repo *progressRepository) CreateStepProgress(_ context.Context, sp progress.StepProgress) (progress.StepProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	k := key(sp.UserID, sp.StepID)
	if _, ok := repo.db.table[k]; ok {
		return progress.StepProgress{}, core.NewConflictError("progress of step %s already exists", sp.StepID)
	}
	repo.db.table[k] = sp
	return sp, nil
}

func (repo *progressRepository) UpdateStepProgress(_ context.Context, sp progress.StepProgress) (progress.StepProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	k := key(sp.UserID, sp.StepID)
	orig, ok := repo.db.table[k]
	if !ok || orig.ID != sp.ID {
		return progress.StepProgress{}, core.NewNotFoundError("step progress", sp.StepID)
	}
	repo.db.table[k] = sp
	return sp, nil
}

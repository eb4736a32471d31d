package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/progress"
)

type stepProgressRow struct {
	ID          string      `db:"id"`
	UserID      string      `db:"user_id"`
	ModuleID    string      `db:"module_id"`
	StepID      string      `db:"step_id"`
	Status      string      `db:"status"`
	StartedAt   time.Time   `db:"started_at"`
	CompletedAt null.Time   `db:"completed_at"`
	Notes       null.String `db:"notes"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func newStepProgressRow(sp progress.StepProgress) stepProgressRow {
	return stepProgressRow{
		ID:          sp.ID,
		UserID:      sp.UserID,
		ModuleID:    sp.ModuleID,
		StepID:      sp.StepID,
		Status:      string(sp.Status),
		StartedAt:   sp.StartedAt,
		CompletedAt: null.TimeFromPtr(sp.CompletedAt),
		Notes:       nullString(sp.Notes),
		UpdatedAt:   sp.UpdatedAt,
	}
}

func (r stepProgressRow) toStepProgress() (progress.StepProgress, error) {
	status, err := progress.ParseStepStatus(r.Status)
	if err != nil {
		return progress.StepProgress{}, errors.Wrapf(err, "step progress %s", r.ID)
	}
	return progress.StepProgress{
		ID:          r.ID,
		UserID:      r.UserID,
		ModuleID:    r.ModuleID,
		StepID:      r.StepID,
		Status:      status,
		StartedAt:   r.StartedAt.UTC(),
		CompletedAt: utcPtr(r.CompletedAt),
		Notes:       r.Notes.String,
		UpdatedAt:   r.UpdatedAt.UTC(),
	}, nil
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

const stepProgressColumns = "id, user_id, module_id, step_id, status, started_at, completed_at, notes, updated_at"

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetStepProgress(ctx context.Context, userID, stepID string) (progress.StepProgress, error) {
	var row stepProgressRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+stepProgressColumns+" FROM step_progress WHERE user_id = $1 AND step_id = $2", userID, stepID)
	if err != nil {
		return progress.StepProgress{}, mapError(err, "step progress", stepID)
	}
	return row.toStepProgress()
}

func (repo *progressRepository) QueryStepProgress(ctx context.Context, userID string) ([]progress.StepProgress, error) {
	var rows []stepProgressRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+stepProgressColumns+" FROM step_progress WHERE user_id = $1 ORDER BY started_at, id", userID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting step progress")
	}
	sps := make([]progress.StepProgress, 0, len(rows))
	for _, r := range rows {
		sp, err := r.toStepProgress()
		if err != nil {
			return nil, err
		}
		sps = append(sps, sp)
	}
	return sps, nil
}

func (repo *progressRepository) CreateStepProgress(ctx context.Context, sp progress.StepProgress) (progress.StepProgress, error) {
	var row stepProgressRow
	q, args, err := repo.db.BindNamed(`
		INSERT INTO step_progress (`+stepProgressColumns+`)
		VALUES (:id, :user_id, :module_id, :step_id, :status, :started_at, :completed_at, :notes, :updated_at)
		RETURNING `+stepProgressColumns, newStepProgressRow(sp))
	if err != nil {
		return progress.StepProgress{}, errors.Wrap(err, "binding step progress")
	}
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return progress.StepProgress{}, mapError(err, "step progress", sp.StepID)
	}
	return row.toStepProgress()
}

func (repo *progressRepository) UpdateStepProgress(ctx context.Context, sp progress.StepProgress) (progress.StepProgress, error) {
	var row stepProgressRow
	q, args, err := repo.db.BindNamed(`
		UPDATE step_progress
		SET status = :status, started_at = :started_at, completed_at = :completed_at, notes = :notes, updated_at = :updated_at
		WHERE id = :id
		RETURNING `+stepProgressColumns, newStepProgressRow(sp))
	if err != nil {
		return progress.StepProgress{}, errors.Wrap(err, "binding step progress")
	}
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return progress.StepProgress{}, mapError(err, "step progress", sp.StepID)
	}
	return row.toStepProgress()
}

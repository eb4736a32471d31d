package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/submission"
)

type (
	submissionRow struct {
		ID             string      `db:"id"`
		AssignmentID   string      `db:"assignment_id"`
		StudentID      string      `db:"student_id"`
		SubmissionType string      `db:"submission_type"`
		FileRef        null.String `db:"file_ref"`
		SubmissionURL  null.String `db:"submission_url"`
		Notes          null.String `db:"notes"`
		Status         string      `db:"status"`
		SubmittedAt    time.Time   `db:"submitted_at"`
		GradedAt       null.Time   `db:"graded_at"`
		UpdatedAt      time.Time   `db:"updated_at"`
	}

	gradeRow struct {
		ID           string      `db:"id"`
		SubmissionID string      `db:"submission_id"`
		GraderType   string      `db:"grader_type"`
		Score        int         `db:"score"`
		Feedback     string      `db:"feedback"`
		Strengths    null.String `db:"strengths"`
		Improvements null.String `db:"improvements"`
		Analysis     null.String `db:"analysis"`
		GradedBy     null.String `db:"graded_by"`
		CreatedAt    time.Time   `db:"created_at"`
	}
)

func newSubmissionRow(s submission.Submission) submissionRow {
	return submissionRow{
		ID:             s.ID,
		AssignmentID:   s.AssignmentID,
		StudentID:      s.StudentID,
		SubmissionType: string(s.SubmissionType),
		FileRef:        nullString(s.FileRef),
		SubmissionURL:  nullString(s.SubmissionURL),
		Notes:          nullString(s.Notes),
		Status:         string(s.Status),
		SubmittedAt:    s.SubmittedAt,
		GradedAt:       null.TimeFromPtr(s.GradedAt),
		UpdatedAt:      s.UpdatedAt,
	}
}

func (r submissionRow) toSubmission() (submission.Submission, error) {
	status, err := submission.ParseStatus(r.Status)
	if err != nil {
		return submission.Submission{}, errors.Wrapf(err, "submission %s", r.ID)
	}
	typ, err := submission.ParseType(r.SubmissionType)
	if err != nil {
		return submission.Submission{}, errors.Wrapf(err, "submission %s", r.ID)
	}
	return submission.Submission{
		ID:             r.ID,
		AssignmentID:   r.AssignmentID,
		StudentID:      r.StudentID,
		SubmissionType: typ,
		FileRef:        r.FileRef.String,
		SubmissionURL:  r.SubmissionURL.String,
		Notes:          r.Notes.String,
		Status:         status,
		SubmittedAt:    r.SubmittedAt.UTC(),
		GradedAt:       utcPtr(r.GradedAt),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}, nil
}

func newGradeRow(g submission.Grade) gradeRow {
	return gradeRow{
		ID:           g.ID,
		SubmissionID: g.SubmissionID,
		GraderType:   string(g.GraderType),
		Score:        g.Score,
		Feedback:     g.Feedback,
		Strengths:    nullString(g.Strengths),
		Improvements: nullString(g.Improvements),
		Analysis:     nullString(g.Analysis),
		GradedBy:     nullString(g.GradedBy),
		CreatedAt:    g.CreatedAt,
	}
}

func (r gradeRow) toGrade() (submission.Grade, error) {
	gt, err := grading.ParseGraderType(r.GraderType)
	if err != nil {
		return submission.Grade{}, errors.Wrapf(err, "grade %s", r.ID)
	}
	return submission.Grade{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		GraderType:   gt,
		Score:        r.Score,
		Feedback:     r.Feedback,
		Strengths:    r.Strengths.String,
		Improvements: r.Improvements.String,
		Analysis:     r.Analysis.String,
		GradedBy:     r.GradedBy.String,
		CreatedAt:    r.CreatedAt.UTC(),
	}, nil
}

const (
	submissionColumns = "id, assignment_id, student_id, submission_type, file_ref, submission_url, notes, status, submitted_at, graded_at, updated_at"
	gradeColumns      = "id, submission_id, grader_type, score, feedback, strengths, improvements, analysis, graded_by, created_at"

	insertGrade = `
		INSERT INTO grades (` + gradeColumns + `)
		VALUES (:id, :submission_id, :grader_type, :score, :feedback, :strengths, :improvements, :analysis, :graded_by, :created_at)
		RETURNING ` + gradeColumns
)

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sqlx.DB) submission.Repository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	q, args, err := repo.db.BindNamed(`
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (:id, :assignment_id, :student_id, :submission_type, :file_ref, :submission_url, :notes, :status,
			:submitted_at, :graded_at, :updated_at)
		RETURNING `+submissionColumns, newSubmissionRow(s))
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "binding submission")
	}
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return submission.Submission{}, mapError(err, "submission", s.ID)
	}
	return row.toSubmission()
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+submissionColumns+" FROM submissions WHERE id = $1", id); err != nil {
		return submission.Submission{}, mapError(err, "submission", id)
	}
	return row.toSubmission()
}

func (repo *submissionRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (submission.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+submissionColumns+" FROM submissions WHERE assignment_id = $1 AND student_id = $2", assignmentID, studentID)
	if err != nil {
		return submission.Submission{}, mapError(err, "submission", assignmentID)
	}
	return row.toSubmission()
}

// buildSubmissionsQuery renders the filter as a bindvar-agnostic query.
func buildSubmissionsQuery(filter submission.QueryFilter) (string, []interface{}, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.AssignmentIDs != nil {
		if len(filter.AssignmentIDs) == 0 {
			conds = append(conds, "FALSE")
		} else {
			conds = append(conds, "assignment_id IN (?)")
			args = append(args, filter.AssignmentIDs)
		}
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.UpdatedBefore.IsZero() {
		conds = append(conds, "updated_at < ?")
		args = append(args, filter.UpdatedBefore)
	}

	q := "SELECT " + submissionColumns + " FROM submissions"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY submitted_at, id"
	return sqlx.In(q, args...)
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter) ([]submission.Submission, error) {
	q, args, err := buildSubmissionsQuery(filter)
	if err != nil {
		return nil, errors.Wrap(err, "building submissions query")
	}
	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		s, err := r.toSubmission()
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// conditionalMiss explains why a conditional update matched no row.
func conditionalMiss(ctx context.Context, q sqlx.QueryerContext, id string, want submission.Status) error {
	var status string
	err := sqlx.GetContext(ctx, q, &status, "SELECT status FROM submissions WHERE id = $1", id)
	if err != nil {
		return mapError(err, "submission", id)
	}
	return core.NewConflictError("submission is %s, not %s", status, want)
}

func (repo *submissionRepository) UpdatePendingSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	q, args, err := repo.db.BindNamed(`
		UPDATE submissions
		SET submission_type = :submission_type, file_ref = :file_ref, submission_url = :submission_url, notes = :notes,
			submitted_at = :submitted_at, updated_at = :updated_at
		WHERE id = :id AND status = 'pending'
		RETURNING `+submissionColumns, newSubmissionRow(s))
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "binding submission")
	}
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if mapped := mapError(err, "submission", s.ID); core.IsNotFound(mapped) {
			return submission.Submission{}, conditionalMiss(ctx, repo.db, s.ID, submission.StatusPending)
		}
		return submission.Submission{}, errors.Wrap(err, "updating submission")
	}
	return row.toSubmission()
}

func (repo *submissionRepository) TransitionStatus(
	ctx context.Context,
	id string,
	from, to submission.Status,
	at time.Time,
) (submission.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE submissions SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+submissionColumns, id, string(from), string(to), at)
	if err != nil {
		if mapped := mapError(err, "submission", id); core.IsNotFound(mapped) {
			return submission.Submission{}, conditionalMiss(ctx, repo.db, id, from)
		}
		return submission.Submission{}, errors.Wrap(err, "transitioning submission")
	}
	return row.toSubmission()
}

func (repo *submissionRepository) RecordGrade(ctx context.Context, g submission.Grade) (submission.Submission, submission.Grade, error) {
	var (
		subRow   submissionRow
		gradeOut gradeRow
	)
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &subRow, `
			UPDATE submissions SET status = 'graded', graded_at = $2, updated_at = $2
			WHERE id = $1 AND status = 'grading'
			RETURNING `+submissionColumns, g.SubmissionID, g.CreatedAt)
		if err != nil {
			if mapped := mapError(err, "submission", g.SubmissionID); core.IsNotFound(mapped) {
				return conditionalMiss(ctx, tx, g.SubmissionID, submission.StatusGrading)
			}
			return errors.Wrap(err, "completing grading")
		}
		q, args, err := tx.BindNamed(insertGrade, newGradeRow(g))
		if err != nil {
			return errors.Wrap(err, "binding grade")
		}
		return errors.Wrap(tx.GetContext(ctx, &gradeOut, q, args...), "inserting grade")
	})
	if err != nil {
		return submission.Submission{}, submission.Grade{}, err
	}

	sub, err := subRow.toSubmission()
	if err != nil {
		return submission.Submission{}, submission.Grade{}, err
	}
	grade, err := gradeOut.toGrade()
	return sub, grade, err
}

func (repo *submissionRepository) AppendGrade(ctx context.Context, g submission.Grade) (submission.Grade, error) {
	var out gradeRow
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var status string
		err := tx.GetContext(ctx, &status, "SELECT status FROM submissions WHERE id = $1 FOR UPDATE", g.SubmissionID)
		if err != nil {
			return mapError(err, "submission", g.SubmissionID)
		}
		if status != string(submission.StatusGraded) {
			return core.NewConflictError("submission is %s, not graded", status)
		}
		q, args, err := tx.BindNamed(insertGrade, newGradeRow(g))
		if err != nil {
			return errors.Wrap(err, "binding grade")
		}
		return errors.Wrap(tx.GetContext(ctx, &out, q, args...), "inserting grade")
	})
	if err != nil {
		return submission.Grade{}, err
	}
	return out.toGrade()
}

func (repo *submissionRepository) QueryGrades(ctx context.Context, submissionID string) ([]submission.Grade, error) {
	var rows []gradeRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+gradeColumns+" FROM grades WHERE submission_id = $1 ORDER BY created_at DESC, id DESC", submissionID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	grades := make([]submission.Grade, 0, len(rows))
	for _, r := range rows {
		g, err := r.toGrade()
		if err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, nil
}

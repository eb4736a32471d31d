package sqlxrepos

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/submission"
	appfs "github.com/trezcool/darasa/fs"
	testutil "github.com/trezcool/darasa/tests"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{name: "no rows", err: sql.ErrNoRows, is: core.IsNotFound},
		{name: "wrapped no rows", err: errors.Wrap(sql.ErrNoRows, "scanning"), is: core.IsNotFound},
		{name: "unique violation", err: &pq.Error{Code: uniqueViolation, Constraint: "submissions_assignment_student_key"}, is: core.IsConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapError(tc.err, "submission", "s1"); !tc.is(got) {
				t.Errorf("mapError() = %v; want a typed error", got)
			}
		})
	}

	other := errors.New("connection refused")
	assert.Equal(t, other, mapError(other, "submission", "s1"))
	assert.NoError(t, mapError(nil, "submission", "s1"))
}

func TestBuildSubmissionsQuery(t *testing.T) {
	before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    submission.QueryFilter
		wantWhere string
		wantArgs  int
	}{
		{name: "no filter", wantWhere: "", wantArgs: 0},
		{name: "student", filter: submission.QueryFilter{StudentID: "stu-1"}, wantWhere: " WHERE student_id = ?", wantArgs: 1},
		{
			name:      "student assignments status",
			filter:    submission.QueryFilter{StudentID: "stu-1", AssignmentIDs: []string{"a", "b"}, Status: submission.StatusGraded},
			wantWhere: " WHERE student_id = ? AND assignment_id IN (?, ?) AND status = ?",
			wantArgs:  4,
		},
		{name: "empty assignment set", filter: submission.QueryFilter{AssignmentIDs: []string{}}, wantWhere: " WHERE FALSE"},
		{
			name:      "stale",
			filter:    submission.QueryFilter{Status: submission.StatusGrading, UpdatedBefore: before},
			wantWhere: " WHERE status = ? AND updated_at < ?",
			wantArgs:  2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, args, err := buildSubmissionsQuery(tc.filter)
			require.NoError(t, err)
			want := "SELECT " + submissionColumns + " FROM submissions" + tc.wantWhere + " ORDER BY submitted_at, id"
			assert.Equal(t, want, q)
			assert.Len(t, args, tc.wantArgs)
		})
	}
}

// openTestDB connects to DARASA_TEST_DATABASE_URL and resets the schema.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("DARASA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DARASA_TEST_DATABASE_URL is not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(appfs.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Reset(db.DB, appfs.MigrationsDir))
	require.NoError(t, goose.Up(db.DB, appfs.MigrationsDir))
	return db
}

func TestRepositories_postgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	catalogRepo := NewCatalogRepository(db)
	c, err := catalog.LoadYAML(strings.NewReader(testutil.Catalog))
	require.NoError(t, err)
	require.NoError(t, catalogRepo.Import(ctx, c))
	require.NoError(t, catalogRepo.Import(ctx, c), "importing twice upserts")

	t.Run("catalog", func(t *testing.T) {
		modules, err := catalogRepo.QueryEnrolledModules(ctx, "stu-1")
		require.NoError(t, err)
		require.Len(t, modules, 2)
		assert.Equal(t, "m1", modules[0].ID)
		assert.Equal(t, []string{"s1", "s2"}, []string{modules[0].Steps[0].ID, modules[0].Steps[1].ID})

		enrollments, err := catalogRepo.QueryClassEnrollments(ctx, "web-101")
		require.NoError(t, err)
		assert.Len(t, enrollments, 2)

		_, err = catalogRepo.GetAssignment(ctx, "nope")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("progress", func(t *testing.T) {
		repo := NewProgressRepository(db)
		now := time.Now().UTC().Truncate(time.Microsecond)
		sp := progress.StepProgress{ID: "p1", UserID: "stu-1", ModuleID: "m1", StepID: "s1", Status: progress.StatusInProgress, StartedAt: now, UpdatedAt: now}
		_, err := repo.CreateStepProgress(ctx, sp)
		require.NoError(t, err)
		sp.ID = "p2"
		_, err = repo.CreateStepProgress(ctx, sp)
		assert.True(t, core.IsConflict(err), "error = %v", err)

		sp.ID = "p1"
		sp.Status = progress.StatusCompleted
		sp.CompletedAt = &now
		got, err := repo.UpdateStepProgress(ctx, sp)
		require.NoError(t, err)
		assert.True(t, got.IsCompleted())
	})

	t.Run("submission round trip", func(t *testing.T) {
		repo := NewSubmissionRepository(db)
		now := time.Now().UTC().Truncate(time.Microsecond)
		sub, err := repo.CreateSubmission(ctx, submission.Submission{
			ID: "sub-1", AssignmentID: "a-manual", StudentID: "stu-1", SubmissionType: submission.TypeURL,
			SubmissionURL: "https://example.com", Status: submission.StatusPending, SubmittedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)

		_, _, err = repo.RecordGrade(ctx, submission.Grade{ID: "g0", SubmissionID: sub.ID, GraderType: grading.GraderManual, Score: 4, Feedback: "x", CreatedAt: now})
		assert.True(t, core.IsConflict(err), "grading must start first")

		_, err = repo.TransitionStatus(ctx, sub.ID, submission.StatusPending, submission.StatusGrading, now)
		require.NoError(t, err)
		_, err = repo.TransitionStatus(ctx, sub.ID, submission.StatusPending, submission.StatusGrading, now)
		assert.True(t, core.IsConflict(err))

		graded, _, err := repo.RecordGrade(ctx, submission.Grade{ID: "g1", SubmissionID: sub.ID, GraderType: grading.GraderManual, Score: 4, Feedback: "Good work", CreatedAt: now})
		require.NoError(t, err)
		assert.Equal(t, submission.StatusGraded, graded.Status)

		stored, err := repo.GetSubmission(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusGraded, stored.Status)
		grades, err := repo.QueryGrades(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, grades, 1)
		assert.Equal(t, grading.GraderManual, grades[0].GraderType)
		assert.Equal(t, 4, grades[0].Score)
		assert.Equal(t, "Good work", grades[0].Feedback)

		graded2, err := repo.QuerySubmissions(ctx, submission.QueryFilter{StudentID: "stu-1", AssignmentIDs: []string{"a-manual", "a-ai"}, Status: submission.StatusGraded})
		require.NoError(t, err)
		assert.Len(t, graded2, 1)
	})
}

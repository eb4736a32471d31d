package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/submission"
)

type submissionRepository struct {
	db *submissionTables
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db.submission}
}

// find must be called with the lock held.
func (repo *submissionRepository) find(assignmentID, studentID string) (submission.Submission, bool) {
	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return s, true
		}
	}
	return submission.Submission{}, false
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.find(s.AssignmentID, s.StudentID); ok {
		return submission.Submission{}, core.NewConflictError("assignment %s already submitted", s.AssignmentID)
	}
	repo.db.submissions[s.ID] = s
	return s, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return s, nil
	}
	return submission.Submission{}, core.NewNotFoundError("submission", id)
}

func (repo *submissionRepository) FindSubmission(_ context.Context, assignmentID, studentID string) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.find(assignmentID, studentID); ok {
		return s, nil
	}
	return submission.Submission{}, core.NewNotFoundError("submission", assignmentID)
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.QueryFilter) ([]submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var assignmentIDs map[string]bool
	if filter.AssignmentIDs != nil {
		assignmentIDs = make(map[string]bool, len(filter.AssignmentIDs))
		for _, id := range filter.AssignmentIDs {
			assignmentIDs[id] = true
		}
	}

	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		if assignmentIDs != nil && !assignmentIDs[s.AssignmentID] {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if !filter.UpdatedBefore.IsZero() && !s.UpdatedAt.Before(filter.UpdatedBefore) {
			continue
		}
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *submissionRepository) UpdatePendingSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.submissions[s.ID]
	if !ok {
		return submission.Submission{}, core.NewNotFoundError("submission", s.ID)
	}
	if orig.Status != submission.StatusPending {
		return submission.Submission{}, core.NewConflictError("submission is already %s", orig.Status)
	}
	orig.SubmissionType = s.SubmissionType
	orig.FileRef = s.FileRef
	orig.SubmissionURL = s.SubmissionURL
	orig.Notes = s.Notes
	orig.SubmittedAt = s.SubmittedAt
	orig.UpdatedAt = s.UpdatedAt
	repo.db.submissions[s.ID] = orig
	return orig, nil
}

func (repo *submissionRepository) TransitionStatus(
	_ context.Context,
	id string,
	from, to submission.Status,
	at time.Time,
) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, core.NewNotFoundError("submission", id)
	}
	if s.Status != from {
		return submission.Submission{}, core.NewConflictError("submission is %s, not %s", s.Status, from)
	}
	s.Status = to
	s.UpdatedAt = at
	repo.db.submissions[id] = s
	return s, nil
}

func (repo *submissionRepository) RecordGrade(_ context.Context, g submission.Grade) (submission.Submission, submission.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.submissions[g.SubmissionID]
	if !ok {
		return submission.Submission{}, submission.Grade{}, core.NewNotFoundError("submission", g.SubmissionID)
	}
	if s.Status != submission.StatusGrading {
		return submission.Submission{}, submission.Grade{}, core.NewConflictError("submission is %s, not grading", s.Status)
	}
	gradedAt := g.CreatedAt
	s.Status = submission.StatusGraded
	s.GradedAt = &gradedAt
	s.UpdatedAt = gradedAt
	repo.db.submissions[s.ID] = s
	repo.db.grades[s.ID] = append(repo.db.grades[s.ID], g)
	return s, g, nil
}

func (repo *submissionRepository) AppendGrade(_ context.Context, g submission.Grade) (submission.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.submissions[g.SubmissionID]
	if !ok {
		return submission.Grade{}, core.NewNotFoundError("submission", g.SubmissionID)
	}
	if s.Status != submission.StatusGraded {
		return submission.Grade{}, core.NewConflictError("submission is %s, not graded", s.Status)
	}
	repo.db.grades[s.ID] = append(repo.db.grades[s.ID], g)
	return g, nil
}

func (repo *submissionRepository) QueryGrades(_ context.Context, submissionID string) ([]submission.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stored := repo.db.grades[submissionID]
	grades := make([]submission.Grade, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		grades = append(grades, stored[i])
	}
	return grades, nil
}

package submission

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/grading"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusGrading Status = "grading"
	StatusGraded  Status = "graded"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusGrading, StatusGraded:
		return st, nil
	}
	return "", errors.Errorf("unknown submission status %q", s)
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

type Type string

const (
	TypeFile Type = "file"
	TypeURL  Type = "url"
	TypeBoth Type = "both"
)

func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeFile, TypeURL, TypeBoth:
		return t, nil
	}
	return "", errors.Errorf("unknown submission type %q", s)
}

func (t *Type) UnmarshalText(text []byte) error {
	tp, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = tp
	return nil
}

type (
	Repository interface {
		// CreateSubmission fails with a *core.ConflictError when the student already submitted the assignment.
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		FindSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		// QuerySubmissions applies AND operation on the set QueryFilter fields.
		QuerySubmissions(ctx context.Context, filter QueryFilter) ([]Submission, error)
		// UpdatePendingSubmission overwrites the deliverable of a submission that is still pending;
		// it fails with a *core.ConflictError otherwise.
		UpdatePendingSubmission(ctx context.Context, s Submission) (Submission, error)
		// TransitionStatus moves a submission from one status to another in a single conditional update;
		// it fails with a *core.ConflictError when the submission is no longer in `from`.
		TransitionStatus(ctx context.Context, id string, from, to Status, at time.Time) (Submission, error)
		// RecordGrade atomically inserts the grade and moves its submission from grading to graded.
		RecordGrade(ctx context.Context, g Grade) (Submission, Grade, error)
		// AppendGrade adds a grade to an already graded submission.
		AppendGrade(ctx context.Context, g Grade) (Grade, error)
		// QueryGrades returns the submission's grades, newest first.
		QueryGrades(ctx context.Context, submissionID string) ([]Grade, error)
	}

	QueryFilter struct {
		StudentID     string
		AssignmentIDs []string
		Status        Status
		UpdatedBefore time.Time
	}

	Submission struct {
		ID             string     `json:"id"`
		AssignmentID   string     `json:"assignment_id"`
		StudentID      string     `json:"student_id"`
		SubmissionType Type       `json:"submission_type"`
		FileRef        string     `json:"file_ref,omitempty"`
		SubmissionURL  string     `json:"submission_url,omitempty"`
		Notes          string     `json:"notes,omitempty"`
		Status         Status     `json:"status"`
		SubmittedAt    time.Time  `json:"submitted_at"`
		GradedAt       *time.Time `json:"graded_at"`
		UpdatedAt      time.Time  `json:"updated_at"`
	}

	Grade struct {
		ID           string             `json:"id"`
		SubmissionID string             `json:"submission_id"`
		GraderType   grading.GraderType `json:"grader_type"`
		Score        int                `json:"score"`
		Feedback     string             `json:"feedback"`
		Strengths    string             `json:"strengths,omitempty"`
		Improvements string             `json:"improvements,omitempty"`
		Analysis     string             `json:"analysis,omitempty"`
		GradedBy     string             `json:"graded_by,omitempty"`
		CreatedAt    time.Time          `json:"created_at"`
	}

	NewSubmission struct {
		AssignmentID  string `json:"-"`
		StudentID     string `json:"-"`
		FileRef       string `json:"file_ref" validate:"required_without=SubmissionURL"`
		SubmissionURL string `json:"submission_url" validate:"required_without=FileRef,omitempty,url"`
		Notes         string `json:"notes"`
	}

	// Detail is a submission with its grades, newest first.
	Detail struct {
		Submission
		Grades []Grade `json:"grades"`
	}
)

func (ns NewSubmission) submissionType() Type {
	switch {
	case ns.FileRef != "" && ns.SubmissionURL != "":
		return TypeBoth
	case ns.FileRef != "":
		return TypeFile
	default:
		return TypeURL
	}
}

func gradeFromResult(submissionID string, r grading.Result, at time.Time) Grade {
	return Grade{
		SubmissionID: submissionID,
		GraderType:   r.GraderType,
		Score:        r.Score,
		Feedback:     r.Feedback,
		Strengths:    r.Strengths,
		Improvements: r.Improvements,
		Analysis:     r.Analysis,
		GradedBy:     r.GradedBy,
		CreatedAt:    at,
	}
}

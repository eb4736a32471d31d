package grading

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
)

type GraderType string

const (
	GraderAI     GraderType = "ai"
	GraderManual GraderType = "manual"
)

func ParseGraderType(s string) (GraderType, error) {
	switch gt := GraderType(s); gt {
	case GraderAI, GraderManual:
		return gt, nil
	}
	return "", errors.Errorf("unknown grader type %q", s)
}

func (gt *GraderType) UnmarshalText(text []byte) error {
	t, err := ParseGraderType(string(text))
	if err != nil {
		return err
	}
	*gt = t
	return nil
}

const (
	MinScore = 1
	MaxScore = 5
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

type (
	// Oracle produces a grade from a submission's context.
	// Failures are reported as *core.GradingOracleError.
	Oracle interface {
		Grade(ctx context.Context, gc Context) (Result, error)
	}

	// Context is what an oracle knows about the graded submission.
	Context struct {
		AssignmentTitle string `json:"assignment_title" validate:"required"`
		Instructions    string `json:"instructions"`
		Rubric          string `json:"rubric"`
		SubmissionURL   string `json:"submission_url"`
		FileURL         string `json:"file_url"`
		StudentNotes    string `json:"student_notes"`
		ModuleContext   string `json:"module_context,omitempty"`
		StepContext     string `json:"step_context,omitempty"`
	}

	Result struct {
		GraderType   GraderType `json:"grader_type"`
		Score        int        `json:"score"`
		Feedback     string     `json:"feedback"`
		Strengths    string     `json:"strengths,omitempty"`
		Improvements string     `json:"improvements,omitempty"`
		Analysis     string     `json:"analysis,omitempty"`
		GradedBy     string     `json:"graded_by,omitempty"`
	}
)

// IsImage reports whether the submitted file is a picture, to be graded through a vision request.
func (gc Context) IsImage() bool {
	if gc.FileURL == "" {
		return false
	}
	p := gc.FileURL
	if u, err := url.Parse(gc.FileURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return imageExts[strings.ToLower(path.Ext(p))]
}

package grading

import (
	"github.com/trezcool/darasa/core"
)

// ManualGrade is a grade entered by a trainer.
type ManualGrade struct {
	Score        int    `json:"score" validate:"min=1,max=5"`
	Feedback     string `json:"feedback" validate:"required"`
	Strengths    string `json:"strengths"`
	Improvements string `json:"improvements"`
	GraderID     string `json:"-"`
}

// NewManualResult validates a trainer's grade, bypassing any oracle.
func NewManualResult(v *core.Validator, mg ManualGrade) (Result, error) {
	mg.Feedback = core.CleanString(mg.Feedback)
	mg.Strengths = core.CleanString(mg.Strengths)
	mg.Improvements = core.CleanString(mg.Improvements)
	if err := v.Struct(mg); err != nil {
		return Result{}, err
	}
	return Result{
		GraderType:   GraderManual,
		Score:        mg.Score,
		Feedback:     mg.Feedback,
		Strengths:    mg.Strengths,
		Improvements: mg.Improvements,
		GradedBy:     mg.GraderID,
	}, nil
}

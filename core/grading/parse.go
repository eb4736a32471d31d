package grading

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// oracleResponse mirrors the oracle's JSON; pointers tell missing fields from zero values.
type oracleResponse struct {
	Score        *json.Number `json:"score"`
	Feedback     *string      `json:"feedback"`
	Strengths    *string      `json:"strengths"`
	Improvements *string      `json:"improvements"`
	Analysis     *string      `json:"analysis"`
}

func schemaError(err error, body []byte) error {
	const max = 512
	b := string(body)
	if len(b) > max {
		b = b[:max]
	}
	return &core.GradingOracleError{Kind: core.OracleSchema, Body: b, Err: err}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// ParseResult decodes an oracle answer, rejecting anything that is not a whole score in [1,5]
// with non-empty feedback.
func ParseResult(data []byte) (Result, error) {
	var resp oracleResponse
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return Result{}, schemaError(errors.Wrap(err, "decoding grade"), data)
	}

	if resp.Score == nil {
		return Result{}, schemaError(errors.New("missing score"), data)
	}
	score, err := resp.Score.Int64()
	if err != nil {
		return Result{}, schemaError(errors.Errorf("score %s is not an integer", resp.Score.String()), data)
	}
	if score < MinScore || score > MaxScore {
		return Result{}, schemaError(errors.Errorf("score %d out of range [%d,%d]", score, MinScore, MaxScore), data)
	}

	feedback := deref(resp.Feedback)
	if feedback == "" {
		return Result{}, schemaError(errors.New("missing feedback"), data)
	}

	return Result{
		GraderType:   GraderAI,
		Score:        int(score),
		Feedback:     feedback,
		Strengths:    deref(resp.Strengths),
		Improvements: deref(resp.Improvements),
		Analysis:     deref(resp.Analysis),
	}, nil
}

// CheckResult rejects a result from any oracle whose score is outside [1,5] or whose feedback is blank.
func CheckResult(r Result) error {
	if r.Score < MinScore || r.Score > MaxScore {
		return &core.GradingOracleError{
			Kind: core.OracleSchema,
			Err:  errors.Errorf("score %d out of range [%d,%d]", r.Score, MinScore, MaxScore),
		}
	}
	if strings.TrimSpace(r.Feedback) == "" {
		return &core.GradingOracleError{Kind: core.OracleSchema, Err: errors.New("missing feedback")}
	}
	return nil
}

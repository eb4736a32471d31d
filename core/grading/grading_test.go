package grading

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Result
		wantErr bool
	}{
		{
			name: "valid",
			body: `{"score": 4, "feedback": " Good work ", "strengths": "clear layout", "improvements": "add alt text", "analysis": "semantic html"}`,
			want: Result{GraderType: GraderAI, Score: 4, Feedback: "Good work", Strengths: "clear layout", Improvements: "add alt text", Analysis: "semantic html"},
		},
		{name: "optional fields missing", body: `{"score": 1, "feedback": "Try again"}`, want: Result{GraderType: GraderAI, Score: 1, Feedback: "Try again"}},
		{name: "not json", body: `Sure! Here is the grade`, wantErr: true},
		{name: "missing score", body: `{"feedback": "ok"}`, wantErr: true},
		{name: "score zero", body: `{"score": 0, "feedback": "ok"}`, wantErr: true},
		{name: "score too high", body: `{"score": 6, "feedback": "ok"}`, wantErr: true},
		{name: "fractional score", body: `{"score": 3.5, "feedback": "ok"}`, wantErr: true},
		{name: "empty feedback", body: `{"score": 3, "feedback": "  "}`, wantErr: true},
		{name: "strengths not a string", body: `{"score": 3, "feedback": "ok", "strengths": ["a", "b"]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseResult() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var oErr *core.GradingOracleError
				if !assert.ErrorAs(t, err, &oErr) {
					return
				}
				assert.Equal(t, core.OracleSchema, oErr.Kind)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckResult(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		wantErr bool
	}{
		{name: "valid", result: Result{Score: 5, Feedback: "Great"}},
		{name: "score zero", result: Result{Score: 0, Feedback: "Great"}, wantErr: true},
		{name: "score too high", result: Result{Score: 6, Feedback: "Great"}, wantErr: true},
		{name: "blank feedback", result: Result{Score: 3, Feedback: " "}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckResult(tt.result)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var oErr *core.GradingOracleError
			if assert.ErrorAs(t, err, &oErr) {
				assert.Equal(t, core.OracleSchema, oErr.Kind)
			}
		})
	}
}

func TestNewManualResult(t *testing.T) {
	v := core.NewValidator(validator.New(), core.NewTranslator())

	tests := []struct {
		name       string
		grade      ManualGrade
		wantFields []string
	}{
		{name: "valid", grade: ManualGrade{Score: 4, Feedback: "Good work", GraderID: "trainer-1"}},
		{name: "score too low", grade: ManualGrade{Score: 0, Feedback: "Good work"}, wantFields: []string{"score"}},
		{name: "score too high", grade: ManualGrade{Score: 6, Feedback: "Good work"}, wantFields: []string{"score"}},
		{name: "blank feedback", grade: ManualGrade{Score: 3, Feedback: "   "}, wantFields: []string{"feedback"}},
		{name: "both invalid", grade: ManualGrade{Score: 9}, wantFields: []string{"score", "feedback"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewManualResult(v, tt.grade)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("NewManualResult() unexpected error = %v", err)
				}
				assert.Equal(t, Result{GraderType: GraderManual, Score: 4, Feedback: "Good work", GradedBy: "trainer-1"}, got)
				return
			}

			var vErr *core.ValidationError
			if !assert.ErrorAs(t, err, &vErr) {
				return
			}
			fields := make([]string, 0, len(vErr.Fields))
			for _, f := range vErr.Fields {
				fields = append(fields, f.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestContext_IsImage(t *testing.T) {
	tests := []struct {
		fileURL string
		want    bool
	}{
		{fileURL: "", want: false},
		{fileURL: "https://cdn.test/uploads/mockup.PNG", want: true},
		{fileURL: "https://cdn.test/uploads/photo.jpeg?token=abc", want: true},
		{fileURL: "https://cdn.test/uploads/report.pdf", want: false},
		{fileURL: "uploads/sketch.webp", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.fileURL, func(t *testing.T) {
			if got := (Context{FileURL: tt.fileURL}).IsImage(); got != tt.want {
				t.Errorf("IsImage() = %v, want %v", got, tt.want)
			}
		})
	}
}

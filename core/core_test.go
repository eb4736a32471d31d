package core

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TEST_GRADING_TIMEOUT", "30s")
	t.Setenv("TEST_SERVER_ADDRESS", ":9000")

	conf := NewConfig()
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.TestMode)
	assert.Equal(t, "disabled", conf.Grading.Backend)
	assert.Equal(t, 30*time.Second, conf.Grading.Timeout)
	assert.Equal(t, ":9000", conf.Server.Address)
	assert.Equal(t, 10*time.Minute, conf.Grading.StaleAfter)
	assert.Equal(t, "localhost:5432", conf.Database.Address())
}

func TestConfig_DefaultFrom(t *testing.T) {
	conf := &Config{AppName: "Darasa", DefaultFromEmail: "Darasa Team <team@darasa.test>"}
	assert.Equal(t, "Darasa Team", conf.DefaultFrom().Name)
	assert.Equal(t, "team@darasa.test", conf.DefaultFrom().Address)

	conf.DefaultFromEmail = "not an address"
	assert.Equal(t, "Darasa", conf.DefaultFrom().Name)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
		msg  string
	}{
		{name: "validation", err: NewValidationError(nil, FieldError{Field: "score", Error: "too high"}), is: IsValidation, msg: "score: too high"},
		{name: "not found", err: NewNotFoundError("submission", "s1"), is: IsNotFound, msg: "submission not found"},
		{name: "conflict", err: NewConflictError("submission is already %s", "graded"), is: IsConflict, msg: "submission is already graded"},
		{name: "not eligible", err: NewNotEligibleError("modules left"), is: IsNotEligible, msg: "not eligible: modules left"},
		{
			name: "oracle",
			err:  &GradingOracleError{Kind: OracleStatus, StatusCode: 503, Err: errors.New("unavailable")},
			is:   IsGradingOracle,
			msg:  "grading oracle status error (status 503): unavailable",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.msg, tc.err.Error())
			wrapped := errors.Wrap(tc.err, "doing something")
			if !tc.is(wrapped) {
				t.Errorf("predicate(%v) = false; want true", wrapped)
			}
			if tc.is(errors.New("other")) {
				t.Error("predicate(other) = true; want false")
			}
		})
	}

	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("stop"), "server")))
}

func TestValidator_Struct(t *testing.T) {
	v := NewValidator(validator.New(), NewTranslator())

	type deliverable struct {
		FileRef       string `json:"file_ref" validate:"required_without=SubmissionURL"`
		SubmissionURL string `json:"submission_url" validate:"required_without=FileRef,omitempty,url"`
		Score         int    `json:"score" validate:"min=1,max=5"`
	}

	require.NoError(t, v.Struct(deliverable{SubmissionURL: "https://example.com", Score: 3}))

	err := v.Struct(deliverable{Score: 9})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "error = %v", err)
	fields := make(map[string]string)
	for _, f := range vErr.Fields {
		fields[f.Field] = f.Error
	}
	assert.Equal(t, "file_ref is required when submission_url is not provided", fields["file_ref"])
	assert.Contains(t, fields, "score")

	err = v.Struct(deliverable{SubmissionURL: "nope", Score: 1})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "enter a valid URL", vErr.Fields[0].Error)
}

func TestUtil(t *testing.T) {
	assert.Equal(t, "abc", CleanString("  abc \n"))
	assert.Equal(t, "abc", CleanString(" ABC ", true))
	assert.Equal(t, 4.33, Round(13.0/3, 2))
	assert.Equal(t, 0.7, Round(40.0/60, 1))
	assert.Equal(t, 0, Percentage(3, 0))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, time.UTC, NowUTC().Location())
}

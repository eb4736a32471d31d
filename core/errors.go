package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

type ConflictError struct {
	Message string
}

func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func (err ConflictError) Error() string {
	return err.Message
}

type NotEligibleError struct {
	Reason string
}

func NewNotEligibleError(reason string) error {
	return &NotEligibleError{Reason: reason}
}

func (err NotEligibleError) Error() string {
	return "not eligible: " + err.Reason
}

// Grading oracle failure kinds.
const (
	OracleTransport = "transport"
	OracleTimeout   = "timeout"
	OracleStatus    = "status"
	OracleSchema    = "schema"
	OracleDisabled  = "disabled"
)

type GradingOracleError struct {
	Kind       string
	StatusCode int
	Body       string
	Err        error
}

func (err GradingOracleError) Error() string {
	msg := "grading oracle " + err.Kind + " error"
	if err.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", err.StatusCode)
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err GradingOracleError) Unwrap() error {
	return err.Err
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsNotEligible(err error) bool {
	var target *NotEligibleError
	return errors.As(err, &target)
}

func IsGradingOracle(err error) bool {
	var target *GradingOracleError
	return errors.As(err, &target)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// Package apperr defines the structured error type shared by the pipeline core.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Validation errors
	CodeBadRequest     = "BAD_REQUEST"
	CodeMalformedInput = "MALFORMED_INPUT"
	CodeMissingField   = "MISSING_FIELD"

	// Resource errors
	CodeNotFound           = "NOT_FOUND"
	CodeUniquenessConflict = "UNIQUENESS_CONFLICT"

	// Pipeline errors
	CodeIllegalStageTransition  = "ILLEGAL_STAGE_TRANSITION"
	CodeTransientClassification = "TRANSIENT_CLASSIFICATION"
	CodeRecordFrozen            = "RECORD_FROZEN"

	// External errors
	CodeDatabaseError = "DATABASE_ERROR"
	CodeExternalError = "EXTERNAL_ERROR"

	// Internal errors
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
	CodeTimeout       = "TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Validation errors
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// MalformedInput flags input that is missing required fields. The pipeline
// raises this immediately instead of defaulting silently.
func MalformedInput(reason string) *AppError {
	return &AppError{
		Code:    CodeMalformedInput,
		Message: reason,
		Status:  http.StatusBadRequest,
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

// Resource errors
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// UniquenessConflict is raised when a write would violate a uniqueness
// invariant (one job per thread, one pipeline record per message). The
// conflict is retryable: the caller should attach to the existing row.
func UniquenessConflict(constraint string, err error) *AppError {
	return &AppError{
		Code:    CodeUniquenessConflict,
		Message: fmt.Sprintf("uniqueness conflict on %s", constraint),
		Status:  http.StatusConflict,
		Details: map[string]any{"constraint": constraint},
		Err:     err,
	}
}

// Pipeline errors
func IllegalStageTransition(from, to string) *AppError {
	return &AppError{
		Code:    CodeIllegalStageTransition,
		Message: fmt.Sprintf("illegal pipeline stage transition: %s -> %s", from, to),
		Status:  http.StatusConflict,
		Details: map[string]any{"from": from, "to": to},
	}
}

// TransientClassification flags a failed or timed-out classifier/matcher call
// for a single unit. The batch loop logs it, skips the unit, and continues.
func TransientClassification(unit string, err error) *AppError {
	return &AppError{
		Code:    CodeTransientClassification,
		Message: fmt.Sprintf("classification failed for %s", unit),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"unit": unit},
		Err:     err,
	}
}

// RecordFrozen flags an attempt to advance a pipeline record that human
// review has rejected.
func RecordFrozen(messageID string) *AppError {
	return &AppError{
		Code:    CodeRecordFrozen,
		Message: fmt.Sprintf("pipeline record %s was rejected by review and cannot advance", messageID),
		Status:  http.StatusConflict,
	}
}

// External errors
func DatabaseError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeDatabaseError,
		Message: fmt.Sprintf("database error: %s", operation),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ExternalError(service string, err error) *AppError {
	return &AppError{
		Code:    CodeExternalError,
		Message: fmt.Sprintf("external service error: %s", service),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// Internal errors
func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ConfigError(message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func Timeout(operation string) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("operation timed out: %s", operation),
		Status:  http.StatusGatewayTimeout,
	}
}

// Helper functions
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

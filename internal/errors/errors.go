package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeStoreWrite         = "STORE_WRITE"
	CodeStoreRead          = "STORE_READ"
	CodeSummaryUnavailable = "SUMMARY_UNAVAILABLE"
	CodeCacheFault         = "CACHE_FAULT"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeGenerationFailed   = "GENERATION_FAILED"
)

// RecallError is a structured error with a code and actionable suggestion.
type RecallError struct {
	Code       string // machine-readable code (e.g. STORE_WRITE)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *RecallError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *RecallError) Unwrap() error {
	return e.Err
}

// New creates a RecallError with the given code and message.
func New(code, message string) *RecallError {
	return &RecallError{Code: code, Message: message}
}

// Wrap creates a RecallError wrapping an existing error.
func Wrap(code, message string, err error) *RecallError {
	return &RecallError{Code: code, Message: message, Err: err}
}

// WithSuggestion returns a copy with the suggestion set.
func (e *RecallError) WithSuggestion(suggestion string) *RecallError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *RecallError) Is(target error) bool {
	var re *RecallError
	if errors.As(target, &re) {
		return e.Code == re.Code
	}
	return false
}

// AsCode extracts the RecallError code from an error, or "" if not a RecallError.
func AsCode(err error) string {
	var re *RecallError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// Suggestion extracts the suggestion from an error, or "" if not a RecallError.
func Suggestion(err error) string {
	var re *RecallError
	if errors.As(err, &re) {
		return re.Suggestion
	}
	return ""
}

// IsValidation reports whether err carries the VALIDATION_FAILED code.
func IsValidation(err error) bool {
	return AsCode(err) == CodeValidationFailed
}

// IsStoreWrite reports whether err carries the STORE_WRITE code.
func IsStoreWrite(err error) bool {
	return AsCode(err) == CodeStoreWrite
}

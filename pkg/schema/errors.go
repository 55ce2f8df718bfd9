package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeCycleDetected = "CYCLE_DETECTED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeExecution     = "EXECUTION_ERROR"
	ErrCodeImport        = "IMPORT_ERROR"
	ErrCodeStore         = "STORE_ERROR"
)

// WeaveError is the structured error type for all taskweave operations.
type WeaveError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *WeaveError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *WeaveError) Unwrap() error {
	return e.Cause
}

// NewError creates a new WeaveError.
func NewError(code, message string) *WeaveError {
	return &WeaveError{Code: code, Message: message}
}

// NewErrorf creates a new WeaveError with a formatted message.
func NewErrorf(code, format string, args ...any) *WeaveError {
	return &WeaveError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *WeaveError) WithStep(stepID string) *WeaveError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *WeaveError) WithCause(err error) *WeaveError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *WeaveError) WithDetails(details map[string]any) *WeaveError {
	e.Details = details
	return e
}

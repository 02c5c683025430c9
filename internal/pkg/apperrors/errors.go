package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	// Authentication errors
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("invalid token")
	ErrInvalidFormat = errors.New("invalid token format")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
)

// Lifecycle errors
var (
	// ErrInvalidTransition is returned when a requested state change is not
	// reachable from the application's current state. Nothing is mutated.
	ErrInvalidTransition = errors.New("transition not allowed from current state")

	// ErrConcurrentModification is returned when the compare-and-set state
	// update lost a race. The caller must re-read and retry.
	ErrConcurrentModification = errors.New("application was modified concurrently")
)

// Notification errors
var (
	// ErrConfigurationInvalid is surfaced when an automation is saved with a
	// malformed audience filter, trigger, or schedule. It is never raised at
	// dispatch time.
	ErrConfigurationInvalid = errors.New("automation configuration invalid")

	// ErrDispatchFailed marks a single recipient's render/send failure. It is
	// recorded in the delivery log and never propagated to the caller.
	ErrDispatchFailed = errors.New("notification dispatch failed")

	// ErrAlreadySentThisPeriod is returned by a manual run of a scheduled
	// automation that already fired in the current period and was not forced.
	ErrAlreadySentThisPeriod = errors.New("automation already sent this period")
)

// Application errors
var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrSectionNotFound     = errors.New("section not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrAutomationNotFound  = errors.New("automation not found")
)

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// NewConfigurationError wraps ErrConfigurationInvalid with a message.
func NewConfigurationError(message string) error {
	return &CustomError{
		Err:     ErrConfigurationInvalid,
		Message: message,
	}
}

// NewResourceNotFoundError creates a new custom error for resource not found
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

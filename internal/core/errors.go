package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatExecution  ErrorCategory = "execution"  // Runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatRateLimit  ErrorCategory = "rate_limit" // API rate limited
	ErrCatState      ErrorCategory = "state"      // Invalid state transition
	ErrCatAuth       ErrorCategory = "auth"       // Authentication failure
	ErrCatNetwork    ErrorCategory = "network"    // Network connectivity
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatConflict   ErrorCategory = "conflict"   // Concurrent modification
	ErrCatStorage    ErrorCategory = "storage"    // File system failure
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrExecution creates an execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatState,
		Code:     code,
		Message:  message,
	}
}

// ErrConflict creates a conflict error.
func ErrConflict(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatConflict,
		Code:     code,
		Message:  message,
	}
}

// ErrAuth creates an authentication error.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category: ErrCatAuth,
		Code:     "AUTH_FAILED",
		Message:  message,
	}
}

// ErrNetwork creates a network error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "NETWORK_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrStorage creates a storage error.
func ErrStorage(message string) *DomainError {
	return &DomainError{
		Category: ErrCatStorage,
		Code:     CodeStorageFailure,
		Message:  message,
	}
}

// ErrUnknownTool creates the error returned for an unregistered tool name.
func ErrUnknownTool(name string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     CodeUnknownTool,
		Message:  fmt.Sprintf("unknown tool: %s", name),
		Details:  map[string]interface{}{"tool": name},
	}
}

// ErrMalformedPlan creates the error returned when a planner response cannot be used.
func ErrMalformedPlan(message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     CodeMalformedPlan,
		Message:  message,
	}
}

// ErrInvalidParameter creates a typed parameter error for a tool call.
func ErrInvalidParameter(tool, param, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     CodeInvalidParameter,
		Message:  fmt.Sprintf("%s: parameter %q %s", tool, param, message),
		Details: map[string]interface{}{
			"tool":      tool,
			"parameter": param,
		},
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code == code
	}
	return false
}

// Predefined error codes
const (
	CodeJobNotFound       = "JOB_NOT_FOUND"
	CodeJobExists         = "JOB_EXISTS"
	CodeInvalidState      = "INVALID_STATE"
	CodeRunActive         = "RUN_ACTIVE"
	CodeCancelled         = "CANCELLED"
	CodeAgentUnavailable  = "AGENT_UNAVAILABLE"
	CodePlanningFailed    = "PLANNING_FAILED"
	CodeToolFailed        = "TOOL_EXECUTION_FAILED"
	CodeStorageFailure    = "STORAGE_FAILURE"
	CodeStateCorrupted    = "STATE_CORRUPTED"
	CodeCapacityExhausted = "CAPACITY_EXHAUSTED"

	// Validation error codes
	CodeEmptyPrompt       = "EMPTY_PROMPT"
	CodePromptTooLong     = "PROMPT_TOO_LONG"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeUnknownTool       = "UNKNOWN_TOOL"
	CodeMalformedPlan     = "MALFORMED_PLAN_RESPONSE"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeEmptyPlan         = "EMPTY_PLAN"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
)

// MaxPromptLength is the maximum allowed prompt length.
const MaxPromptLength = 4000

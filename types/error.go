package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Workflow execution error codes.
const (
	ErrValidation      ErrorCode = "VALIDATION_ERROR"
	ErrGraphNavigation ErrorCode = "GRAPH_NAVIGATION_ERROR"
	ErrIterationLimit  ErrorCode = "ITERATION_LIMIT_ERROR"
	ErrTemplate        ErrorCode = "TEMPLATE_ERROR"
	ErrExecutor        ErrorCode = "EXECUTOR_ERROR"
	ErrSubWorkflow     ErrorCode = "SUB_WORKFLOW_ERROR"
	ErrStateUpdate     ErrorCode = "STATE_UPDATE_ERROR"
	ErrCancellation    ErrorCode = "CANCELLATION_ERROR"
)

// General request/infra error codes, carried over from the ambient stack.
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrAuthentication     ErrorCode = "AUTHENTICATION"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// NewValidationError reports a structural problem found before traversal
// begins (missing start node, dangling edge, duplicate node id, ...).
func NewValidationError(message string) *Error {
	return &Error{Code: ErrValidation, Message: message, HTTPStatus: 400}
}

// NewGraphNavigationError reports a failure to determine the next node to
// visit (no matching edge, dynamic rule returned an unknown node id, ...).
func NewGraphNavigationError(message string) *Error {
	return &Error{Code: ErrGraphNavigation, Message: message, HTTPStatus: 400}
}

// NewIterationLimitError reports that an execution exceeded its configured
// maxIterations bound.
func NewIterationLimitError(message string) *Error {
	return &Error{Code: ErrIterationLimit, Message: message, HTTPStatus: 409}
}

// NewTemplateError reports a failure while expanding a `{{expr}}` template
// or evaluating an expression.
func NewTemplateError(message string) *Error {
	return &Error{Code: ErrTemplate, Message: message, HTTPStatus: 400}
}

// NewExecutorError reports a failure raised by a node's executor.
func NewExecutorError(message string) *Error {
	return &Error{Code: ErrExecutor, Message: message, HTTPStatus: 502, Retryable: true}
}

// NewSubWorkflowError reports a failure that occurred while recursively
// executing a sub-workflow.
func NewSubWorkflowError(message string) *Error {
	return &Error{Code: ErrSubWorkflow, Message: message, HTTPStatus: 502}
}

// NewStateUpdateError reports a failure while applying a setState rule.
func NewStateUpdateError(message string) *Error {
	return &Error{Code: ErrStateUpdate, Message: message, HTTPStatus: 400}
}

// NewCancellationError reports that an execution was cancelled via its
// context before completing.
func NewCancellationError(message string) *Error {
	return &Error{Code: ErrCancellation, Message: message, HTTPStatus: 499}
}

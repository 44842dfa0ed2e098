package switchboard

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine readable identifier of an API error. It is
// stable across releases and independent of the human message.
type ErrorCode string

// Default error codes.
const (
	CodeBadRequest          ErrorCode = "BadRequest"
	CodeUnauthorized        ErrorCode = "Unauthorized"
	CodeForbidden           ErrorCode = "Forbidden"
	CodeNotFound            ErrorCode = "NotFound"
	CodeConflict            ErrorCode = "Conflict"
	CodeValidationError     ErrorCode = "ValidationError"
	CodeInternalServerError ErrorCode = "InternalServerError"
)

var (
	// ErrNoStrategy is wrapped when a request kind has no dispatch strategy.
	ErrNoStrategy = errors.New("no strategy for request kind")

	// ErrNoAuthorizer is wrapped when an authorizer request reaches a
	// handler that never declared one.
	ErrNoAuthorizer = errors.New("no authorizer declared")

	// ErrNoSource is wrapped when a batch record carries an origin no
	// registered source recognizes.
	ErrNoSource = errors.New("no source for record")

	// ErrNoTarget is wrapped when no event registration matches a record.
	ErrNoTarget = errors.New("no handler found to handle the incoming record")
)

// FieldError describes one failed field of a validated payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is the single error type of the taxonomy. Each kind is an
// APIError with its own Status and Code; see the New* constructors.
type APIError struct {
	Status   int
	Code     ErrorCode
	Message  string
	Metadata map[string]any
	Fields   []FieldError
	Err      error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *APIError) Unwrap() error { return e.Err }

// WithMetadata attaches a free-form metadata entry and returns e.
func (e *APIError) WithMetadata(key string, value any) *APIError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// Wrap records cause as the underlying error and returns e.
func (e *APIError) Wrap(cause error) *APIError {
	e.Err = cause
	return e
}

func newAPIError(status int, code ErrorCode, msg string) *APIError {
	return &APIError{Status: status, Code: code, Message: msg}
}

// NewBadRequest creates a 400 error.
func NewBadRequest(msg string) *APIError {
	return newAPIError(http.StatusBadRequest, CodeBadRequest, msg)
}

// NewUnauthorized creates a 401 error.
func NewUnauthorized(msg string) *APIError {
	return newAPIError(http.StatusUnauthorized, CodeUnauthorized, msg)
}

// NewForbidden creates a 403 error. An empty message defaults to "Forbidden".
func NewForbidden(msg string) *APIError {
	if msg == "" {
		msg = "Forbidden"
	}
	return newAPIError(http.StatusForbidden, CodeForbidden, msg)
}

// NewNotFound creates a 404 error.
func NewNotFound(msg string) *APIError {
	return newAPIError(http.StatusNotFound, CodeNotFound, msg)
}

// NewConflict creates a 409 error.
func NewConflict(msg string) *APIError {
	return newAPIError(http.StatusConflict, CodeConflict, msg)
}

// NewInternal creates a 500 error.
func NewInternal(msg string) *APIError {
	return newAPIError(http.StatusInternalServerError, CodeInternalServerError, msg)
}

// NewValidationError creates a 400 error carrying field level failures.
func NewValidationError(fields ...FieldError) *APIError {
	e := newAPIError(http.StatusBadRequest, CodeValidationError, "Validation error")
	e.Fields = fields
	return e
}

// AsAPIError reports whether err is, or wraps, an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status an error converts to. Errors outside
// the taxonomy are internal server errors.
func StatusOf(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// IsInternal reports whether err converts to a 500 response.
func IsInternal(err error) bool {
	return StatusOf(err) == http.StatusInternalServerError
}

// validatable is the interface for payload validation.
// Compatible with github.com/go-ozzo/ozzo-validation/v4.
type validatable interface {
	Validate() error
}

// validate runs Validate on v when it implements validatable.
// Failures that are not already API errors become a ValidationError.
func validate(v any) error {
	val, ok := v.(validatable)
	if !ok {
		return nil
	}
	err := val.Validate()
	if err == nil {
		return nil
	}
	if _, ok := AsAPIError(err); ok {
		return err
	}
	return NewValidationError(FieldError{Message: err.Error()}).Wrap(err)
}

package rivet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Configuration failures are raised at bind/registration time, never deferred
// to request time. Lookup failures come from the Store collaborator and are
// propagated untouched for the transport layer to translate.
var (
	// ErrNotFound is returned by Store implementations when a lookup
	// matches no instance.
	ErrNotFound = errors.New("not found")

	// ErrMultipleFound is returned by Store implementations when a get-one
	// lookup matches more than one instance.
	ErrMultipleFound = errors.New("multiple objects found")

	// ErrFieldNotFound reports a path placeholder or payload field that
	// does not exist on the resource model.
	ErrFieldNotFound = errors.New("field not found")

	// ErrUnsupportedFieldType reports a model field with no entry in the
	// path-parameter type mapping table.
	ErrUnsupportedFieldType = errors.New("unsupported field type")
)

// ConfigError reports an invalid view or viewset configuration discovered at
// bind time: a missing model, an unresolvable path placeholder, a re-bound
// view, or an empty method set.
type ConfigError struct {
	View   string // view name, if known
	Reason string
	Err    error // underlying cause, optional
}

func (e *ConfigError) Error() string {
	name := e.View
	if name == "" {
		name = "view"
	} else {
		name = fmt.Sprintf("view %q", name)
	}
	if e.Err != nil {
		return fmt.Sprintf("rivet: %s: %s: %v", name, e.Reason, e.Err)
	}
	return fmt.Sprintf("rivet: %s: %s", name, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(view string, err error, format string, args ...any) *ConfigError {
	return &ConfigError{View: view, Reason: fmt.Sprintf(format, args...), Err: err}
}

// FieldError wraps ErrFieldNotFound or ErrUnsupportedFieldType with the model
// and field that failed to resolve.
type FieldError struct {
	Model string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("rivet: field %q on model %s: %v", e.Field, e.Model, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ErrorCode represents a machine-readable error code in the transport
// envelope.
type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "invalid_argument"
	CodeNotFound         ErrorCode = "not_found"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeConflict         ErrorCode = "conflict"
	CodeCanceled         ErrorCode = "canceled"
	CodeInternal         ErrorCode = "internal"
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
)

// Error is the standard JSON error envelope written by the HTTP pipeline.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new transport error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new transport error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of the error with the key-value pair added to
// details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Code: e.Code, Message: e.Message, Details: details}
}

// ErrorTransformer maps an application error to a transport error. Returning
// nil falls through to DefaultErrorTransformer.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer maps store, validation and context errors to
// transport errors. Anything unrecognized becomes an internal error.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var transportErr *Error
	if errors.As(err, &transportErr) {
		return transportErr
	}

	if errors.Is(err, ErrNotFound) {
		return NewError(CodeNotFound, "not found")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeDeadlineExceeded, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewError(CodeCanceled, "context canceled")
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any)
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := formatValidationError(ve)
			details[ve.Field()] = msg
			messages = append(messages, ve.Field()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidArgument,
			Message: strings.Join(messages, "; "),
			Details: details,
		}
	}

	return NewError(CodeInternal, err.Error())
}

func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

// HTTPStatus maps an ErrorCode to an HTTP status code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeConflict:
		return http.StatusConflict
	case CodeCanceled:
		return 499 // Client Closed Request (Nginx standard)
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Package errs defines the structured error types shared by the repository
// engines, the binding registry and the projection adapter.
//
// Every error carries a machine-readable [Code]. Use errors.Is with one of the
// sentinel values ([ErrNotFound], [ErrDuplicateKey], ...) to classify an error
// regardless of its message or details.
package errs

import (
	"fmt"
	"maps"
)

// Code classifies an error.
type Code string

const (
	// CodeConfiguration is returned when a record type is not, or cannot be, bound.
	CodeConfiguration Code = "CONFIGURATION"
	// CodeNotFound is returned when an identifier lookup misses.
	CodeNotFound Code = "NOT_FOUND"
	// CodeDuplicateKey is returned when an insert collides with an existing identifier.
	CodeDuplicateKey Code = "DUPLICATE_KEY"
	// CodeMaterialization is returned when an attribute cannot be read while building a row.
	CodeMaterialization Code = "MATERIALIZATION"
	// CodeMalformedGeometry is returned when a geometry is structurally invalid.
	CodeMalformedGeometry Code = "MALFORMED_GEOMETRY"
	// CodeStorage is returned when a durable engine fails to read or write its backing store.
	CodeStorage Code = "STORAGE"
	// CodeInvalidQuery is returned when a composed query references an unknown column or operator.
	CodeInvalidQuery Code = "INVALID_QUERY"
)

// Sentinels to use with errors.Is. They only match on Code.
var (
	ErrConfiguration     = &Error{code: CodeConfiguration, message: "configuration error"}
	ErrNotFound          = &Error{code: CodeNotFound, message: "not found"}
	ErrDuplicateKey      = &Error{code: CodeDuplicateKey, message: "duplicate key"}
	ErrMaterialization   = &Error{code: CodeMaterialization, message: "materialization error"}
	ErrMalformedGeometry = &Error{code: CodeMalformedGeometry, message: "malformed geometry"}
	ErrStorage           = &Error{code: CodeStorage, message: "storage error"}
	ErrInvalidQuery      = &Error{code: CodeInvalidQuery, message: "invalid query"}
)

// Error is a concrete error type with a code and optional details.
type Error struct {
	code       Code
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		code:    code,
		message: message,
		details: make(map[string]any),
	}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	maps.Copy(e.details, details)
	return e
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

// Predefined error constructors.

// Configuration creates an error for a record type that cannot be bound.
func Configuration(typeName, reason string) *Error {
	return New(CodeConfiguration, fmt.Sprintf("type %s: %s", typeName, reason)).WithDetail("type", typeName)
}

// NotFound creates an error for a missing identifier.
func NotFound(id uint32) *Error {
	return New(CodeNotFound, fmt.Sprintf("no record with id %d", id)).WithDetail("id", id)
}

// NoMatch creates a not found error for a predicate lookup.
func NoMatch() *Error {
	return New(CodeNotFound, "no record matches")
}

// DuplicateKey creates an error for an insert that collides with an existing identifier.
func DuplicateKey(id uint32) *Error {
	return New(CodeDuplicateKey, fmt.Sprintf("record with id %d already exists", id)).WithDetail("id", id)
}

// Materialization creates an error for an attribute that failed to read.
func Materialization(id uint32, column string, err error) *Error {
	return New(CodeMaterialization, fmt.Sprintf("failed to materialize column %q of record %d", column, id)).
		WithDetails(map[string]any{"id": id, "column": column}).
		Wrap(err)
}

// MalformedGeometry creates an error for a structurally invalid geometry.
func MalformedGeometry(reason string) *Error {
	return New(CodeMalformedGeometry, reason)
}

// Storage wraps a failure of a durable engine.
func Storage(message string, err error) *Error {
	return New(CodeStorage, message).Wrap(err)
}

// InvalidQuery creates an error for a query that cannot be evaluated.
func InvalidQuery(reason string) *Error {
	return New(CodeInvalidQuery, reason)
}

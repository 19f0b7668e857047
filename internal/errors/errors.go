// Package errors provides a lightweight structured error type for
// category-based classification across the build pipeline and CLI.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Category classifies a build error for reporting and exit handling.
type Category string

const (
	// Configuration and input errors (abort before any output is written)
	CategoryConfig    Category = "config"
	CategoryContent   Category = "content"
	CategoryLayout    Category = "layout"
	CategoryCollision Category = "collision"

	// Output and publishing errors
	CategoryEmit   Category = "emit"
	CategoryDeploy Category = "deploy"

	// Everything else
	CategoryInternal Category = "internal"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // Stops the build
	SeverityError   Severity = "error"   // Error, but not fatal
	SeverityWarning Severity = "warning" // Continues with degraded output
)

// ContextFields carries structured context for an Error.
type ContextFields map[string]any

// Error is a structured error with category, severity, and context.
type Error struct {
	Category Category      `json:"category"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(category Category, severity Severity, message string) *Error {
	return &Error{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(err error, category Category, severity Severity, message string) *Error {
	return &Error{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// NewConfig creates a fatal configuration error. Configuration errors
// always abort the build before any output is produced.
func NewConfig(message string) *Error {
	return New(CategoryConfig, SeverityFatal, message)
}

// WrapConfig wraps an error as a fatal configuration error.
func WrapConfig(err error, message string) *Error {
	return Wrap(err, CategoryConfig, SeverityFatal, message)
}

// NewContent creates a content error for a single source document. The
// caller decides whether it is fatal or a skip-with-warning based on the
// configured skip-invalid mode.
func NewContent(severity Severity, message string) *Error {
	return New(CategoryContent, severity, message)
}

// WrapContent wraps an error as a content error.
func WrapContent(err error, severity Severity, message string) *Error {
	return Wrap(err, CategoryContent, severity, message)
}

// NewCollision creates a fatal output path collision error naming both
// conflicting source paths.
func NewCollision(outputPath, sourceA, sourceB string) *Error {
	e := New(CategoryCollision, SeverityFatal,
		fmt.Sprintf("output path %q produced by both %q and %q", outputPath, sourceA, sourceB))
	return e.WithContext("output", outputPath).
		WithContext("source_a", sourceA).
		WithContext("source_b", sourceB)
}

// IsFatal reports whether err is (or wraps) a fatal Error.
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Severity == SeverityFatal
	}
	return false
}

// HasCategory reports whether err is (or wraps) an Error of the given category.
func HasCategory(err error, category Category) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Category == category
	}
	return false
}

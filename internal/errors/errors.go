// Package errors provides the structured error taxonomy for docindex.
// Errors carry a stable code and a category so callers can distinguish
// absent data, bad input, transient fetch failures, persistence failures,
// and embedding-provider failures without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies an error by the subsystem and recovery strategy.
type Category string

const (
	// CategoryNotFound marks absent documents, sections, or collections.
	// Read paths generally report absence as a nil result instead; this
	// category exists for write paths that require the target to exist.
	CategoryNotFound Category = "not_found"

	// CategoryValidation marks malformed manifests or source specs.
	// Aborts the operation that triggered it.
	CategoryValidation Category = "validation"

	// CategoryFetch marks network or filesystem failures reading a source
	// entry. Recoverable per-entry during sync; fatal for bundle/git
	// acquisition where the whole source is unreadable.
	CategoryFetch Category = "fetch"

	// CategoryStore marks persistence failures. The enclosing transaction
	// is rolled back; no partial chunk state is left behind.
	CategoryStore Category = "store"

	// CategoryProvider marks embedding or re-ranking call failures.
	// No automatic retry inside the core.
	CategoryProvider Category = "provider"
)

// Error is the structured error type for docindex.
type Error struct {
	// Code is the unique error code (e.g. "ERR_SYNC_MANIFEST").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category classifies the error.
	Category Category

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether the operation may succeed on retry.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is with sentinel values.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new Error with an explicit category.
func New(code string, category Category, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  category,
		Cause:     cause,
		Retryable: category == CategoryFetch || category == CategoryProvider,
	}
}

// NotFound creates a not-found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, CategoryNotFound, message, nil)
}

// Validation creates a validation error.
func Validation(message string, cause error) *Error {
	return New(CodeValidation, CategoryValidation, message, cause)
}

// Fetch creates a fetch error for one source entry.
func Fetch(message string, cause error) *Error {
	return New(CodeFetch, CategoryFetch, message, cause)
}

// Store creates a persistence error.
func Store(message string, cause error) *Error {
	return New(CodeStore, CategoryStore, message, cause)
}

// Provider creates an embedding/re-ranking provider error.
func Provider(message string, cause error) *Error {
	return New(CodeProvider, CategoryProvider, message, cause)
}

// GetCategory extracts the category from an error chain.
// Returns empty string when no structured error is present.
func GetCategory(err error) Category {
	var de *Error
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}

// IsRetryable reports whether the error chain contains a retryable error.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// IsNotFound reports whether the error chain contains a not-found error.
func IsNotFound(err error) bool {
	return GetCategory(err) == CategoryNotFound
}

// IsValidation reports whether the error chain contains a validation error.
func IsValidation(err error) bool {
	return GetCategory(err) == CategoryValidation
}

// Package errhandling provides error types and classification for row filter runs.
// This file defines error categories, the malformed row error, and the helpers
// the runtime uses to decide how a failure is reported.
package errhandling

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrorCategory represents the type/category of an error.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryNotFound represents a missing source file or directory.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryPermission represents a file that cannot be opened or created due to permissions.
	CategoryPermission ErrorCategory = "permission"

	// CategoryIO represents any other filesystem read or write failure.
	CategoryIO ErrorCategory = "io"

	// CategoryMalformed represents a data row that is too short to carry a category field.
	CategoryMalformed ErrorCategory = "malformed"

	// CategoryFormat represents CSV syntax errors (unterminated quotes and similar).
	CategoryFormat ErrorCategory = "format"

	// CategoryCanceled represents a run stopped through its context.
	CategoryCanceled ErrorCategory = "canceled"

	// CategoryUnknown represents unclassified errors.
	CategoryUnknown ErrorCategory = "unknown"
)

// ClassifiedError wraps an error with classification metadata.
type ClassifiedError struct {
	// Category is the error classification category.
	Category ErrorCategory

	// Line is the source line involved (0 if not row related).
	Line int

	// Message is a human-readable error message.
	Message string

	// OriginalErr is the underlying error that was classified.
	OriginalErr error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s error (line %d): %s", e.Category, e.Line, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// MalformedRowError reports a data row with too few fields for the category lookup.
type MalformedRowError struct {
	// Line is the 1-based line where the row starts
	Line int
	// Fields is the number of fields the row has
	Fields int
	// Required is the minimum number of fields a data row must have
	Required int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row at line %d: has %d field(s), need at least %d", e.Line, e.Fields, e.Required)
}

// NewMalformedRowError creates a MalformedRowError.
func NewMalformedRowError(line, fields, required int) *MalformedRowError {
	return &MalformedRowError{Line: line, Fields: fields, Required: required}
}

// IsMalformedRow reports whether err is, or wraps, a MalformedRowError.
func IsMalformedRow(err error) bool {
	var mre *MalformedRowError
	return errors.As(err, &mre)
}

// ClassifyError classifies any error into a ClassifiedError.
// Already classified errors are returned as-is.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return &ClassifiedError{
			Category: CategoryUnknown,
			Message:  "nil error",
		}
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var malformed *MalformedRowError
	if errors.As(err, &malformed) {
		return &ClassifiedError{
			Category:    CategoryMalformed,
			Line:        malformed.Line,
			Message:     malformed.Error(),
			OriginalErr: err,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{
			Category:    CategoryCanceled,
			Message:     "run canceled",
			OriginalErr: err,
		}
	}

	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &ClassifiedError{
			Category:    CategoryFormat,
			Line:        parseErr.Line,
			Message:     parseErr.Err.Error(),
			OriginalErr: err,
		}
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &ClassifiedError{
			Category:    CategoryNotFound,
			Message:     err.Error(),
			OriginalErr: err,
		}
	case errors.Is(err, fs.ErrPermission):
		return &ClassifiedError{
			Category:    CategoryPermission,
			Message:     err.Error(),
			OriginalErr: err,
		}
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return &ClassifiedError{
			Category:    CategoryIO,
			Message:     fmt.Sprintf("%s %s: %v", pathErr.Op, pathErr.Path, pathErr.Err),
			OriginalErr: err,
		}
	}

	return &ClassifiedError{
		Category:    CategoryUnknown,
		Message:     err.Error(),
		OriginalErr: err,
	}
}

// GetErrorCategory returns the error category for a given error.
// Returns CategoryUnknown for nil errors.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	return ClassifyError(err).Category
}

// IsFatal reports whether err must abort the run. Every category is fatal except a
// malformed row when the caller has opted into skipping them.
func IsFatal(err error, skipMalformed bool) bool {
	if err == nil {
		return false
	}
	if skipMalformed && IsMalformedRow(err) {
		return false
	}
	return true
}

// NewIOError creates a ClassifiedError for filesystem failures.
func NewIOError(message string, originalErr error) *ClassifiedError {
	category := CategoryIO
	switch {
	case errors.Is(originalErr, fs.ErrNotExist):
		category = CategoryNotFound
	case errors.Is(originalErr, fs.ErrPermission):
		category = CategoryPermission
	}
	return &ClassifiedError{
		Category:    category,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewFormatError creates a ClassifiedError for CSV syntax errors.
func NewFormatError(line int, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryFormat,
		Line:        line,
		Message:     message,
		OriginalErr: originalErr,
	}
}

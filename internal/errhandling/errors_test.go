// Package errhandling provides error types and classification for row filter runs.
package errhandling

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
)

// TestErrorCategory tests error category constants and their string values.
func TestErrorCategory(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{CategoryNotFound, "not_found"},
		{CategoryPermission, "permission"},
		{CategoryIO, "io"},
		{CategoryMalformed, "malformed"},
		{CategoryFormat, "format"},
		{CategoryCanceled, "canceled"},
		{CategoryUnknown, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.category) != tt.expected {
				t.Errorf("ErrorCategory = %v, want %v", tt.category, tt.expected)
			}
		})
	}
}

// TestClassifiedError tests the ClassifiedError type.
func TestClassifiedError(t *testing.T) {
	t.Run("Error message includes line", func(t *testing.T) {
		err := &ClassifiedError{Category: CategoryFormat, Line: 7, Message: "bare quote"}
		got := err.Error()
		if !strings.Contains(got, "format") || !strings.Contains(got, "line 7") || !strings.Contains(got, "bare quote") {
			t.Errorf("Error() = %q, want category, line and message", got)
		}
	})

	t.Run("Error message without line", func(t *testing.T) {
		err := &ClassifiedError{Category: CategoryIO, Message: "disk full"}
		if got := err.Error(); got != "io error: disk full" {
			t.Errorf("Error() = %q, want %q", got, "io error: disk full")
		}
	})

	t.Run("Unwrap returns original error", func(t *testing.T) {
		original := errors.New("original error")
		err := &ClassifiedError{Category: CategoryIO, OriginalErr: original}
		if !errors.Is(err, original) {
			t.Error("errors.Is should match original error")
		}
	})
}

func TestMalformedRowError(t *testing.T) {
	err := NewMalformedRowError(4, 2, 3)

	want := "malformed row at line 4: has 2 field(s), need at least 3"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("filter: %w", err)
	if !IsMalformedRow(wrapped) {
		t.Error("IsMalformedRow should see through wrapping")
	}
	if IsMalformedRow(errors.New("other")) {
		t.Error("IsMalformedRow should be false for unrelated errors")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCategory ErrorCategory
		wantLine     int
	}{
		{"nil", nil, CategoryUnknown, 0},
		{"malformed row", NewMalformedRowError(9, 1, 3), CategoryMalformed, 9},
		{"wrapped malformed row", fmt.Errorf("x: %w", NewMalformedRowError(3, 2, 3)), CategoryMalformed, 3},
		{"canceled", context.Canceled, CategoryCanceled, 0},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), CategoryCanceled, 0},
		{"csv parse error", &csv.ParseError{StartLine: 5, Line: 6, Column: 2, Err: csv.ErrQuote}, CategoryFormat, 6},
		{"not exist", &os.PathError{Op: "open", Path: "airports.csv", Err: fs.ErrNotExist}, CategoryNotFound, 0},
		{"permission", &os.PathError{Op: "open", Path: "output.csv", Err: fs.ErrPermission}, CategoryPermission, 0},
		{"other path error", &os.PathError{Op: "write", Path: "output.csv", Err: errors.New("no space left")}, CategoryIO, 0},
		{"unknown", errors.New("boom"), CategoryUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %v, want %v", got.Category, tt.wantCategory)
			}
			if got.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", got.Line, tt.wantLine)
			}
		})
	}
}

func TestClassifyError_AlreadyClassified(t *testing.T) {
	original := NewFormatError(2, "bad", nil)
	if got := ClassifyError(fmt.Errorf("wrap: %w", original)); got != original {
		t.Errorf("ClassifyError should return the existing ClassifiedError, got %v", got)
	}
}

func TestIsFatal(t *testing.T) {
	malformed := NewMalformedRowError(2, 1, 3)

	if IsFatal(nil, false) {
		t.Error("nil error should not be fatal")
	}
	if !IsFatal(malformed, false) {
		t.Error("malformed row should be fatal under the fail policy")
	}
	if IsFatal(malformed, true) {
		t.Error("malformed row should not be fatal under the skip policy")
	}
	if !IsFatal(errors.New("io"), true) {
		t.Error("other errors stay fatal under the skip policy")
	}
}

func TestNewIOError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"not exist", fs.ErrNotExist, CategoryNotFound},
		{"permission", fs.ErrPermission, CategoryPermission},
		{"other", errors.New("short write"), CategoryIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewIOError("opening file", tt.err)
			if got.Category != tt.want {
				t.Errorf("Category = %v, want %v", got.Category, tt.want)
			}
			if GetErrorCategory(got) != tt.want {
				t.Errorf("GetErrorCategory = %v, want %v", GetErrorCategory(got), tt.want)
			}
		})
	}
}

// Package config provides functionality for parsing and validating
// run configuration files (JSON/YAML).
package config

import (
	"fmt"
	"strings"
)

// Format names.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Parse error types.
const (
	ErrorTypeIO     = "io"
	ErrorTypeSyntax = "syntax"
	ErrorTypeFormat = "format"
)

// ParseResult is the outcome of decoding configuration content, before schema validation.
type ParseResult struct {
	Data   map[string]interface{}
	Errors []ParseError
	Format string
}

// IsValid reports whether the content decoded to a mapping.
func (r *ParseResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ParseError locates a read or syntax failure. Line and Column are 1-based; 0 means unknown.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Type    string
}

func (e ParseError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, "line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&sb, ", column %d", e.Column)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// ValidationResult holds the schema violations of one configuration.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError is one schema violation. Path is a JSON pointer such as
// "/output/lineEnding"; Type is the failing keyword (enum, type, ...).
type ValidationError struct {
	Path    string
	Type    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Result is a parsed and validated configuration file.
type Result struct {
	Data             map[string]interface{}
	ParseErrors      []ParseError
	ValidationErrors []ValidationError
	FilePath         string
	Format           string
}

// IsValid reports whether the file parsed and passed the schema.
func (r *Result) IsValid() bool {
	return len(r.ParseErrors) == 0 && len(r.ValidationErrors) == 0
}

// AllErrors returns the parse errors followed by the validation errors.
func (r *Result) AllErrors() []error {
	errs := make([]error, 0, len(r.ParseErrors)+len(r.ValidationErrors))
	for _, e := range r.ParseErrors {
		errs = append(errs, e)
	}
	for _, e := range r.ValidationErrors {
		errs = append(errs, e)
	}
	return errs
}

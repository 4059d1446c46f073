// Package connector provides public types shared by the row filter pipeline.
// It is importable by external projects that drive the runtime programmatically.
package connector

import "time"

// Record is one CSV row decomposed into its ordered fields.
type Record struct {
	// Line is the 1-based source line where the record starts (0 if unknown)
	Line int `json:"line,omitempty"`

	// Fields holds the raw field values, never trimmed or converted
	Fields []string `json:"fields"`
}

// Field returns the field at index i and whether it exists.
func (r *Record) Field(i int) (string, bool) {
	if r == nil || i < 0 || i >= len(r.Fields) {
		return "", false
	}
	return r.Fields[i], true
}

// Len returns the number of fields in the record.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Fields)
}

// Pipeline describes a single filtering run: where rows come from,
// which filters they pass through, and where the survivors go.
type Pipeline struct {
	// ID is the unique identifier for this run
	ID string `json:"id"`

	// Name is the human-readable name of the run
	Name string `json:"name"`

	// Input defines the source module
	Input *ModuleConfig `json:"input"`

	// Filters is the ordered list of row filters
	Filters []ModuleConfig `json:"filters,omitempty"`

	// Output defines the destination module
	Output *ModuleConfig `json:"output"`

	// ErrorHandling configures what happens on malformed rows
	ErrorHandling *ErrorHandling `json:"errorHandling,omitempty"`
}

// ModuleConfig represents the configuration for a pipeline module.
type ModuleConfig struct {
	// Type identifies the module type (e.g., "csv", "category")
	Type string `json:"type"`

	// Config contains the module-specific configuration
	Config map[string]interface{} `json:"config"`
}

// Malformed row policies.
const (
	OnMalformedFail = "fail"
	OnMalformedSkip = "skip"
)

// ErrorHandling defines how row-level errors are handled during execution.
type ErrorHandling struct {
	// OnMalformed is "fail" (abort the run) or "skip" (drop the row and continue)
	OnMalformed string `json:"onMalformed"`
}

// Policy returns the configured malformed row policy, defaulting to OnMalformedFail.
func (e *ErrorHandling) Policy() string {
	if e == nil || e.OnMalformed == "" {
		return OnMalformedFail
	}
	return e.OnMalformed
}

// ExecutionResult represents the result of a pipeline execution.
type ExecutionResult struct {
	// RunID identifies this execution in logs
	RunID string `json:"runId"`

	// PipelineID is the ID of the executed pipeline
	PipelineID string `json:"pipelineId"`

	// Status is the execution status ("success", "error")
	Status string `json:"status"`

	// State is the final executor state ("done", "aborted")
	State string `json:"state"`

	// StartedAt is when execution started
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when execution completed
	CompletedAt time.Time `json:"completedAt"`

	// RowsRead counts data rows read from the source (header excluded)
	RowsRead int `json:"rowsRead"`

	// RowsWritten counts data rows written to the destination (header excluded)
	RowsWritten int `json:"rowsWritten"`

	// RowsSkipped counts data rows rejected by the filters
	RowsSkipped int `json:"rowsSkipped"`

	// RowsMalformed counts rows dropped under the skip policy
	RowsMalformed int `json:"rowsMalformed"`

	// Error contains error details if execution failed
	Error *ExecutionError `json:"error,omitempty"`
}

// ExecutionError contains details about an execution failure.
type ExecutionError struct {
	// Code is the error code
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Module is the module where the error occurred
	Module string `json:"module,omitempty"`

	// Category is the error classification (io, malformed, format, ...)
	Category string `json:"category,omitempty"`

	// Line is the source line involved, if any
	Line int `json:"line,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`
}

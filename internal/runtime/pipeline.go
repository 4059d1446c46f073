// Package runtime provides the pipeline execution engine.
// It streams records from the Input module through the Filter modules into the Output module.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RyanZhang-64/Flightle/internal/errhandling"
	"github.com/RyanZhang-64/Flightle/internal/logger"
	"github.com/RyanZhang-64/Flightle/internal/modules/filter"
	"github.com/RyanZhang-64/Flightle/internal/modules/input"
	"github.com/RyanZhang-64/Flightle/internal/modules/output"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// Error codes for pipeline execution errors
const (
	ErrCodeInputFailed  = "INPUT_FAILED"
	ErrCodeFilterFailed = "FILTER_FAILED"
	ErrCodeOutputFailed = "OUTPUT_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeMalformedRow = "MALFORMED_ROW"
	ErrCodeCanceled     = "CANCELED"
)

// Execution status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// State is a step of the executor lifecycle.
type State string

// Executor states. A run moves Opening -> Streaming -> Closing -> Done;
// a failure at any step ends in Aborted once handles are released.
const (
	StateIdle      State = "idle"
	StateOpening   State = "opening"
	StateStreaming State = "streaming"
	StateClosing   State = "closing"
	StateDone      State = "done"
	StateAborted   State = "aborted"
)

// Common errors
var (
	// ErrNilPipeline is returned when pipeline configuration is nil
	ErrNilPipeline = errors.New("pipeline configuration is nil")

	// ErrNilInputModule is returned when input module is nil
	ErrNilInputModule = errors.New("input module is nil")

	// ErrNilOutputModule is returned when output module is nil
	ErrNilOutputModule = errors.New("output module is nil")

	// ErrInvalidPolicy is returned for an unknown malformed row policy
	ErrInvalidPolicy = errors.New("invalid malformed row policy")
)

// Executor runs a single filtering pass: Input -> Filters -> Output.
//
// The Executor only interacts with modules through their public interfaces,
// so concrete module types stay invisible to the runtime.
// An Executor is not safe for concurrent use; each run owns its modules.
type Executor struct {
	inputModule   input.Module
	filterModules []filter.Module
	outputModule  output.Module

	state      State
	inputOpen  bool
	outputOpen bool
}

// NewExecutorWithModules creates a new pipeline executor with all modules configured.
//
// Parameters:
//   - inputModule: the module that yields the header and data records
//   - filterModules: filters applied in order; a record is written only if all keep it
//   - outputModule: the module that receives the header and the kept records
func NewExecutorWithModules(
	inputModule input.Module,
	filterModules []filter.Module,
	outputModule output.Module,
) *Executor {
	return &Executor{
		inputModule:   inputModule,
		filterModules: filterModules,
		outputModule:  outputModule,
		state:         StateIdle,
	}
}

// State returns the current lifecycle state.
func (e *Executor) State() State {
	return e.state
}

// setState moves the executor to s.
func (e *Executor) setState(runID string, s State) {
	logger.WithRun(runID).Debug("executor state changed",
		slog.String("from", string(e.state)),
		slog.String("to", string(s)),
	)
	e.state = s
}

// runError pairs a failure with the execution error reported on the result.
type runError struct {
	err  error
	exec *connector.ExecutionError
}

// Execute runs a pipeline with a background context.
// For cancellation support, use ExecuteWithContext instead.
func (e *Executor) Execute(pipeline *connector.Pipeline) (*connector.ExecutionResult, error) {
	return e.ExecuteWithContext(context.Background(), pipeline)
}

// ExecuteWithContext runs a pipeline with the given context.
// Cancellation is observed between records.
//
// Execution flow:
//  1. Opening: open the input, then create the output
//  2. Copy the header record unchanged
//  3. Streaming: write every data record all filters keep
//  4. Closing: close the input, flush and close the output
//
// Records written before a failure stay in the output; nothing is rolled back.
// The returned result is never nil.
func (e *Executor) ExecuteWithContext(ctx context.Context, pipeline *connector.Pipeline) (*connector.ExecutionResult, error) {
	startedAt := time.Now()
	result := newErrorResult(startedAt)

	if err := e.validateExecution(pipeline, result); err != nil {
		result.State = string(StateAborted)
		e.state = StateAborted
		return result, err
	}
	result.PipelineID = pipeline.ID

	execCtx := logger.ExecutionContext{
		RunID:        result.RunID,
		PipelineName: pipeline.Name,
	}
	logger.LogExecutionStart(execCtx, modulePath(pipeline.Input), modulePath(pipeline.Output))

	skipMalformed := pipeline.ErrorHandling.Policy() == connector.OnMalformedSkip
	failure := e.run(ctx, execCtx, result, skipMalformed)

	e.setState(result.RunID, StateClosing)
	if closeErr := e.closeModules(execCtx); closeErr != nil && failure == nil {
		failure = &runError{
			err:  fmt.Errorf("closing output module: %w", closeErr),
			exec: buildExecutionError(ErrCodeOutputFailed, "output", closeErr),
		}
	}

	if failure != nil {
		e.abort(execCtx, result, startedAt, failure)
		return result, failure.err
	}

	e.finalizeSuccessWithMetrics(execCtx, result, startedAt)
	return result, nil
}

// run performs the Opening and Streaming steps. The caller closes the modules.
func (e *Executor) run(ctx context.Context, execCtx logger.ExecutionContext, result *connector.ExecutionResult, skipMalformed bool) *runError {
	e.setState(result.RunID, StateOpening)

	if failure := e.openModules(ctx, execCtx); failure != nil {
		return failure
	}

	if failure := e.copyHeader(ctx); failure != nil {
		return failure
	}

	e.setState(result.RunID, StateStreaming)
	stageCtx := execCtx
	stageCtx.Stage = string(StateStreaming)
	logger.LogStageStart(stageCtx)
	streamStart := time.Now()

	failure := e.stream(ctx, stageCtx, result, skipMalformed)

	var stageErr *logger.ExecutionError
	if failure != nil {
		stageErr = &logger.ExecutionError{Code: failure.exec.Code, Message: failure.exec.Message}
	}
	logger.LogStageEnd(stageCtx, result.RowsWritten, time.Since(streamStart), stageErr)
	return failure
}

// openModules opens the input and then the output.
func (e *Executor) openModules(ctx context.Context, execCtx logger.ExecutionContext) *runError {
	stageCtx := execCtx
	stageCtx.Stage = string(StateOpening)
	logger.LogStageStart(stageCtx)
	start := time.Now()

	if err := e.inputModule.Open(ctx); err != nil {
		failure := &runError{
			err:  fmt.Errorf("opening input module: %w", err),
			exec: buildExecutionError(ErrCodeInputFailed, "input", err),
		}
		logger.LogStageEnd(stageCtx, 0, time.Since(start), &logger.ExecutionError{Code: ErrCodeInputFailed, Message: err.Error()})
		return failure
	}
	e.inputOpen = true

	if err := e.outputModule.Open(ctx); err != nil {
		failure := &runError{
			err:  fmt.Errorf("opening output module: %w", err),
			exec: buildExecutionError(ErrCodeOutputFailed, "output", err),
		}
		logger.LogStageEnd(stageCtx, 0, time.Since(start), &logger.ExecutionError{Code: ErrCodeOutputFailed, Message: err.Error()})
		return failure
	}
	e.outputOpen = true

	logger.LogStageEnd(stageCtx, 0, time.Since(start), nil)
	return nil
}

// copyHeader writes the first input record to the output without filtering.
func (e *Executor) copyHeader(ctx context.Context) *runError {
	header, err := e.inputModule.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = input.ErrMissingHeader
		}
		return e.inputFailure("reading header", err)
	}

	if err := e.outputModule.Write(ctx, header); err != nil {
		return &runError{
			err:  fmt.Errorf("writing header: %w", err),
			exec: buildExecutionError(ErrCodeOutputFailed, "output", err),
		}
	}
	return nil
}

// stream moves data records from the input to the output until the input is exhausted.
func (e *Executor) stream(ctx context.Context, stageCtx logger.ExecutionContext, result *connector.ExecutionResult, skipMalformed bool) *runError {
	for {
		if err := ctx.Err(); err != nil {
			return &runError{
				err:  fmt.Errorf("run canceled after %d rows: %w", result.RowsRead, err),
				exec: buildExecutionError(ErrCodeCanceled, "", err),
			}
		}

		record, err := e.inputModule.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return e.inputFailure("reading record", err)
		}
		result.RowsRead++

		keep, idx, err := e.applyFilters(ctx, record)
		if err != nil {
			if !errhandling.IsFatal(err, skipMalformed) {
				result.RowsMalformed++
				logger.LogRowSkipped(stageCtx, record.Line, err.Error())
				continue
			}
			return filterFailure(idx, err)
		}
		if !keep {
			result.RowsSkipped++
			continue
		}

		if err := e.outputModule.Write(ctx, record); err != nil {
			return &runError{
				err:  fmt.Errorf("writing record at line %d: %w", record.Line, err),
				exec: buildExecutionError(ErrCodeOutputFailed, "output", err),
			}
		}
		result.RowsWritten++
	}
}

// applyFilters runs the filters in order and stops at the first that rejects the record.
// On error it also returns the index of the failing filter.
func (e *Executor) applyFilters(ctx context.Context, record *connector.Record) (bool, int, error) {
	for i, f := range e.filterModules {
		if f == nil {
			continue
		}
		keep, err := f.Keep(ctx, record)
		if err != nil {
			return false, i, err
		}
		if !keep {
			return false, i, nil
		}
	}
	return true, -1, nil
}

// inputFailure builds the failure for an input read error.
func (e *Executor) inputFailure(action string, err error) *runError {
	code := ErrCodeInputFailed
	if errhandling.GetErrorCategory(err) == errhandling.CategoryCanceled {
		code = ErrCodeCanceled
	}
	return &runError{
		err:  fmt.Errorf("%s: %w", action, err),
		exec: buildExecutionError(code, "input", err),
	}
}

// filterFailure builds the failure for a filter error.
func filterFailure(idx int, err error) *runError {
	if errhandling.IsMalformedRow(err) {
		return &runError{
			err:  fmt.Errorf("filter module %d: %w", idx, err),
			exec: buildExecutionError(ErrCodeMalformedRow, "filter", err),
		}
	}

	ex := buildExecutionError(ErrCodeFilterFailed, "filter", err)
	ex.Message = fmt.Sprintf("filter module %d failed: %v", idx, err)
	ex.Details = map[string]interface{}{"filterIndex": idx}
	return &runError{
		err:  fmt.Errorf("executing filter module %d: %w", idx, err),
		exec: ex,
	}
}

// closeModules closes the input, then flushes and closes the output.
// Input close errors are logged; only output close errors are returned.
func (e *Executor) closeModules(execCtx logger.ExecutionContext) error {
	if e.inputOpen {
		e.inputOpen = false
		if err := e.inputModule.Close(); err != nil {
			logger.WithExecution(execCtx).Warn("failed to close module",
				slog.String("module", "input"),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.outputOpen {
		e.outputOpen = false
		if err := e.outputModule.Close(); err != nil {
			logger.WithExecution(execCtx).Error("failed to close module",
				slog.String("module", "output"),
				slog.String("error", err.Error()),
			)
			return err
		}
	}
	return nil
}

// newErrorResult creates a new ExecutionResult initialized with error status.
func newErrorResult(startedAt time.Time) *connector.ExecutionResult {
	return &connector.ExecutionResult{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
		Status:    StatusError,
		State:     string(StateIdle),
	}
}

// buildExecutionError creates an ExecutionError with classified category and line.
func buildExecutionError(code, module string, err error) *connector.ExecutionError {
	cl := errhandling.ClassifyError(err)
	return &connector.ExecutionError{
		Code:     code,
		Message:  err.Error(),
		Module:   module,
		Category: string(cl.Category),
		Line:     cl.Line,
	}
}

// validateExecution validates the pipeline and modules before execution.
func (e *Executor) validateExecution(pipeline *connector.Pipeline, result *connector.ExecutionResult) error {
	var err error
	var module string
	switch {
	case pipeline == nil:
		err = ErrNilPipeline
	case e.inputModule == nil:
		err, module = ErrNilInputModule, "input"
	case e.outputModule == nil:
		err, module = ErrNilOutputModule, "output"
	default:
		policy := pipeline.ErrorHandling.Policy()
		if policy != connector.OnMalformedFail && policy != connector.OnMalformedSkip {
			err = fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
		}
	}
	if err == nil {
		return nil
	}

	logger.WithRun(result.RunID).Error("pipeline execution failed",
		slog.String("error", err.Error()),
	)
	result.CompletedAt = time.Now()
	result.Error = buildExecutionError(ErrCodeInvalidInput, module, err)
	return err
}

// abort records failure on the result and logs the end of the run.
func (e *Executor) abort(execCtx logger.ExecutionContext, result *connector.ExecutionResult, startedAt time.Time, failure *runError) {
	e.setState(result.RunID, StateAborted)
	result.State = string(StateAborted)
	result.Status = StatusError
	result.CompletedAt = time.Now()
	result.Error = failure.exec

	logger.LogError("pipeline execution aborted", logger.ErrorContext{
		RunID:        execCtx.RunID,
		PipelineName: execCtx.PipelineName,
		Stage:        failure.exec.Module,
		ErrorCode:    failure.exec.Code,
		ErrorMessage: failure.exec.Message,
		Err:          failure.err,
		Line:         failure.exec.Line,
	})
	logger.LogExecutionEnd(execCtx, StatusError, result.RowsWritten, time.Since(startedAt))
}

// finalizeSuccessWithMetrics marks the execution as successful and logs completion with metrics.
func (e *Executor) finalizeSuccessWithMetrics(execCtx logger.ExecutionContext, result *connector.ExecutionResult, startedAt time.Time) {
	e.setState(result.RunID, StateDone)
	result.State = string(StateDone)
	result.Status = StatusSuccess
	result.CompletedAt = time.Now()
	result.Error = nil

	totalDuration := time.Since(startedAt)

	logger.LogExecutionEnd(execCtx, StatusSuccess, result.RowsWritten, totalDuration)
	logger.LogMetrics(execCtx, logger.NewExecutionMetrics(totalDuration,
		result.RowsRead, result.RowsWritten, result.RowsSkipped, result.RowsMalformed))
}

// modulePath returns the "path" option of a module configuration, if any.
func modulePath(cfg *connector.ModuleConfig) string {
	if cfg == nil {
		return ""
	}
	path, _ := cfg.Config["path"].(string)
	return path
}

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/RyanZhang-64/Flightle/internal/config"
	"github.com/RyanZhang-64/Flightle/internal/logger"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
}

// PrintExecutionResult displays a run result. Success goes to out, failure to errOut.
func PrintExecutionResult(out, errOut io.Writer, result *connector.ExecutionResult, err error, opts OutputOptions) {
	if result == nil {
		fmt.Fprintln(errOut, "✗ No execution result available")
		return
	}

	if err != nil {
		fmt.Fprintln(errOut, "✗ Filtering failed")
		if result.Error != nil {
			if result.Error.Module != "" {
				fmt.Fprintf(errOut, "  Module: %s\n", result.Error.Module)
			}
			if result.Error.Line > 0 {
				fmt.Fprintf(errOut, "  Line: %d\n", result.Error.Line)
			}
			fmt.Fprintf(errOut, "  Error: %s\n", result.Error.Message)
			if opts.Verbose {
				fmt.Fprintf(errOut, "  Code: %s\n", result.Error.Code)
				fmt.Fprintf(errOut, "  Category: %s\n", result.Error.Category)
			}
		}
		if result.RowsWritten > 0 {
			fmt.Fprintf(errOut, "  Rows written before failure: %d\n", result.RowsWritten)
		}
		return
	}

	if opts.Quiet {
		return
	}

	fmt.Fprintln(out, "✓ Filtering completed")
	fmt.Fprintf(out, "  Rows read: %d\n", result.RowsRead)
	fmt.Fprintf(out, "  Rows written: %d\n", result.RowsWritten)
	if result.RowsMalformed > 0 {
		fmt.Fprintf(out, "  Malformed rows skipped: %d\n", result.RowsMalformed)
	}
	if opts.Verbose {
		fmt.Fprintf(out, "  Rows filtered out: %d\n", result.RowsSkipped)
		fmt.Fprintf(out, "  Run ID: %s\n", result.RunID)
		duration := result.CompletedAt.Sub(result.StartedAt)
		fmt.Fprintf(out, "  Duration: %v\n", duration.Round(time.Millisecond))
		fmt.Fprintf(out, "  %s\n", logger.FormatMetricsHuman(logger.NewExecutionMetrics(duration,
			result.RowsRead, result.RowsWritten, result.RowsSkipped, result.RowsMalformed)))
	}
}

// PrintConfigSummary prints the effective settings of a run configuration.
func PrintConfigSummary(w io.Writer, rc config.RunConfig) {
	fmt.Fprintf(w, "  Name: %s\n", rc.Name)
	fmt.Fprintf(w, "  Input: %s\n", rc.InputPath)
	fmt.Fprintf(w, "  Output: %s (%s)\n", rc.OutputPath, rc.LineEnding)
	fmt.Fprintf(w, "  On malformed rows: %s\n", rc.OnMalformed)
}

// Package main provides the CLI entry point for the airport filter.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/RyanZhang-64/Flightle/internal/cli"
	"github.com/RyanZhang-64/Flightle/internal/config"
	"github.com/RyanZhang-64/Flightle/internal/factory"
	"github.com/RyanZhang-64/Flightle/internal/logger"
	"github.com/RyanZhang-64/Flightle/internal/pathutil"
	"github.com/RyanZhang-64/Flightle/internal/runtime"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

var (
	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// app holds the flag values and writers of one CLI invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	// fsys is rooted at "/"; every path handed to it is absolute.
	fsys billy.Filesystem

	// Global flags
	verbose   bool
	quiet     bool
	logFormat string

	// Root command flags
	configPath string
	overrides  config.Overrides

	exitCode int
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		fsys:   osfs.New("/"),
	}

	rootCmd := a.newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "✗ %v\n", err)
		return ExitValidationError
	}
	return a.exitCode
}

func (a *app) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "airportfilter",
		Short: "Keep the large and medium airports of an airports CSV file",
		Long: `airportfilter copies the header of an airports CSV file and every row whose
type column contains "large_airport" or "medium_airport" to an output file.

With no flags it reads airports.csv and writes output.csv in the working
directory. Settings come from, in increasing precedence: built-in defaults,
a configuration file (--config), and command-line flags.

Exit codes:
  0 - Filtering completed
  1 - Validation errors (invalid settings or configuration)
  2 - Parse errors (invalid JSON/YAML syntax)
  3 - Runtime errors (I/O failure, malformed row, interrupted run)

Examples:
  # Filter airports.csv into output.csv
  airportfilter

  # Filter explicit files, dropping rows with too few fields
  airportfilter -i data/airports.csv -o data/hubs.csv --on-malformed skip

  # Run with settings from a configuration file
  airportfilter --config run.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.configureLogger()
		},
		Run: a.runFilter,
	}

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "json", "Log format: json or human")

	rootCmd.Flags().StringVarP(&a.overrides.InputPath, "input", "i", "", "Source CSV file (default \"airports.csv\")")
	rootCmd.Flags().StringVarP(&a.overrides.OutputPath, "output", "o", "", "Destination CSV file (default \"output.csv\")")
	rootCmd.Flags().StringVarP(&a.configPath, "config", "c", "", "Run configuration file (JSON or YAML)")
	rootCmd.Flags().StringVar(&a.overrides.OnMalformed, "on-malformed", "", "Rows with fewer than 3 fields: fail or skip (default \"fail\")")
	rootCmd.Flags().StringVar(&a.overrides.LineEnding, "line-ending", "", "Output line ending: crlf or lf (default \"crlf\")")

	rootCmd.AddCommand(a.newValidateCmd())
	rootCmd.AddCommand(a.newVersionCmd())
	return rootCmd
}

func (a *app) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a run configuration file",
		Long: `Validate a run configuration file against the schema.

Supports both JSON and YAML formats. The format is auto-detected
based on file extension (.json, .yaml, .yml) or content.

Exit codes:
  0 - Configuration is valid
  1 - Validation errors (schema violations)
  2 - Parse errors (invalid JSON/YAML syntax)

Examples:
  airportfilter validate run.yaml
  airportfilter validate --verbose run.json`,
		Args: cobra.ExactArgs(1),
		Run:  a.runValidate,
	}
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version, commit hash, and build date information.",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "Version: %s\n", version)
			fmt.Fprintf(a.stdout, "Commit: %s\n", commit)
			fmt.Fprintf(a.stdout, "Build Date: %s\n", buildDate)
		},
	}
}

// configureLogger applies the global logging flags. Logs go to the
// invocation's stderr so that stdout only carries the run summary.
func (a *app) configureLogger() error {
	format, err := logger.ParseFormat(a.logFormat)
	if err != nil {
		return err
	}

	lvl := slog.LevelInfo
	if a.verbose {
		lvl = slog.LevelDebug
	} else if a.quiet {
		lvl = slog.LevelError
	}

	logger.SetOutput(a.stderr)
	logger.SetLevelAndFormat(lvl, format)
	return nil
}

func (a *app) outputOptions() cli.OutputOptions {
	return cli.OutputOptions{Verbose: a.verbose, Quiet: a.quiet}
}

func (a *app) runValidate(_ *cobra.Command, args []string) {
	configPath := args[0]

	if !a.quiet {
		fmt.Fprintf(a.stdout, "Validating configuration: %s\n", configPath)
	}

	result, code := a.loadConfigFile(configPath)
	if code != ExitSuccess {
		a.exitCode = code
		return
	}

	rc, err := config.FromData(result.Data)
	if err != nil {
		fmt.Fprintf(a.stderr, "✗ Invalid configuration: %v\n", err)
		a.exitCode = ExitValidationError
		return
	}

	if !a.quiet {
		fmt.Fprintf(a.stdout, "✓ Configuration is valid (format: %s)\n", result.Format)
		if a.verbose {
			cli.PrintConfigSummary(a.stdout, rc)
		}
	}
}

func (a *app) runFilter(cmd *cobra.Command, _ []string) {
	a.exitCode = a.filter(cmd.Context())
}

// filter resolves the effective settings, then streams the input to the output.
func (a *app) filter(ctx context.Context) int {
	rc := config.DefaultRunConfig()
	if a.configPath != "" {
		result, code := a.loadConfigFile(a.configPath)
		if code != ExitSuccess {
			return code
		}
		loaded, err := config.FromData(result.Data)
		if err != nil {
			fmt.Fprintf(a.stderr, "✗ Invalid configuration: %v\n", err)
			return ExitValidationError
		}
		rc = loaded
	}

	rc = rc.Apply(a.overrides)
	if err := rc.Validate(); err != nil {
		fmt.Fprintf(a.stderr, "✗ Invalid settings: %v\n", err)
		return ExitValidationError
	}

	inputPath, err := pathutil.Resolve(rc.InputPath)
	if err != nil {
		fmt.Fprintf(a.stderr, "✗ Invalid input path: %v\n", err)
		return ExitValidationError
	}
	outputPath, err := pathutil.Resolve(rc.OutputPath)
	if err != nil {
		fmt.Fprintf(a.stderr, "✗ Invalid output path: %v\n", err)
		return ExitValidationError
	}
	if err := pathutil.ValidateDistinct(inputPath, outputPath); err != nil {
		fmt.Fprintf(a.stderr, "✗ %v\n", err)
		return ExitValidationError
	}
	rc.InputPath, rc.OutputPath = inputPath, outputPath

	if a.verbose && !a.quiet {
		fmt.Fprintln(a.stdout, "Filtering airports:")
		cli.PrintConfigSummary(a.stdout, rc)
	}

	pipeline := rc.Pipeline()
	modules, err := factory.CreateModules(a.fsys, pipeline)
	if err != nil {
		fmt.Fprintf(a.stderr, "✗ Failed to create modules: %v\n", err)
		return ExitRuntimeError
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := runtime.NewExecutorWithModules(modules.Input, modules.Filters, modules.Output)
	result, err := executor.ExecuteWithContext(ctx, pipeline)

	cli.PrintExecutionResult(a.stdout, a.stderr, result, err, a.outputOptions())
	if err != nil {
		return ExitRuntimeError
	}
	return ExitSuccess
}

// loadConfigFile parses and schema-validates a configuration file, printing
// any errors. The returned code is ExitSuccess when the file is usable.
func (a *app) loadConfigFile(configPath string) (*config.Result, int) {
	absPath, err := pathutil.Resolve(configPath)
	if err != nil {
		cli.PrintParseErrors(a.stderr, []config.ParseError{{
			Path:    configPath,
			Message: err.Error(),
			Type:    config.ErrorTypeIO,
		}}, a.verbose)
		return nil, ExitParseError
	}

	result := config.ParseConfig(a.fsys, absPath)
	if result.IsValid() {
		return result, ExitSuccess
	}

	logger.Debug("configuration rejected",
		slog.String("path", result.FilePath),
		slog.String("error", errors.Join(result.AllErrors()...).Error()),
	)

	if len(result.ParseErrors) > 0 {
		cli.PrintParseErrors(a.stderr, result.ParseErrors, a.verbose)
		return result, ExitParseError
	}

	cli.PrintValidationErrors(a.stderr, result.ValidationErrors, a.verbose, a.quiet)
	return result, ExitValidationError
}

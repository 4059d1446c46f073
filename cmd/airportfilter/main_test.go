package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanZhang-64/Flightle/internal/logger"
)

const airportsCSV = "id,ident,type,name\n" +
	"1,AAA,large_airport,Big\n" +
	"2,BBB,small_airport,Tiny\n" +
	"3,CCC,medium_airport,Mid\n" +
	"4,DDD,heliport,Pad\n"

// runCLI runs the CLI in-process and returns stdout, stderr, and exit code.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	t.Cleanup(func() {
		logger.SetOutput(nil)
		logger.SetLevelAndFormat(slog.LevelInfo, logger.FormatJSON)
	})

	var outBuf, errBuf bytes.Buffer
	exitCode = execute(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), exitCode
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestCLI_Help(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "--help")

	if exitCode != ExitSuccess {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	for _, want := range []string{"airportfilter", "validate", "version", "--on-malformed", "--line-ending"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func TestCLI_DefaultPaths(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, "airports.csv", airportsCSV)

	stdout, stderr, exitCode := runCLI(t)
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code 0, got %d\nstderr: %s", exitCode, stderr)
	}

	want := "id,ident,type,name\r\n1,AAA,large_airport,Big\r\n3,CCC,medium_airport,Mid\r\n"
	if got := readFile(t, filepath.Join(dir, "output.csv")); got != want {
		t.Errorf("output.csv = %q, want %q", got, want)
	}
	for _, w := range []string{"✓ Filtering completed", "Rows read: 4", "Rows written: 2"} {
		if !strings.Contains(stdout, w) {
			t.Errorf("stdout missing %q:\n%s", w, stdout)
		}
	}
	if !strings.Contains(stderr, `"msg":"execution started"`) {
		t.Errorf("expected JSON run log on stderr, got:\n%s", stderr)
	}
}

func TestCLI_Flags(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "hubs.csv")
	writeFile(t, in, airportsCSV)

	stdout, stderr, exitCode := runCLI(t, "-i", in, "-o", out, "--line-ending", "lf", "--quiet")
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code 0, got %d\nstderr: %s", exitCode, stderr)
	}

	want := "id,ident,type,name\n1,AAA,large_airport,Big\n3,CCC,medium_airport,Mid\n"
	if got := readFile(t, out); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if stdout != "" {
		t.Errorf("quiet run should print nothing to stdout, got %q", stdout)
	}
}

func TestCLI_Verbose(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	writeFile(t, in, airportsCSV)

	stdout, _, exitCode := runCLI(t, "-i", in, "-o", filepath.Join(dir, "out.csv"), "-v", "--log-format", "human")
	if exitCode != ExitSuccess {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
	for _, w := range []string{"Filtering airports:", "On malformed rows: fail", "Rows filtered out: 2", "Run ID: "} {
		if !strings.Contains(stdout, w) {
			t.Errorf("stdout missing %q:\n%s", w, stdout)
		}
	}
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")
	writeFile(t, in, airportsCSV+"5,EEE\n6,FFF,large_airport,Last\n")

	cfgPath := filepath.Join(dir, "run.yaml")
	writeFile(t, cfgPath, fmt.Sprintf(
		"name: test-run\ninput:\n  path: %q\noutput:\n  path: %q\n  lineEnding: lf\nonMalformed: skip\n", in, out))

	t.Run("config values", func(t *testing.T) {
		stdout, stderr, exitCode := runCLI(t, "--config", cfgPath)
		if exitCode != ExitSuccess {
			t.Fatalf("expected exit code 0, got %d\nstderr: %s", exitCode, stderr)
		}
		want := "id,ident,type,name\n1,AAA,large_airport,Big\n3,CCC,medium_airport,Mid\n6,FFF,large_airport,Last\n"
		if got := readFile(t, out); got != want {
			t.Errorf("output = %q, want %q", got, want)
		}
		if !strings.Contains(stdout, "Malformed rows skipped: 1") {
			t.Errorf("stdout missing malformed count:\n%s", stdout)
		}
	})

	t.Run("flags override config", func(t *testing.T) {
		_, _, exitCode := runCLI(t, "-c", cfgPath, "--line-ending", "crlf", "--on-malformed", "fail")
		if exitCode != ExitRuntimeError {
			t.Fatalf("expected exit code 3, got %d", exitCode)
		}
		want := "id,ident,type,name\r\n1,AAA,large_airport,Big\r\n3,CCC,medium_airport,Mid\r\n"
		if got := readFile(t, out); got != want {
			t.Errorf("output = %q, want %q", got, want)
		}
	})
}

func TestCLI_MalformedRowFails(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")
	writeFile(t, in, "id,ident,type\n1,AAA,large_airport\n2,BBB\n3,CCC,medium_airport\n")

	_, stderr, exitCode := runCLI(t, "-i", in, "-o", out, "--line-ending", "lf")
	if exitCode != ExitRuntimeError {
		t.Fatalf("expected exit code 3, got %d", exitCode)
	}
	for _, w := range []string{"✗ Filtering failed", "Line: 3", "Rows written before failure: 1"} {
		if !strings.Contains(stderr, w) {
			t.Errorf("stderr missing %q:\n%s", w, stderr)
		}
	}
	if got := readFile(t, out); got != "id,ident,type\n1,AAA,large_airport\n" {
		t.Errorf("partial output = %q", got)
	}
}

func TestCLI_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")
	writeFile(t, in, airportsCSV)

	badYAML := filepath.Join(dir, "bad.yaml")
	writeFile(t, badYAML, "name: [unclosed\n")
	badSchema := filepath.Join(dir, "schema.yaml")
	writeFile(t, badSchema, "onMalformed: ignore\n")

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"invalid policy flag", []string{"-i", in, "-o", out, "--on-malformed", "retry"}, ExitValidationError, "Invalid settings"},
		{"invalid line ending flag", []string{"-i", in, "-o", out, "--line-ending", "cr"}, ExitValidationError, "Invalid settings"},
		{"same input and output", []string{"-i", in, "-o", in}, ExitValidationError, "same file"},
		{"output names a directory", []string{"-i", in, "-o", dir + "/"}, ExitValidationError, "Invalid output path"},
		{"unknown log format", []string{"-i", in, "-o", out, "--log-format", "xml"}, ExitValidationError, "unknown log format"},
		{"unknown flag", []string{"--bogus"}, ExitValidationError, "unknown flag"},
		{"unexpected argument", []string{"airports.csv"}, ExitValidationError, "unknown command"},
		{"config parse error", []string{"-c", badYAML}, ExitParseError, "Parse errors"},
		{"missing config file", []string{"-c", filepath.Join(dir, "missing.yaml")}, ExitParseError, "failed to read file"},
		{"config schema error", []string{"-c", badSchema}, ExitValidationError, "Validation errors"},
		{"missing input", []string{"-i", filepath.Join(dir, "missing.csv"), "-o", out}, ExitRuntimeError, "Filtering failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, exitCode := runCLI(t, tt.args...)
			if exitCode != tt.wantCode {
				t.Errorf("expected exit code %d, got %d\nstderr: %s", tt.wantCode, exitCode, stderr)
			}
			if !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantErr, stderr)
			}
		})
	}
}

func TestCLI_MissingInputDoesNotCreateOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")

	_, _, exitCode := runCLI(t, "-i", filepath.Join(dir, "missing.csv"), "-o", out)
	if exitCode != ExitRuntimeError {
		t.Fatalf("expected exit code 3, got %d", exitCode)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output should not exist, stat error = %v", err)
	}
}

func TestCLI_MissingOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "airports.csv")
	writeFile(t, in, airportsCSV)

	_, stderr, exitCode := runCLI(t, "-i", in, "-o", filepath.Join(dir, "nope", "sub", "output.csv"))
	if exitCode != ExitRuntimeError {
		t.Fatalf("expected exit code 3, got %d\nstderr: %s", exitCode, stderr)
	}
	if !strings.Contains(stderr, "does not exist") {
		t.Errorf("stderr missing cause:\n%s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "nope")); !os.IsNotExist(err) {
		t.Errorf("output directory should not be created, stat error = %v", err)
	}
}

func TestCLI_Validate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "run.json")
	writeFile(t, valid, `{"name": "hubs", "output": {"lineEnding": "lf"}}`)
	invalid := filepath.Join(dir, "run.yaml")
	writeFile(t, invalid, "output:\n  lineEnding: cr\n")

	t.Run("valid", func(t *testing.T) {
		stdout, _, exitCode := runCLI(t, "validate", "--verbose", valid)
		if exitCode != ExitSuccess {
			t.Fatalf("expected exit code 0, got %d", exitCode)
		}
		for _, w := range []string{"✓ Configuration is valid (format: json)", "Name: hubs", "Output: output.csv (lf)"} {
			if !strings.Contains(stdout, w) {
				t.Errorf("stdout missing %q:\n%s", w, stdout)
			}
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, stderr, exitCode := runCLI(t, "validate", invalid)
		if exitCode != ExitValidationError {
			t.Fatalf("expected exit code 1, got %d", exitCode)
		}
		if !strings.Contains(stderr, "/output/lineEnding") {
			t.Errorf("stderr missing error path:\n%s", stderr)
		}
	})

	t.Run("missing argument", func(t *testing.T) {
		_, _, exitCode := runCLI(t, "validate")
		if exitCode != ExitValidationError {
			t.Errorf("expected exit code 1, got %d", exitCode)
		}
	})
}

func TestCLI_Version(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "version")
	if exitCode != ExitSuccess {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	want := "Version: dev\nCommit: unknown\nBuild Date: unknown\n"
	if stdout != want {
		t.Errorf("version output = %q, want %q", stdout, want)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

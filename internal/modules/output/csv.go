package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-git/go-billy/v5"

	"github.com/RyanZhang-64/Flightle/internal/errhandling"
	"github.com/RyanZhang-64/Flightle/internal/logger"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// TypeCSV is the registry type name of the CSV output module.
const TypeCSV = "csv"

// Line ending options
const (
	LineEndingCRLF = "crlf"
	LineEndingLF   = "lf"
)

var (
	// ErrNotOpen is returned when Write is called before Open.
	ErrNotOpen = errors.New("output is not open")

	// ErrInvalidLineEnding is returned for an unknown lineEnding value.
	ErrInvalidLineEnding = errors.New("invalid line ending")
)

// CSVModule writes records to a comma-separated file.
// Rows are terminated with \r\n unless the LF line ending is selected.
// Each row is flushed as it is written, so rows written before a failure
// remain in the file.
type CSVModule struct {
	fs      billy.Filesystem
	path    string
	useCRLF bool
	file    billy.File
	writer  *csv.Writer
	rows    int
}

// NewCSV creates a CSV output module writing path on fsys.
// An empty lineEnding selects CRLF.
func NewCSV(fsys billy.Filesystem, path, lineEnding string) (*CSVModule, error) {
	if fsys == nil {
		return nil, errors.New("output filesystem is nil")
	}
	if path == "" {
		return nil, errors.New("output path is required")
	}

	var useCRLF bool
	switch strings.ToLower(lineEnding) {
	case "", LineEndingCRLF:
		useCRLF = true
	case LineEndingLF:
		useCRLF = false
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidLineEnding, lineEnding, LineEndingCRLF, LineEndingLF)
	}

	return &CSVModule{fs: fsys, path: path, useCRLF: useCRLF}, nil
}

// NewCSVFromConfig creates a CSV output module from a module configuration.
// The "path" key is required; "lineEnding" is optional.
func NewCSVFromConfig(fsys billy.Filesystem, cfg *connector.ModuleConfig) (*CSVModule, error) {
	if cfg == nil {
		return nil, errors.New("output configuration is nil")
	}
	path, _ := cfg.Config["path"].(string)
	lineEnding, _ := cfg.Config["lineEnding"].(string)
	return NewCSV(fsys, path, lineEnding)
}

// Path returns the destination path.
func (m *CSVModule) Path() string {
	return m.path
}

// Open creates or truncates the destination file. The parent directory must
// already exist; it is never created.
func (m *CSVModule) Open(_ context.Context) error {
	if err := m.checkParent(); err != nil {
		return err
	}

	f, err := m.fs.Create(m.path)
	if err != nil {
		return errhandling.NewIOError(fmt.Sprintf("creating output %s", m.path), err)
	}

	w := csv.NewWriter(f)
	w.UseCRLF = m.useCRLF

	m.file = f
	m.writer = w
	m.rows = 0

	logger.WithModule("output", TypeCSV).Debug("output opened",
		slog.String("path", m.path),
		slog.Bool("crlf", m.useCRLF),
	)
	return nil
}

// checkParent fails when the destination's directory is missing or is not a directory.
func (m *CSVModule) checkParent() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	info, err := m.fs.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errhandling.NewIOError(fmt.Sprintf("creating output %s: directory %s does not exist", m.path, dir), fs.ErrNotExist)
		}
		return errhandling.NewIOError(fmt.Sprintf("creating output %s", m.path), err)
	}
	if !info.IsDir() {
		return errhandling.NewIOError(fmt.Sprintf("creating output %s: %s is not a directory", m.path, dir), syscall.ENOTDIR)
	}
	return nil
}

// Write writes the record's fields as one CSV row and flushes it.
func (m *CSVModule) Write(ctx context.Context, record *connector.Record) error {
	if m.writer == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil {
		return errors.New("record is nil")
	}

	if err := m.writer.Write(record.Fields); err != nil {
		return errhandling.NewIOError(fmt.Sprintf("writing output %s", m.path), err)
	}
	m.writer.Flush()
	if err := m.writer.Error(); err != nil {
		return errhandling.NewIOError(fmt.Sprintf("writing output %s", m.path), err)
	}
	m.rows++
	return nil
}

// Close flushes and closes the destination file. It is safe to call more than once.
func (m *CSVModule) Close() error {
	if m.file == nil {
		return nil
	}

	m.writer.Flush()
	flushErr := m.writer.Error()
	closeErr := m.file.Close()
	m.file = nil
	m.writer = nil

	logger.WithModule("output", TypeCSV).Debug("output closed",
		slog.String("path", m.path),
		slog.Int("records", m.rows),
	)

	if flushErr != nil {
		return errhandling.NewIOError(fmt.Sprintf("flushing output %s", m.path), flushErr)
	}
	if closeErr != nil {
		return errhandling.NewIOError(fmt.Sprintf("closing output %s", m.path), closeErr)
	}
	return nil
}

// Verify CSVModule implements Module
var _ Module = (*CSVModule)(nil)

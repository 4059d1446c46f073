package input

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/RyanZhang-64/Flightle/internal/errhandling"
	"github.com/RyanZhang-64/Flightle/internal/logger"
	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// TypeCSV is the registry type name of the CSV input module.
const TypeCSV = "csv"

// ErrNotOpen is returned when Next is called before Open.
var ErrNotOpen = errors.New("input is not open")

// CSVModule streams records from a comma-separated file.
//
// Rows may have any width; width rules belong to the filters. Bare quotes inside
// unquoted fields are accepted as literal text. A blank line yields a record
// with no fields at its line number.
type CSVModule struct {
	fs      billy.Filesystem
	path    string
	file    billy.File
	counter *lineCounter
	reader  *csv.Reader
	rows    int

	// lastLine is the line on which the previous record ended.
	lastLine int
	pending  []*connector.Record
	done     bool
}

// lineCounter counts the lines passing through to the CSV reader.
type lineCounter struct {
	r        io.Reader
	newlines int
	last     byte
	read     bool
}

func (c *lineCounter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.newlines += bytes.Count(p[:n], []byte{'\n'})
		c.last = p[n-1]
		c.read = true
	}
	return n, err
}

// lines returns the number of lines read so far, counting an unterminated last line.
func (c *lineCounter) lines() int {
	if c.read && c.last != '\n' {
		return c.newlines + 1
	}
	return c.newlines
}

// NewCSV creates a CSV input module reading path from fsys.
func NewCSV(fsys billy.Filesystem, path string) (*CSVModule, error) {
	if fsys == nil {
		return nil, errors.New("input filesystem is nil")
	}
	if path == "" {
		return nil, errors.New("input path is required")
	}
	return &CSVModule{fs: fsys, path: path}, nil
}

// NewCSVFromConfig creates a CSV input module from a module configuration.
// The "path" key is required.
func NewCSVFromConfig(fsys billy.Filesystem, cfg *connector.ModuleConfig) (*CSVModule, error) {
	if cfg == nil {
		return nil, errors.New("input configuration is nil")
	}
	path, _ := cfg.Config["path"].(string)
	return NewCSV(fsys, path)
}

// Path returns the source path.
func (m *CSVModule) Path() string {
	return m.path
}

// Open opens the source file for reading.
func (m *CSVModule) Open(_ context.Context) error {
	f, err := m.fs.Open(m.path)
	if err != nil {
		return errhandling.NewIOError(fmt.Sprintf("opening input %s", m.path), err)
	}

	counter := &lineCounter{r: f}
	r := csv.NewReader(counter)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	m.file = f
	m.counter = counter
	m.reader = r
	m.rows = 0
	m.lastLine = 0
	m.pending = nil
	m.done = false

	logger.WithModule("input", TypeCSV).Debug("input opened",
		slog.String("path", m.path),
	)
	return nil
}

// Next returns the next record, or io.EOF when the file is exhausted.
func (m *CSVModule) Next(ctx context.Context) (*connector.Record, error) {
	if m.reader == nil {
		return nil, ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(m.pending) == 0 && !m.done {
		if err := m.fill(); err != nil {
			return nil, err
		}
	}
	if len(m.pending) == 0 {
		return nil, io.EOF
	}

	rec := m.pending[0]
	m.pending = m.pending[1:]
	m.rows++
	return rec, nil
}

// fill reads the next CSV record and queues it behind a blank record for
// every empty line the reader skipped before it. At end of input it queues
// the trailing blank lines.
func (m *CSVModule) fill() error {
	fields, err := m.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			m.done = true
			m.queueBlank(m.counter.lines() + 1)
			return nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return errhandling.NewFormatError(parseErr.Line,
				fmt.Sprintf("parsing %s: %v", m.path, parseErr.Err), err)
		}
		return errhandling.NewIOError(fmt.Sprintf("reading input %s", m.path), err)
	}

	start, _ := m.reader.FieldPos(0)
	m.queueBlank(start)

	last := len(fields) - 1
	end, _ := m.reader.FieldPos(last)
	m.lastLine = end + strings.Count(fields[last], "\n")

	m.pending = append(m.pending, &connector.Record{Line: start, Fields: fields})
	return nil
}

// queueBlank queues an empty record for each line after lastLine and before line.
func (m *CSVModule) queueBlank(line int) {
	for l := m.lastLine + 1; l < line; l++ {
		m.pending = append(m.pending, &connector.Record{Line: l, Fields: []string{}})
	}
	if line-1 > m.lastLine {
		m.lastLine = line - 1
	}
}

// Close closes the source file. It is safe to call more than once.
func (m *CSVModule) Close() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	m.reader = nil
	m.counter = nil
	m.pending = nil

	logger.WithModule("input", TypeCSV).Debug("input closed",
		slog.String("path", m.path),
		slog.Int("records", m.rows),
	)
	if err != nil {
		return errhandling.NewIOError(fmt.Sprintf("closing input %s", m.path), err)
	}
	return nil
}

// Verify CSVModule implements Module
var _ Module = (*CSVModule)(nil)

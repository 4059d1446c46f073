// Package input provides implementations for input modules.
// Input modules are responsible for reading records from a source.
package input

import (
	"context"
	"errors"

	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// ErrMissingHeader is returned when the source contains no records at all.
var ErrMissingHeader = errors.New("input has no header row")

// Module represents an input module that streams records from a source.
type Module interface {
	// Open acquires the source. It must be called before Next.
	Open(ctx context.Context) error
	// Next returns the next record in source order.
	// It returns io.EOF once the source is exhausted.
	Next(ctx context.Context) (*connector.Record, error)
	// Close releases any resources held by the module.
	Close() error
}

// Package output provides implementations for output modules.
// Output modules are responsible for writing records to a destination.
package output

import (
	"context"

	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// Module represents an output module that writes records to a destination.
type Module interface {
	// Open creates or truncates the destination. It must be called before Write.
	Open(ctx context.Context) error
	// Write appends one record to the destination, unchanged.
	Write(ctx context.Context, record *connector.Record) error
	// Close flushes buffered output and releases the destination.
	Close() error
}

// Package filter provides implementations for filter modules.
// Filter modules decide, record by record, what reaches the output.
package filter

import (
	"context"

	"github.com/RyanZhang-64/Flightle/pkg/connector"
)

// Module represents a filter module that accepts or rejects records.
type Module interface {
	// Keep reports whether the record should be written to the output.
	// A non-nil error means the record could not be evaluated.
	Keep(ctx context.Context, record *connector.Record) (bool, error)
}

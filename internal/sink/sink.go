// Package sink writes the cleaned table to its destinations: a CSV file and,
// optionally, a database table through the storage factory.
package sink

import (
	"context"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// Sink persists a finished table.
type Sink interface {
	// Write stores t and returns the number of rows written.
	Write(ctx context.Context, t records.Table) (int64, error)
	// Name identifies the destination in logs.
	Name() string
}

// Package parser turns raw source bytes into a records.Table.
package parser

import (
	"io"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// Parser decodes one input. The int result counts rows that were skipped
// because they could not be decoded.
type Parser interface {
	Parse(r io.Reader) (records.Table, int, error)
}

package codebook

import (
	"context"
	"fmt"

	"github.com/sophie2chance2/foster-care-analysis/internal/datasource"
	"github.com/sophie2chance2/foster-care-analysis/internal/parser"
)

// Load opens src, parses it with p and builds a Book. Any failure is fatal
// for the batch that needs the book.
func Load(ctx context.Context, src datasource.Source, p parser.Parser, opts ...Option) (*Book, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open code book: %w", err)
	}
	defer rc.Close()

	t, _, err := p.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("parse code book: %w", err)
	}
	if t.Len() == 0 {
		return nil, ErrEmpty
	}
	return FromTable(t, opts...)
}

// Package transformer defines the table-in, table-out stage interface shared
// by every pipeline step, and Chain, which runs stages in order.
package transformer

import (
	"context"
	"fmt"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// Transformer is one pure pipeline stage. Implementations must not modify
// the input table.
type Transformer interface {
	Apply(ctx context.Context, in records.Table) (records.Table, error)
}

// Func adapts a function to Transformer.
type Func func(ctx context.Context, in records.Table) (records.Table, error)

// Apply implements Transformer.
func (f Func) Apply(ctx context.Context, in records.Table) (records.Table, error) { return f(ctx, in) }

// Named attaches a step name to a Transformer; Chain reports it in errors.
type Named struct {
	Name string
	Transformer
}

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every stage in order, stopping at the first error.
func (c Chain) Apply(ctx context.Context, in records.Table) (records.Table, error) {
	out := in
	for i, t := range c {
		if err := ctx.Err(); err != nil {
			return records.Table{}, err
		}
		next, err := t.Apply(ctx, out)
		if err != nil {
			return records.Table{}, fmt.Errorf("step %s: %w", stepName(i, t), err)
		}
		out = next
	}
	return out, nil
}

func stepName(i int, t Transformer) string {
	if n, ok := t.(Named); ok && n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("%d", i)
}

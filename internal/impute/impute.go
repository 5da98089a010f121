// Package impute fills missing values by semantic column class. Only columns
// named by the policy are touched; every other column keeps its missing
// values.
package impute

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// ErrUnfilled is returned when a policy column still holds a missing value
// after imputation.
var ErrUnfilled = errors.New("impute: policy column left unfilled")

// Result describes one imputation.
type Result struct {
	// Filled counts, per class, the cells that were missing (or not numeric,
	// for numeric classes) and received the fill value.
	Filled map[Class]int
	// Absent lists policy columns the table does not carry.
	Absent []string
}

// Engine applies a Policy. It is immutable and safe for concurrent use.
type Engine struct {
	rules []compiledRule
	log   *zap.Logger
}

// New validates p and returns an Engine. logger may be nil.
func New(p Policy, logger *zap.Logger) (*Engine, error) {
	rules, err := p.compile()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rules: rules, log: logger}, nil
}

// Apply implements the transformer interface.
func (e *Engine) Apply(ctx context.Context, in records.Table) (records.Table, error) {
	out, _, err := e.Impute(ctx, in)
	return out, err
}

// Impute returns a filled copy of in. Numeric classes store every present
// value as float64; a value that does not parse as a number counts as missing.
// Applying Impute to its own output changes nothing.
func (e *Engine) Impute(ctx context.Context, in records.Table) (records.Table, Result, error) {
	res := Result{Filled: map[Class]int{}}
	if err := ctx.Err(); err != nil {
		return records.Table{}, res, err
	}
	out := in.Clone()
	for _, r := range e.rules {
		for _, col := range r.columns {
			if !out.HasColumn(col) {
				res.Absent = append(res.Absent, col)
				continue
			}
			res.Filled[r.class] += fillColumn(out.Rows, col, r)
		}
		if err := ctx.Err(); err != nil {
			return records.Table{}, res, err
		}
	}
	sort.Strings(res.Absent)

	if err := e.verify(out); err != nil {
		return records.Table{}, res, err
	}
	e.log.Info("impute: done",
		zap.Int("rows", out.Len()),
		zap.Any("filled", res.Filled),
		zap.Strings("absent", res.Absent),
	)
	return out, res, nil
}

func fillColumn(rows []records.Record, col string, r compiledRule) int {
	n := 0
	for _, row := range rows {
		v := row[col]
		if r.numeric {
			if f, ok := records.AsFloat(v); ok {
				row[col] = f
				continue
			}
			row[col] = r.num
			n++
			continue
		}
		if records.IsMissing(v) {
			row[col] = r.label
			n++
		}
	}
	return n
}

// verify checks the post-condition: no policy column present in t holds a
// missing value.
func (e *Engine) verify(t records.Table) error {
	for _, r := range e.rules {
		for _, col := range r.columns {
			if !t.HasColumn(col) {
				continue
			}
			for i, row := range t.Rows {
				if records.IsMissing(row[col]) {
					return fmt.Errorf("%w: %s row %d", ErrUnfilled, col, i)
				}
			}
		}
	}
	return nil
}

// Columns returns every column the policy fills, grouped by class.
func (e *Engine) Columns() map[Class][]string {
	out := map[Class][]string{}
	for _, r := range e.rules {
		out[r.class] = append(out[r.class], r.columns...)
	}
	return out
}

package builtin

import (
	"context"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// Require removes any record missing a value for any of the specified fields.
type Require struct {
	Fields []string
}

// Apply returns a table containing only records that have all required
// fields present and non-missing.
func (r Require) Apply(ctx context.Context, in records.Table) (records.Table, error) {
	if err := ctx.Err(); err != nil {
		return records.Table{}, err
	}
	out := records.Table{Columns: append([]string(nil), in.Columns...)}
	for _, rec := range in.Rows {
		ok := true
		for _, f := range r.Fields {
			if records.IsMissing(rec[f]) {
				ok = false
				break
			}
		}
		if ok {
			out.Rows = append(out.Rows, rec.Clone())
		}
	}
	return out, nil
}

package builtin

import (
	"context"
	"strings"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// Trim trims surrounding whitespace (including NBSP) from every string cell;
// cells left blank become missing.
type Trim struct{}

func (Trim) Apply(ctx context.Context, in records.Table) (records.Table, error) {
	if err := ctx.Err(); err != nil {
		return records.Table{}, err
	}
	out := in.Clone()
	for _, r := range out.Rows {
		for k, v := range r {
			s, ok := v.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
			if s == "" {
				r[k] = nil
				continue
			}
			r[k] = s
		}
	}
	return out, nil
}

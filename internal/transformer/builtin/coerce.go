package builtin

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// Coerce converts string cells to typed values. A value that fails to parse
// keeps its original string.
type Coerce struct {
	Types  map[string]string // field -> one of: int, float, bool, date, string
	Layout string            // date layout; default 2006-01-02
}

func (c Coerce) Apply(ctx context.Context, in records.Table) (records.Table, error) {
	if err := ctx.Err(); err != nil {
		return records.Table{}, err
	}
	if len(c.Types) == 0 {
		return in, nil
	}
	layout := c.Layout
	if layout == "" {
		layout = "2006-01-02"
	}
	out := in.Clone()
	for _, r := range out.Rows {
		for field, typ := range c.Types {
			s, isStr := r[field].(string)
			if !isStr {
				continue
			}
			s = strings.TrimSpace(s)
			switch typ {
			case "int":
				if i, err := strconv.Atoi(s); err == nil {
					r[field] = i
				}
			case "float":
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					r[field] = f
				}
			case "bool":
				if b, err := strconv.ParseBool(s); err == nil {
					r[field] = b
				}
			case "date":
				if t, err := time.Parse(layout, s); err == nil {
					r[field] = t
				}
			case "string":
				// already string
			}
		}
	}
	return out, nil
}

// Package resolve assigns every raw column of an extract exactly one role:
// identifier (kept), coded (replaced by a labeled column), excluded (dropped)
// or unrecognized (kept, with a notice). The precedence is fixed; which
// columns fall into which role is layout data.
package resolve

import (
	"fmt"

	"github.com/sophie2chance2/foster-care-analysis/internal/codebook"
	"github.com/sophie2chance2/foster-care-analysis/internal/diag"
	"github.com/sophie2chance2/foster-care-analysis/internal/schema"
)

// Resolution is the decision for one raw column.
type Resolution struct {
	// Column is the canonical (folded, renamed) raw name.
	Column string
	Role   schema.Role
	// Output is the column written to the normalized table: the raw name for
	// identifiers and unrecognized columns, the label name for coded columns
	// and "" for excluded ones.
	Output string
}

// Plan is the resolution of a whole header, in input order.
type Plan struct {
	Resolutions []Resolution
	Notices     []diag.Notice
}

// Outputs returns the output column names, in input order, skipping dropped
// columns.
func (p Plan) Outputs() []string {
	out := make([]string, 0, len(p.Resolutions))
	for _, r := range p.Resolutions {
		if r.Output != "" {
			out = append(out, r.Output)
		}
	}
	return out
}

// Dropped returns the raw columns that do not survive under their own name:
// coded columns replaced by a label of a different name and excluded columns.
func (p Plan) Dropped() []string {
	var out []string
	for _, r := range p.Resolutions {
		if r.Output != r.Column {
			out = append(out, r.Column)
		}
	}
	return out
}

// Count returns how many columns resolved to role.
func (p Plan) Count(role schema.Role) int {
	n := 0
	for _, r := range p.Resolutions {
		if r.Role == role {
			n++
		}
	}
	return n
}

// Resolver applies the role precedence against a compiled layout and a code
// book. It is immutable and safe for concurrent use.
type Resolver struct {
	layout *schema.Compiled
	book   *codebook.Book
}

// New returns a Resolver. An empty or missing code book is fatal: without it
// no coded column can be resolved.
func New(layout *schema.Compiled, book *codebook.Book) (*Resolver, error) {
	if layout == nil {
		return nil, fmt.Errorf("resolve: nil layout")
	}
	if book.Len() == 0 {
		return nil, codebook.ErrEmpty
	}
	return &Resolver{layout: layout, book: book}, nil
}

// Resolve classifies one canonical column name. Precedence:
// identifier/pass-through, then coded, then excluded, then unrecognized.
func (r *Resolver) Resolve(col string) Resolution {
	switch {
	case r.layout.IsKept(col):
		return Resolution{Column: col, Role: schema.RoleIdentifier, Output: col}
	case r.book.Has(col):
		return Resolution{Column: col, Role: schema.RoleCoded, Output: r.layout.LabelFor(col)}
	case r.layout.IsExcluded(col):
		return Resolution{Column: col, Role: schema.RoleExcluded}
	default:
		return Resolution{Column: col, Role: schema.RoleUnrecognized, Output: col}
	}
}

// Label looks up the label of a coded column's raw value.
func (r *Resolver) Label(col string, raw any) (string, bool) {
	return r.book.Lookup(col, raw)
}

// Plan resolves every column of a header. source names the input for the
// notices raised on unrecognized columns.
func (r *Resolver) Plan(source string, columns []string) Plan {
	p := Plan{Resolutions: make([]Resolution, 0, len(columns))}
	for _, c := range columns {
		res := r.Resolve(c)
		p.Resolutions = append(p.Resolutions, res)
		if res.Role == schema.RoleUnrecognized {
			p.Notices = append(p.Notices, diag.Notice{
				Kind:    diag.KindUnrecognizedColumn,
				Source:  source,
				Column:  c,
				Message: "column matches no identifier, code book variable or exclusion; passed through",
			})
		}
	}
	return p
}

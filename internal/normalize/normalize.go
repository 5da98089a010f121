// Package normalize turns a raw extract into the canonical record schema:
// column names folded once up front, coded columns replaced by labels,
// excluded and consumed columns dropped, derived columns computed.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/internal/codebook"
	"github.com/sophie2chance2/foster-care-analysis/internal/diag"
	"github.com/sophie2chance2/foster-care-analysis/internal/resolve"
	"github.com/sophie2chance2/foster-care-analysis/internal/schema"
	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

var (
	// ErrColumnCollision means two raw columns fold to the same name.
	ErrColumnCollision = errors.New("normalize: column names collide after case folding")
	// ErrSchemaConflict means the output schema would carry a column twice or
	// re-emit a column the layout drops.
	ErrSchemaConflict = errors.New("normalize: conflicting output schema")
)

// Report describes one normalization.
type Report struct {
	Source string
	Rows   int
	Plan   resolve.Plan
	// Unmapped counts, per labeled column, the cells whose raw code had no
	// label in the code book.
	Unmapped map[string]int
	// Absent lists derivation inputs the extract does not carry.
	Absent []string
}

// Option customises a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option { return func(n *Normalizer) { n.log = l } }

// WithSink routes notices to s; the default discards.
func WithSink(s diag.Sink) Option { return func(n *Normalizer) { n.sink = s } }

// WithSource names the input in notices raised by Apply.
func WithSource(name string) Option { return func(n *Normalizer) { n.source = name } }

// Normalizer applies one layout and one code book. It holds no per-run state
// and may be reused and shared.
type Normalizer struct {
	layout *schema.Compiled
	res    *resolve.Resolver
	log    *zap.Logger
	sink   diag.Sink
	source string
}

// New builds a Normalizer. A missing or empty code book is fatal.
func New(layout *schema.Compiled, book *codebook.Book, opts ...Option) (*Normalizer, error) {
	res, err := resolve.New(layout, book)
	if err != nil {
		return nil, err
	}
	n := &Normalizer{layout: layout, res: res, log: zap.NewNop(), sink: diag.Discard}
	for _, o := range opts {
		o(n)
	}
	if n.log == nil {
		n.log = zap.NewNop()
	}
	if n.sink == nil {
		n.sink = diag.Discard
	}
	return n, nil
}

// Apply implements the transformer interface using the source name given
// with WithSource.
func (n *Normalizer) Apply(ctx context.Context, in records.Table) (records.Table, error) {
	out, _, err := n.Normalize(ctx, n.source, in)
	return out, err
}

// Normalize returns the normalized copy of in. The input table is not
// modified. Batch-level problems (colliding names, conflicting schema) are
// returned as errors; row-level problems degrade single cells to missing.
func (n *Normalizer) Normalize(ctx context.Context, source string, in records.Table) (records.Table, Report, error) {
	rep := Report{Source: source, Rows: in.Len(), Unmapped: map[string]int{}}
	if err := ctx.Err(); err != nil {
		return records.Table{}, rep, err
	}

	// canonical name -> raw header name
	rawKey := make(map[string]string, len(in.Columns))
	canon := make([]string, 0, len(in.Columns))
	for _, c := range in.Columns {
		k := n.layout.Canonical(c)
		if prev, dup := rawKey[k]; dup {
			return records.Table{}, rep, fmt.Errorf("%w: %s: %q and %q both fold to %q", ErrColumnCollision, source, prev, c, k)
		}
		rawKey[k] = c
		canon = append(canon, k)
	}

	rep.Plan = n.res.Plan(source, canon)
	derive := n.layout.Layout.Derive
	cols := append(rep.Plan.Outputs(), n.layout.DerivedNames()...)
	if err := verifySchema(cols, rep.Plan.Dropped()); err != nil {
		return records.Table{}, rep, fmt.Errorf("%s: %w", source, err)
	}
	for _, d := range derive {
		for _, col := range d.Inputs() {
			if _, ok := rawKey[col]; !ok {
				rep.Absent = append(rep.Absent, col)
			}
		}
	}
	rep.Absent = dedupSorted(rep.Absent)

	out := records.Table{Columns: cols, Rows: make([]records.Record, 0, in.Len())}
	for i, raw := range in.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return records.Table{}, rep, err
			}
		}
		rec := make(records.Record, len(cols))
		for _, r := range rep.Plan.Resolutions {
			v := raw[rawKey[r.Column]]
			switch r.Role {
			case schema.RoleIdentifier, schema.RoleUnrecognized:
				rec[r.Output] = v
			case schema.RoleCoded:
				label, ok := n.res.Label(r.Column, v)
				if !ok {
					if !records.IsMissing(v) {
						rep.Unmapped[r.Output]++
					}
					rec[r.Output] = nil
					continue
				}
				rec[r.Output] = label
			}
		}
		get := func(col string) any {
			k, ok := rawKey[col]
			if !ok {
				return nil
			}
			return raw[k]
		}
		for _, d := range derive {
			rec[d.Name] = n.derive(d, get)
		}
		out.Rows = append(out.Rows, rec)
	}

	n.report(rep)
	return out, rep, nil
}

func (n *Normalizer) derive(d schema.Derivation, get func(string) any) any {
	layouts := n.layout.Layout.DateLayouts
	switch d.Kind {
	case schema.DeriveYearDiff:
		from, ok1 := records.AsFloat(get(d.From))
		to, ok2 := records.AsFloat(get(d.To))
		if !ok1 || !ok2 {
			return nil
		}
		return to - from
	case schema.DeriveAgeYears, schema.DeriveDaysBetween:
		from, ok := parseDate(get(d.From), layouts)
		if !ok {
			return nil
		}
		to := n.layout.Reference
		if d.To != "" {
			if to, ok = parseDate(get(d.To), layouts); !ok {
				return nil
			}
		}
		days := wholeDays(from, to)
		if d.Kind == schema.DeriveDaysBetween {
			return float64(days)
		}
		// Whole-year floor of days/365; leap days are ignored.
		return float64(floorDiv(days, 365))
	}
	return nil
}

func (n *Normalizer) report(rep Report) {
	for _, nt := range rep.Plan.Notices {
		n.sink.Notice(nt)
	}
	for _, col := range sortedKeys(rep.Unmapped) {
		n.sink.Notice(diag.Notice{
			Kind:    diag.KindUnmappedCode,
			Source:  rep.Source,
			Column:  col,
			Count:   rep.Unmapped[col],
			Message: "codes without a label set to missing",
		})
	}
	for _, col := range rep.Absent {
		n.sink.Notice(diag.Notice{
			Kind:    diag.KindAbsentColumn,
			Source:  rep.Source,
			Column:  col,
			Message: "derivation input not in extract; derived column left missing",
		})
	}
	n.log.Info("normalize: done",
		zap.String("source", rep.Source),
		zap.Int("rows", rep.Rows),
		zap.Int("identifier", rep.Plan.Count(schema.RoleIdentifier)),
		zap.Int("coded", rep.Plan.Count(schema.RoleCoded)),
		zap.Int("excluded", rep.Plan.Count(schema.RoleExcluded)),
		zap.Int("unrecognized", rep.Plan.Count(schema.RoleUnrecognized)),
	)
}

// verifySchema rejects an output schema with a repeated name, or one that
// re-emits a raw column the plan drops.
func verifySchema(cols, dropped []string) error {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: column %q produced twice", ErrSchemaConflict, c)
		}
		seen[c] = struct{}{}
	}
	for _, d := range dropped {
		if _, ok := seen[d]; ok {
			return fmt.Errorf("%w: dropped column %q re-appears in output", ErrSchemaConflict, d)
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

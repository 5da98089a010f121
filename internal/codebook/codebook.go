// Package codebook maps (variable, raw code) pairs to human-readable labels.
//
// A Book is built once from a code-definition table with the three columns
// VarName, Value and ValueLabel and then shared read-only by every column and
// every row of a batch. Lookups never fail: an unknown variable or code is
// reported as unmapped and the caller decides what that means.
package codebook

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sophie2chance2/foster-care-analysis/internal/schema"
	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

var (
	// ErrEmpty means the definitions held no usable (variable, code, label)
	// triple. Fatal for a batch.
	ErrEmpty = errors.New("codebook: no code definitions")
	// ErrMalformed means the definitions could not be read as a code book:
	// a required column is missing or a code maps to two different labels.
	ErrMalformed = errors.New("codebook: malformed definitions")
)

// Column names of the definition table, compared after case folding.
const (
	ColVarName = "varname"
	ColValue   = "value"
	ColLabel   = "valuelabel"
)

// Definition is one row of the code-definition table.
type Definition struct {
	VarName string
	Value   string
	Label   string
}

// Option customises Build and FromTable.
type Option func(*options)

type options struct {
	aliases map[string]string
}

// WithAliases renames code-book variables before grouping. Keys are the names
// used in the definitions, values the source column they describe (the county
// FIPS code is published as FIPS but the extracts call it FIPSCODE).
func WithAliases(aliases map[string]string) Option {
	return func(o *options) {
		for from, to := range aliases {
			o.aliases[schema.FoldName(from)] = schema.FoldName(to)
		}
	}
}

// Book is the grouped index variable → code → label.
type Book struct {
	index map[string]map[string]string
	codes int
}

// Build groups defs into a Book. Rows with an empty variable name or code are
// ignored; an identical repeated row is tolerated; the same code with two
// different labels is ErrMalformed.
func Build(defs []Definition, opts ...Option) (*Book, error) {
	o := options{aliases: map[string]string{}}
	for _, fn := range opts {
		fn(&o)
	}

	b := &Book{index: map[string]map[string]string{}}
	for i, d := range defs {
		name := schema.FoldName(d.VarName)
		if to, ok := o.aliases[name]; ok {
			name = to
		}
		code, ok := CanonicalCode(d.Value)
		if name == "" || !ok {
			continue
		}
		label := strings.TrimSpace(d.Label)
		codes := b.index[name]
		if codes == nil {
			codes = map[string]string{}
			b.index[name] = codes
		}
		if prev, dup := codes[code]; dup {
			if prev != label {
				return nil, fmt.Errorf("%w: row %d: %s=%s labeled both %q and %q", ErrMalformed, i, name, code, prev, label)
			}
			continue
		}
		codes[code] = label
		b.codes++
	}
	if b.codes == 0 {
		return nil, ErrEmpty
	}
	return b, nil
}

// FromTable builds a Book from a parsed definition table. Header names are
// matched case-insensitively.
func FromTable(t records.Table, opts ...Option) (*Book, error) {
	cols := map[string]string{}
	for _, c := range t.Columns {
		cols[schema.FoldName(c)] = c
	}
	var missing []string
	for _, want := range []string{ColVarName, ColValue, ColLabel} {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing column(s) %s", ErrMalformed, strings.Join(missing, ", "))
	}
	defs := make([]Definition, 0, len(t.Rows))
	for _, r := range t.Rows {
		defs = append(defs, Definition{
			VarName: records.AsString(r[cols[ColVarName]]),
			Value:   records.AsString(r[cols[ColValue]]),
			Label:   records.AsString(r[cols[ColLabel]]),
		})
	}
	return Build(defs, opts...)
}

// Lookup returns the label for raw under varName. ok is false when the
// variable is unknown, the value is missing or the code has no label.
func (b *Book) Lookup(varName string, raw any) (label string, ok bool) {
	if b == nil {
		return "", false
	}
	codes, found := b.index[schema.FoldName(varName)]
	if !found {
		return "", false
	}
	code, valid := CanonicalCode(raw)
	if !valid {
		return "", false
	}
	label, ok = codes[code]
	return label, ok
}

// Has reports whether the book carries a mapping for varName.
func (b *Book) Has(varName string) bool {
	if b == nil {
		return false
	}
	_, ok := b.index[schema.FoldName(varName)]
	return ok
}

// Variables returns the folded variable names, sorted.
func (b *Book) Variables() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.index))
	for v := range b.index {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of distinct (variable, code) pairs.
func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return b.codes
}

// CanonicalCode renders a raw code so that 7, "7", "7.0" and "07" compare
// equal. Non-numeric codes are trimmed and kept as written. ok is false for
// missing values.
func CanonicalCode(raw any) (string, bool) {
	if records.IsMissing(raw) {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return formatNumber(f), true
		}
		return s, true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	}
	if f, ok := records.AsFloat(raw); ok {
		return formatNumber(f), true
	}
	return strings.TrimSpace(fmt.Sprint(raw)), true
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Package schema holds the declarative description of a source-year extract:
// which raw columns are identifiers, which coded columns become which labeled
// columns, which columns are dropped, and which columns are derived. Adding
// support for a new source year means writing a new Layout, not new code.
package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Role is the outcome of resolving one raw column.
type Role string

const (
	RoleIdentifier   Role = "identifier"
	RoleCoded        Role = "coded"
	RoleExcluded     Role = "excluded"
	RoleUnrecognized Role = "unrecognized"
)

// DerivationKind selects how a derived column is computed.
type DerivationKind string

const (
	// DeriveAgeYears is floor(elapsed days / 365) between From (a date) and
	// To (a date column) or the layout reference date when To is empty.
	DeriveAgeYears DerivationKind = "age_years"
	// DeriveYearDiff is To - From on year numbers.
	DeriveYearDiff DerivationKind = "year_diff"
	// DeriveDaysBetween is whole days between From and To (or the reference date).
	DeriveDaysBetween DerivationKind = "days_between"
)

// Derivation describes one computed column.
type Derivation struct {
	Name string         `yaml:"name" json:"name"`
	Kind DerivationKind `yaml:"kind" json:"kind"`
	From string         `yaml:"from" json:"from"`
	To   string         `yaml:"to,omitempty" json:"to,omitempty"`
}

// Inputs returns the raw columns the derivation reads.
func (d Derivation) Inputs() []string {
	if d.To == "" {
		return []string{d.From}
	}
	return []string{d.From, d.To}
}

// Layout is the column-role table for one source schema.
type Layout struct {
	Name string `yaml:"name" json:"name"`

	// Identifiers are retained verbatim (record id, reporting year, subject id).
	Identifiers []string `yaml:"identifiers" json:"identifiers"`

	// Passthrough are retained verbatim like identifiers; they hold numeric
	// values not subject to code mapping (payments, counts, 0/1 flags).
	Passthrough []string `yaml:"passthrough" json:"passthrough"`

	// Labels maps a coded raw column to the name of its labeled column. A
	// coded column with no entry keeps its raw name.
	Labels map[string]string `yaml:"labels" json:"labels"`

	// Exclude lists raw columns dropped without substitution.
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Rename maps a source-year raw column name onto the canonical raw name
	// used by the rest of the layout. Applied right after case folding.
	Rename map[string]string `yaml:"rename" json:"rename"`

	Derive []Derivation `yaml:"derive" json:"derive"`

	// ReferenceDate anchors age_years/days_between derivations (YYYY-MM-DD).
	ReferenceDate string `yaml:"reference_date" json:"reference_date"`

	// DateLayouts are tried in order when parsing raw dates. The token "sas"
	// accepts numeric SAS dates (days since 1960-01-01).
	DateLayouts []string `yaml:"date_layouts" json:"date_layouts"`

	// SubjectColumn and YearColumn identify a subject across years; they
	// feed re-entry detection.
	SubjectColumn string `yaml:"subject_column" json:"subject_column"`
	YearColumn    string `yaml:"year_column" json:"year_column"`
}

// DefaultDateLayouts is used when a layout lists none.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"02Jan2006",
	"sas",
}

//go:embed afcars.yaml
var afcarsYAML []byte

// DefaultLayout returns the built-in AFCARS foster-care layout.
func DefaultLayout() Layout {
	l, err := ParseLayout(afcarsYAML)
	if err != nil {
		panic(fmt.Sprintf("schema: embedded afcars layout: %v", err))
	}
	return l
}

// ParseLayout decodes a YAML (or JSON, which is valid YAML) layout.
func ParseLayout(b []byte) (Layout, error) {
	var l Layout
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil {
		return Layout{}, fmt.Errorf("decode layout: %w", err)
	}
	return l, nil
}

// LoadLayout reads and decodes a layout file.
func LoadLayout(path string) (Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout %s: %w", path, err)
	}
	l, err := ParseLayout(b)
	if err != nil {
		return Layout{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Validate returns every structural problem found in l. An empty result
// means Compile will succeed.
func (l Layout) Validate() []error {
	var errs []error
	seen := map[string]string{}
	claim := func(name, what string) {
		n := FoldName(name)
		if n == "" {
			errs = append(errs, fmt.Errorf("%s: empty column name", what))
			return
		}
		if prev, ok := seen[n]; ok {
			errs = append(errs, fmt.Errorf("output column %q produced by both %s and %s", n, prev, what))
			return
		}
		seen[n] = what
	}
	for _, c := range l.Identifiers {
		claim(c, "identifiers")
	}
	for _, c := range l.Passthrough {
		claim(c, "passthrough")
	}
	for raw, label := range l.Labels {
		if FoldName(raw) == "" {
			errs = append(errs, errors.New("labels: empty raw column name"))
			continue
		}
		claim(label, fmt.Sprintf("labels[%s]", raw))
	}
	for i, d := range l.Derive {
		where := fmt.Sprintf("derive[%d]", i)
		claim(d.Name, where)
		if FoldName(d.From) == "" {
			errs = append(errs, fmt.Errorf("%s: from must not be empty", where))
		}
		switch d.Kind {
		case DeriveAgeYears, DeriveDaysBetween:
		case DeriveYearDiff:
			if FoldName(d.To) == "" {
				errs = append(errs, fmt.Errorf("%s: year_diff requires to", where))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown kind %q", where, d.Kind))
		}
	}
	if l.ReferenceDate != "" {
		if _, err := time.Parse("2006-01-02", l.ReferenceDate); err != nil {
			errs = append(errs, fmt.Errorf("reference_date: %w", err))
		}
	} else {
		for i, d := range l.Derive {
			if d.Kind != DeriveYearDiff && d.To == "" {
				errs = append(errs, fmt.Errorf("derive[%d]: %s without to needs reference_date", i, d.Kind))
			}
		}
	}
	return errs
}

// Compiled is a Layout with every name folded and every lookup precomputed.
type Compiled struct {
	Layout    Layout
	Reference time.Time

	keep     map[string]struct{}
	exclude  map[string]struct{}
	consumed map[string]struct{}
	labels   map[string]string
	rename   map[string]string
}

// Compile validates l and builds the lookup sets used by the resolver.
func (l Layout) Compile() (*Compiled, error) {
	if errs := l.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("layout %q: %w", l.Name, errors.Join(errs...))
	}
	c := &Compiled{
		keep:     map[string]struct{}{},
		exclude:  map[string]struct{}{},
		consumed: map[string]struct{}{},
		labels:   map[string]string{},
		rename:   map[string]string{},
	}
	f := Layout{
		Name:          l.Name,
		Identifiers:   FoldAll(l.Identifiers),
		Passthrough:   FoldAll(l.Passthrough),
		Exclude:       FoldAll(l.Exclude),
		ReferenceDate: l.ReferenceDate,
		DateLayouts:   append([]string(nil), l.DateLayouts...),
		SubjectColumn: FoldName(l.SubjectColumn),
		YearColumn:    FoldName(l.YearColumn),
		Labels:        map[string]string{},
		Rename:        map[string]string{},
	}
	if len(f.DateLayouts) == 0 {
		f.DateLayouts = append([]string(nil), DefaultDateLayouts...)
	}
	for _, n := range f.Identifiers {
		c.keep[n] = struct{}{}
	}
	for _, n := range f.Passthrough {
		c.keep[n] = struct{}{}
	}
	for _, n := range f.Exclude {
		c.exclude[n] = struct{}{}
	}
	for raw, label := range l.Labels {
		// Labeled names keep their spelling (camelCase output schema).
		c.labels[FoldName(raw)] = strings.TrimSpace(label)
		f.Labels[FoldName(raw)] = strings.TrimSpace(label)
	}
	for from, to := range l.Rename {
		c.rename[FoldName(from)] = FoldName(to)
		f.Rename[FoldName(from)] = FoldName(to)
	}
	for _, d := range l.Derive {
		fd := Derivation{Name: strings.TrimSpace(d.Name), Kind: d.Kind, From: FoldName(d.From), To: FoldName(d.To)}
		f.Derive = append(f.Derive, fd)
		for _, in := range fd.Inputs() {
			c.consumed[in] = struct{}{}
		}
	}
	if l.ReferenceDate != "" {
		ref, _ := time.Parse("2006-01-02", l.ReferenceDate)
		c.Reference = ref
	}
	c.Layout = f
	return c, nil
}

// Canonical folds a raw header name and applies the layout rename map.
func (c *Compiled) Canonical(raw string) string {
	n := FoldName(raw)
	if to, ok := c.rename[n]; ok {
		return to
	}
	return n
}

// IsKept reports whether col is an identifier or pass-through column.
func (c *Compiled) IsKept(col string) bool {
	_, ok := c.keep[col]
	return ok
}

// IsExcluded reports whether col is dropped without substitution, either
// listed explicitly or consumed by a derivation.
func (c *Compiled) IsExcluded(col string) bool {
	if _, ok := c.exclude[col]; ok {
		return true
	}
	_, ok := c.consumed[col]
	return ok
}

// IsConsumed reports whether a derivation reads col.
func (c *Compiled) IsConsumed(col string) bool {
	_, ok := c.consumed[col]
	return ok
}

// LabelFor returns the labeled column name for a coded raw column.
func (c *Compiled) LabelFor(col string) string {
	if l, ok := c.labels[col]; ok && l != "" {
		return l
	}
	return col
}

// DerivedNames returns the derived column names in declaration order.
func (c *Compiled) DerivedNames() []string {
	out := make([]string, len(c.Layout.Derive))
	for i, d := range c.Layout.Derive {
		out[i] = d.Name
	}
	return out
}

// Package reentry flags subjects whose yearly presence series shows a
// presence, then at least one absent year, then presence again.
package reentry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sophie2chance2/foster-care-analysis/internal/bitmap"
	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// DefaultFlagColumn is the name of the appended flag column.
const DefaultFlagColumn = "reentry"

// ErrConfig marks an unusable detector configuration or input shape.
var ErrConfig = errors.New("reentry: invalid configuration")

// Config selects the year window and the wide-table layout.
type Config struct {
	SubjectColumn string `yaml:"subject_column" json:"subject_column"`
	StartYear     int    `yaml:"start_year" json:"start_year"`
	EndYear       int    `yaml:"end_year" json:"end_year"`
	// ColumnFormat names the column of a year with fmt; default "%d".
	ColumnFormat string `yaml:"column_format" json:"column_format"`
	FlagColumn   string `yaml:"flag_column" json:"flag_column"`
	// Workers bounds the parallel scan; default GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`
}

// Detector scans wide indicator tables. It is immutable and safe for
// concurrent use.
type Detector struct {
	cfg   Config
	years []string
	log   *zap.Logger
}

// New validates cfg and returns a Detector. logger may be nil.
func New(cfg Config, logger *zap.Logger) (*Detector, error) {
	if strings.TrimSpace(cfg.SubjectColumn) == "" {
		return nil, fmt.Errorf("%w: subject column is empty", ErrConfig)
	}
	if cfg.StartYear > cfg.EndYear {
		return nil, fmt.Errorf("%w: start year %d after end year %d", ErrConfig, cfg.StartYear, cfg.EndYear)
	}
	if cfg.ColumnFormat == "" {
		cfg.ColumnFormat = "%d"
	}
	if cfg.FlagColumn == "" {
		cfg.FlagColumn = DefaultFlagColumn
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Detector{cfg: cfg, log: logger}
	for y := cfg.StartYear; y <= cfg.EndYear; y++ {
		d.years = append(d.years, fmt.Sprintf(cfg.ColumnFormat, y))
	}
	return d, nil
}

// YearColumns returns the wide-table column of every year in the window.
func (d *Detector) YearColumns() []string { return append([]string(nil), d.years...) }

// FlagColumn returns the name of the appended column.
func (d *Detector) FlagColumn() string { return d.cfg.FlagColumn }

// Series reads the presence series of one wide row: bit i is set iff the
// cell of year StartYear+i is numerically exactly 1.0 (1, 1.0, "1", "1.0").
// Zero, missing, booleans and any other value count as absent.
func (d *Detector) Series(row records.Record) *bitmap.Bitmap {
	b := bitmap.New(len(d.years))
	for i, col := range d.years {
		if present(row[col]) {
			b.Set(i)
		}
	}
	return b
}

func present(v any) bool {
	if _, isBool := v.(bool); isBool {
		return false
	}
	f, ok := records.AsFloat(v)
	return ok && f == 1.0
}

// Encode renders the presence series of row as '1'/'0' in year order.
func (d *Detector) Encode(row records.Record) string { return d.Series(row).String() }

type state int

const (
	seenNone state = iota
	seenPresence
	seenGap
	reentered
)

func step(s state, present bool) state {
	switch s {
	case seenNone:
		if present {
			return seenPresence
		}
	case seenPresence:
		if !present {
			return seenGap
		}
	case seenGap:
		if present {
			return reentered
		}
	}
	return s
}

// Scan reports whether series ('1' present, anything else absent) contains
// a presence, one or more absences and a later presence, contiguously.
func Scan(series string) bool {
	s := seenNone
	for i := 0; i < len(series); i++ {
		if s = step(s, series[i] == '1'); s == reentered {
			return true
		}
	}
	return false
}

// ScanBits is Scan over a bitmap series.
func ScanBits(b *bitmap.Bitmap) bool {
	s := seenNone
	for i := 0; i < b.Len(); i++ {
		if s = step(s, b.Has(i)); s == reentered {
			return true
		}
	}
	return false
}

// Apply returns a copy of in with the flag column appended to every row.
// The flag is true or false, never missing. Rows are scanned in parallel;
// output order equals input order.
func (d *Detector) Apply(ctx context.Context, in records.Table) (records.Table, error) {
	if !in.HasColumn(d.cfg.SubjectColumn) {
		return records.Table{}, fmt.Errorf("%w: table has no subject column %q", ErrConfig, d.cfg.SubjectColumn)
	}
	flags := make([]bool, in.Len())

	g, gctx := errgroup.WithContext(ctx)
	chunk := (in.Len() + d.cfg.Workers - 1) / d.cfg.Workers
	if chunk < 256 {
		chunk = 256
	}
	for lo := 0; lo < in.Len(); lo += chunk {
		lo, hi := lo, min(lo+chunk, in.Len())
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				flags[i] = ScanBits(d.Series(in.Rows[i]))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return records.Table{}, err
	}

	out := in.Clone()
	out.AddColumn(d.cfg.FlagColumn)
	n := 0
	for i, r := range out.Rows {
		r[d.cfg.FlagColumn] = flags[i]
		if flags[i] {
			n++
		}
	}
	d.log.Info("reentry: scanned",
		zap.Int("subjects", in.Len()),
		zap.Int("reentries", n),
		zap.Int("start_year", d.cfg.StartYear),
		zap.Int("end_year", d.cfg.EndYear),
	)
	return out, nil
}

// WidenReport counts long rows that Widen could not place in the window.
type WidenReport struct {
	// MissingYear rows have an empty year cell.
	MissingYear int
	// InvalidYear rows carry a year that is not a whole number, such as
	// "2002.9" or "FY02".
	InvalidYear int
	// OutOfWindow rows carry a whole year outside [StartYear, EndYear]; a
	// year-month value such as 200309 lands here.
	OutOfWindow int
}

// Widen builds the wide indicator table from long records: one row per
// subject (ordered by first appearance) and one column per year holding 1.0
// when the subject has a record for that year, else 0.0. Rows without a
// subject are ignored; rows whose year cannot be placed in the window still
// register the subject and are counted in the report.
func (d *Detector) Widen(long records.Table, subjectCol, yearCol string) (records.Table, WidenReport, error) {
	var rep WidenReport
	if !long.HasColumn(subjectCol) || !long.HasColumn(yearCol) {
		return records.Table{}, rep, fmt.Errorf("%w: long table needs columns %q and %q", ErrConfig, subjectCol, yearCol)
	}
	out := records.Table{Columns: append([]string{d.cfg.SubjectColumn}, d.years...)}
	index := map[string]int{}
	for _, r := range long.Rows {
		subj := strings.TrimSpace(records.AsString(r[subjectCol]))
		if subj == "" {
			continue
		}
		i, ok := index[subj]
		if !ok {
			rec := records.Record{d.cfg.SubjectColumn: subj}
			for _, c := range d.years {
				rec[c] = 0.0
			}
			i = len(out.Rows)
			index[subj] = i
			out.Rows = append(out.Rows, rec)
		}
		if records.IsMissing(r[yearCol]) {
			rep.MissingYear++
			continue
		}
		y, ok := records.AsFloat(r[yearCol])
		if !ok || math.IsInf(y, 0) || y != math.Trunc(y) {
			rep.InvalidYear++
			continue
		}
		if y < float64(d.cfg.StartYear) || y > float64(d.cfg.EndYear) {
			rep.OutOfWindow++
			continue
		}
		out.Rows[i][d.years[int(y)-d.cfg.StartYear]] = 1.0
	}
	if rep != (WidenReport{}) {
		d.log.Warn("reentry: rows left out of the presence table",
			zap.String("year_column", yearCol),
			zap.Int("missing_year", rep.MissingYear),
			zap.Int("invalid_year", rep.InvalidYear),
			zap.Int("out_of_window", rep.OutOfWindow),
		)
	}
	return out, rep, nil
}

// Merge attaches flags (a table keyed by subjectCol carrying flagCol) to every
// row of base with the same subject. Subjects without a flag get false.
func Merge(base, flags records.Table, subjectCol, flagCol string) (records.Table, error) {
	if !base.HasColumn(subjectCol) {
		return records.Table{}, fmt.Errorf("%w: base table has no subject column %q", ErrConfig, subjectCol)
	}
	if !flags.HasColumn(subjectCol) || !flags.HasColumn(flagCol) {
		return records.Table{}, fmt.Errorf("%w: flag table needs columns %q and %q", ErrConfig, subjectCol, flagCol)
	}
	bySubject := make(map[string]bool, flags.Len())
	for _, r := range flags.Rows {
		subj := strings.TrimSpace(records.AsString(r[subjectCol]))
		if f, ok := r[flagCol].(bool); ok && f {
			bySubject[subj] = true
		}
	}
	out := base.Clone()
	out.AddColumn(flagCol)
	for _, r := range out.Rows {
		r[flagCol] = bySubject[strings.TrimSpace(records.AsString(r[subjectCol]))]
	}
	return out, nil
}

// Count returns how many rows of t carry a true flag in flagCol.
func Count(t records.Table, flagCol string) int {
	n := 0
	for _, r := range t.Rows {
		if f, ok := r[flagCol].(bool); ok && f {
			n++
		}
	}
	return n
}

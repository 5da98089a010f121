// Package diag carries advisory, non-blocking diagnostics produced while a
// batch is normalized: schema-drift notices, unmapped code counts and the
// end-of-run summary. Nothing here can fail a run.
package diag

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Kind classifies a notice.
type Kind string

const (
	// KindUnrecognizedColumn marks a raw column that matched no resolver role
	// and was passed through unchanged.
	KindUnrecognizedColumn Kind = "unrecognized_column"
	// KindUnmappedCode marks coded cells whose value had no label.
	KindUnmappedCode Kind = "unmapped_code"
	// KindAbsentColumn marks a policy column that the table does not carry.
	KindAbsentColumn Kind = "absent_column"
	// KindInvalidYear marks rows whose reporting year is missing or not a
	// whole number, left out of re-entry detection.
	KindInvalidYear Kind = "invalid_year"
	// KindOutOfWindowYear marks rows whose reporting year falls outside the
	// re-entry window.
	KindOutOfWindowYear Kind = "out_of_window_year"
)

// Notice is a single diagnostic finding.
type Notice struct {
	Kind    Kind
	Source  string // input name (e.g. "2001.tab")
	Column  string
	Count   int // rows affected; 0 when not row-scoped
	Message string
}

// Sink receives notices. Implementations must be safe for concurrent use.
type Sink interface {
	Notice(n Notice)
}

// Collector keeps every notice in memory and optionally mirrors them to a
// logger and a downstream sink.
type Collector struct {
	mu      sync.Mutex
	notices []Notice
	logger  *zap.Logger
	next    Sink
}

// NewCollector returns a Collector. logger and next may be nil.
func NewCollector(logger *zap.Logger, next Sink) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger, next: next}
}

// Notice implements Sink.
func (c *Collector) Notice(n Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()

	c.logger.Warn("diagnostic",
		zap.String("kind", string(n.Kind)),
		zap.String("source", n.Source),
		zap.String("column", n.Column),
		zap.Int("count", n.Count),
		zap.String("message", n.Message),
	)
	if c.next != nil {
		c.next.Notice(n)
	}
}

// Notices returns a copy of the collected notices in arrival order.
func (c *Collector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// Count returns how many notices of kind k were collected.
func (c *Collector) Count(k Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, x := range c.notices {
		if x.Kind == k {
			n++
		}
	}
	return n
}

// Discard is a Sink that drops every notice.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notice(Notice) {}

// Summary is the end-of-run report: record counts and null totals.
type Summary struct {
	RunID         string
	RowsPerInput  map[string]int
	TotalRows     int
	Columns       int
	NullsBefore   map[string]int // after normalization, before imputation
	NullsAfter    map[string]int // final table
	Filled        map[string]int // cells filled per imputation class
	Reentries     int
	Unrecognized  int
	UnmappedCells int
}

// Log writes the summary through logger, listing null totals in column
// order for stable output.
func (s Summary) Log(logger *zap.Logger) {
	if logger == nil {
		return
	}
	logger.Info("run summary",
		zap.String("run_id", s.RunID),
		zap.Int("rows", s.TotalRows),
		zap.Int("columns", s.Columns),
		zap.Any("rows_per_input", s.RowsPerInput),
		zap.Any("filled", s.Filled),
		zap.Int("reentries", s.Reentries),
		zap.Int("unrecognized_columns", s.Unrecognized),
		zap.Int("unmapped_cells", s.UnmappedCells),
	)
	cols := make([]string, 0, len(s.NullsAfter))
	for c := range s.NullsAfter {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		before, after := s.NullsBefore[c], s.NullsAfter[c]
		if before == 0 && after == 0 {
			continue
		}
		logger.Debug("null totals",
			zap.String("column", c),
			zap.Int("before", before),
			zap.Int("after", after),
		)
	}
}

// Package records defines the in-memory row and table types that flow between
// pipeline stages. A Record is a loosely typed row keyed by column name; a
// Table pairs rows with an ordered column list so that stages can reason about
// the schema without scanning every row.
package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one row. Missing values are stored as nil (or left absent).
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered set of columns plus the rows that carry them. Rows may
// omit a column; an absent key reads as missing.
type Table struct {
	Columns []string
	Rows    []Record
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Index returns the position of name in Columns, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is part of the table schema.
func (t Table) HasColumn(name string) bool { return t.Index(name) >= 0 }

// AddColumn appends name to the schema if it is not already present.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Clone deep-copies the schema and row maps (cell values are shared).
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Concat appends the rows of others to t. The resulting schema is the union
// of all column lists in first-seen order.
func Concat(tables ...Table) Table {
	var out Table
	for _, t := range tables {
		for _, c := range t.Columns {
			out.AddColumn(c)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}

// IsMissing reports whether v should be treated as a missing value: nil,
// blank strings, NaN floats and zero times.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	case time.Time:
		return t.IsZero()
	default:
		return false
	}
}

// AsFloat converts common numeric representations to float64. Strings are
// trimmed and parsed; ok is false for missing or non-numeric values.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case float32:
		if math.IsNaN(float64(t)) {
			return 0, false
		}
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsString renders v the way it should appear in text output. Missing values
// render as "". Integral floats print without a fractional part.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(t)
	}
}

// NullCounts returns, for every column in the schema, how many rows hold a
// missing value in it.
func NullCounts(t Table) map[string]int {
	out := make(map[string]int, len(t.Columns))
	for _, c := range t.Columns {
		n := 0
		for _, r := range t.Rows {
			if IsMissing(r[c]) {
				n++
			}
		}
		out[c] = n
	}
	return out
}

package storage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// ColumnType is the storage-neutral type of a destination column. Backends
// map it to their own SQL types.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeNumber
	TypeBool
	TypeTime
)

func (t ColumnType) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	default:
		return "text"
	}
}

// Column is one destination column.
type Column struct {
	Name string
	Type ColumnType
}

// InferColumns derives a column list from t, in schema order. A column is
// numeric, boolean or temporal only when every non-missing value already has
// that Go type; numeric-looking strings stay text so codes such as "007" keep
// their spelling. Columns with no values at all are text.
func InferColumns(t records.Table) []Column {
	out := make([]Column, len(t.Columns))
	for i, name := range t.Columns {
		out[i] = Column{Name: name, Type: inferType(t, name)}
	}
	return out
}

func inferType(t records.Table, name string) ColumnType {
	var (
		seen            bool
		num, bol, tstmp = true, true, true
	)
	for _, r := range t.Rows {
		v := r[name]
		if records.IsMissing(v) {
			continue
		}
		seen = true
		switch v.(type) {
		case float64, float32, int, int32, int64:
			bol, tstmp = false, false
		case bool:
			num, tstmp = false, false
		case time.Time:
			num, bol = false, false
		default:
			return TypeText
		}
	}
	switch {
	case !seen:
		return TypeText
	case num:
		return TypeNumber
	case bol:
		return TypeBool
	case tstmp:
		return TypeTime
	default:
		return TypeText
	}
}

// Value converts v into the driver value for a column of type ct. Missing
// values become nil.
func (ct ColumnType) Value(v any) any {
	if records.IsMissing(v) {
		return nil
	}
	switch ct {
	case TypeNumber:
		if f, ok := records.AsFloat(v); ok && !math.IsInf(f, 0) {
			return f
		}
		return nil
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b
		}
		return nil
	case TypeTime:
		if ts, ok := v.(time.Time); ok {
			return ts
		}
		return nil
	default:
		return records.AsString(v)
	}
}

// DDLFunc renders the backend's CREATE TABLE statement for table and cols.
// The statement must be idempotent.
type DDLFunc func(table string, cols []Column) string

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLFunc{}
)

// RegisterDDL registers (or replaces) the DDL renderer for kind. Backends
// call it from init.
func RegisterDDL(kind string, fn DDLFunc) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// CreateTableSQL validates the definition and renders it with the renderer
// registered for kind.
func CreateTableSQL(kind, table string, cols []Column) (string, error) {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no DDL renderer registered for storage.kind=%q", kind)
	}
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("%s ddl: table name must not be empty", kind)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", kind)
	}
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", kind, table)
		}
		if _, dup := seen[c.Name]; dup {
			return "", fmt.Errorf("%s ddl: duplicate column %s in table %s", kind, c.Name, table)
		}
		seen[c.Name] = struct{}{}
	}
	return fn(table, cols), nil
}

// EnsureTable creates table on repo when it does not exist yet.
func EnsureTable(ctx context.Context, kind string, repo Repository, table string, cols []Column) error {
	stmt, err := CreateTableSQL(kind, table, cols)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

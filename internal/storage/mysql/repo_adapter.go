package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/sophie2chance2/foster-care-analysis/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mysql", createTableSQL)
}

func createTableSQL(table string, cols []storage.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("  %s %s NULL", myIdent(c.Name), mapType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n) DEFAULT CHARSET=utf8mb4;", myFQN(table), strings.Join(defs, ",\n"))
}

func mapType(t storage.ColumnType) string {
	switch t {
	case storage.TypeNumber:
		return "DOUBLE"
	case storage.TypeBool:
		return "BOOLEAN"
	case storage.TypeTime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

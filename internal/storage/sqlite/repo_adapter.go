package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/sophie2chance2/foster-care-analysis/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds Close to *Repository so it satisfies storage.Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("sqlite", createTableSQL)
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS with SQLite affinities:
// numbers are REAL, booleans INTEGER 0/1, times ISO-8601 TEXT.
func createTableSQL(table string, cols []storage.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("  %s %s", quoteIdent(c.Name), mapType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);", quoteFQN(table), strings.Join(defs, ",\n"))
}

func mapType(t storage.ColumnType) string {
	switch t {
	case storage.TypeNumber:
		return "REAL"
	case storage.TypeBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/sophie2chance2/foster-care-analysis/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to *Repository and
// calling the close function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("postgres", createTableSQL)
}

func createTableSQL(table string, cols []storage.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("  %s %s", pgIdent(c.Name), mapType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);", pgFQN(table), strings.Join(defs, ",\n"))
}

func mapType(t storage.ColumnType) string {
	switch t {
	case storage.TypeNumber:
		return "double precision"
	case storage.TypeBool:
		return "boolean"
	case storage.TypeTime:
		return "timestamp"
	default:
		return "text"
	}
}

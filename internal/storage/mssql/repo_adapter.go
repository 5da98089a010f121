package mssql

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

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mssql", createTableSQL)
}

// createTableSQL guards CREATE TABLE with OBJECT_ID since T-SQL has no
// CREATE TABLE IF NOT EXISTS.
func createTableSQL(table string, cols []storage.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("  %s %s NULL", msIdent(c.Name), mapType(c.Type))
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n%s\n);",
		strings.ReplaceAll(table, "'", "''"), msFQN(table), strings.Join(defs, ",\n"))
}

func mapType(t storage.ColumnType) string {
	switch t {
	case storage.TypeNumber:
		return "FLOAT"
	case storage.TypeBool:
		return "BIT"
	case storage.TypeTime:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

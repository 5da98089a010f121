package mssql

import (
	"context"
	"testing"

	"github.com/sophie2chance2/foster-care-analysis/internal/storage"
)

// TestRegistration swaps the newRepository hook, so it does not run in
// parallel.
func TestRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{cfg: cfg}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{
		Kind:  "mssql",
		DSN:   "sqlserver://sa:pw@localhost:1433?database=afcars",
		Table: "dbo.episodes",
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotCfg.Table != "dbo.episodes" {
		t.Fatalf("hook cfg = %+v", gotCfg)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close did not call closeFn")
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := storage.CreateTableSQL("mssql", "dbo.episodes", []storage.Column{
		{Name: "stfcid", Type: storage.TypeText},
		{Name: "age", Type: storage.TypeNumber},
		{Name: "reentry", Type: storage.TypeBool},
		{Name: "odd]col", Type: storage.TypeTime},
	})
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	want := "IF OBJECT_ID(N'dbo.episodes', N'U') IS NULL\n" +
		"CREATE TABLE [dbo].[episodes] (\n" +
		"  [stfcid] NVARCHAR(MAX) NULL,\n" +
		"  [age] FLOAT NULL,\n" +
		"  [reentry] BIT NULL,\n" +
		"  [odd]]col] DATETIME2 NULL\n" +
		");"
	if got != want {
		t.Fatalf("sql =\n%s\nwant\n%s", got, want)
	}
}

func TestNewRepositoryRejectsBadDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{DSN: "sqlserver://%zz"}); err == nil {
		t.Fatal("want DSN parse error")
	}
}

package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/sophie2chance2/foster-care-analysis/internal/storage"
	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// newMemRepo opens an in-memory repository wrapped the way the storage
// factory returns it, so it can be passed to storage.EnsureTable and
// storage.WriteTable.
func newMemRepo(tb testing.TB, table string) *wrappedRepo {
	tb.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: ":memory:", Table: table})
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	w := &wrappedRepo{Repository: r, closeFn: closeFn}
	tb.Cleanup(w.Close)
	return w
}

// TestWriteTableRoundTrip creates a table from inferred columns, streams a
// small cleaned table into it and reads it back.
func TestWriteTableRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newMemRepo(t, "episodes")

	tbl := records.Table{
		Columns: []string{"stfcid", "currentPlacementSetting", "ageAtReferenceDate", "reentry"},
		Rows: []records.Record{
			{"stfcid": "A1", "currentPlacementSetting": "Kinship Care", "ageAtReferenceDate": 11.0, "reentry": true},
			{"stfcid": "B2", "currentPlacementSetting": "Foster Family Home", "ageAtReferenceDate": nil, "reentry": false},
			{"stfcid": "C3", "currentPlacementSetting": nil, "ageAtReferenceDate": 4.0, "reentry": false},
		},
	}
	cols := storage.InferColumns(tbl)
	if err := storage.EnsureTable(ctx, "sqlite", r, "episodes", cols); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Idempotent.
	if err := storage.EnsureTable(ctx, "sqlite", r, "episodes", cols); err != nil {
		t.Fatalf("EnsureTable twice: %v", err)
	}

	n, err := storage.WriteTable(ctx, r, cols, tbl, storage.WriteOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted %d; want 3", n)
	}
	got, err := r.CountRows(ctx)
	if err != nil || got != 3 {
		t.Fatalf("CountRows = %d, %v; want 3", got, err)
	}

	var (
		setting string
		age     float64
		flag    int
	)
	row := r.db.QueryRowContext(ctx,
		`SELECT "currentPlacementSetting", "ageAtReferenceDate", "reentry" FROM "episodes" WHERE "stfcid" = 'A1'`)
	if err := row.Scan(&setting, &age, &flag); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if setting != "Kinship Care" || age != 11 || flag != 1 {
		t.Fatalf("row = %q %v %d", setting, age, flag)
	}

	var nulls int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM "episodes" WHERE "ageAtReferenceDate" IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 1 {
		t.Fatalf("null ages = %d; want 1", nulls)
	}
}

func TestCopyFromErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newMemRepo(t, "t")
	if err := r.Exec(ctx, `CREATE TABLE "t" ("a" TEXT)`); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if _, err := r.CopyFrom(ctx, nil, [][]any{{1}}); err == nil {
		t.Fatal("want error for empty columns")
	}
	if n, err := r.CopyFrom(ctx, []string{"a"}, nil); err != nil || n != 0 {
		t.Fatalf("empty rows: n=%d err=%v", n, err)
	}
	_, err := r.CopyFrom(ctx, []string{"a"}, [][]any{{"x", "y"}})
	if err == nil || !strings.Contains(err.Error(), "row length") {
		t.Fatalf("err = %v; want row length mismatch", err)
	}
	if got, _ := r.CountRows(ctx); got != 0 {
		t.Fatalf("rolled back insert left %d rows", got)
	}
}

func TestNewRepositoryRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatal("want error for empty DSN")
	}
}

package storage

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

func TestInferColumns(t *testing.T) {
	t.Parallel()

	when := time.Date(2001, 9, 30, 0, 0, 0, 0, time.UTC)
	tbl := records.Table{
		Columns: []string{"stfcid", "fcmntpay", "reentry", "dob", "empty", "mixed"},
		Rows: []records.Record{
			{"stfcid": "007", "fcmntpay": 310.5, "reentry": true, "dob": when, "mixed": 1.0},
			{"stfcid": "008", "fcmntpay": nil, "reentry": false, "dob": nil, "mixed": true},
			{"stfcid": "", "fcmntpay": 0, "empty": ""},
		},
	}
	want := []Column{
		{Name: "stfcid", Type: TypeText},
		{Name: "fcmntpay", Type: TypeNumber},
		{Name: "reentry", Type: TypeBool},
		{Name: "dob", Type: TypeTime},
		{Name: "empty", Type: TypeText},
		{Name: "mixed", Type: TypeText},
	}
	if diff := cmp.Diff(want, InferColumns(tbl)); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
}

func TestColumnTypeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ct   ColumnType
		in   any
		want any
	}{
		{TypeNumber, "12", 12.0},
		{TypeNumber, math.NaN(), nil},
		{TypeNumber, "n/a", nil},
		{TypeBool, true, true},
		{TypeBool, "yes", nil},
		{TypeText, 7.0, "7"},
		{TypeText, "  ", nil},
		{TypeTime, "2001-09-30", nil},
	}
	for _, tt := range tests {
		if got := tt.ct.Value(tt.in); got != tt.want {
			t.Fatalf("%s.Value(%#v) = %#v; want %#v", tt.ct, tt.in, got, tt.want)
		}
	}
}

func TestCreateTableSQLAndEnsure(t *testing.T) {
	t.Parallel()

	RegisterDDL("fake-ddl", func(table string, cols []Column) string {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = c.Name + " " + c.Type.String()
		}
		return "CREATE " + table + " (" + strings.Join(parts, ", ") + ")"
	})

	cols := []Column{{Name: "id", Type: TypeText}, {Name: "age", Type: TypeNumber}}
	got, err := CreateTableSQL("fake-ddl", "episodes", cols)
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	if want := "CREATE episodes (id text, age number)"; got != want {
		t.Fatalf("sql = %q; want %q", got, want)
	}

	repo := &fakeRepo{}
	if err := EnsureTable(context.Background(), "fake-ddl", repo, "episodes", cols); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.stmts) != 1 || repo.stmts[0] != got {
		t.Fatalf("executed %v; want the rendered statement", repo.stmts)
	}

	bad := []struct {
		kind, table string
		cols        []Column
		msg         string
	}{
		{"nope", "t", cols, "no DDL renderer"},
		{"fake-ddl", " ", cols, "table name must not be empty"},
		{"fake-ddl", "t", nil, "at least one column"},
		{"fake-ddl", "t", []Column{{Name: ""}}, "empty name"},
		{"fake-ddl", "t", []Column{{Name: "a"}, {Name: "a"}}, "duplicate column a"},
	}
	for _, b := range bad {
		_, err := CreateTableSQL(b.kind, b.table, b.cols)
		if err == nil || !strings.Contains(err.Error(), b.msg) {
			t.Fatalf("CreateTableSQL(%q, %q) err = %v; want %q", b.kind, b.table, err, b.msg)
		}
	}
}

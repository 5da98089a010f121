package records

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestIsMissing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want bool
	}{
		{"nil", nil, true},
		{"empty", "", true},
		{"blank", "   ", true},
		{"nan", math.NaN(), true},
		{"zero_time", time.Time{}, true},
		{"zero_float", 0.0, false},
		{"text", "Unknown", false},
		{"bool_false", false, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsMissing(tc.in); got != tc.want {
				t.Fatalf("IsMissing(%#v) = %v; want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestAsFloat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{"12", 12, true},
		{" 7.0 ", 7, true},
		{"abc", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{int64(3), 3, true},
		{true, 1, true},
		{math.NaN(), 0, false},
	}
	for _, tc := range cases {
		got, ok := AsFloat(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Fatalf("AsFloat(%#v) = (%v,%v); want (%v,%v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestAsString(t *testing.T) {
	t.Parallel()

	if got := AsString(1.0); got != "1" {
		t.Fatalf("AsString(1.0) = %q; want %q", got, "1")
	}
	if got := AsString(12.5); got != "12.5" {
		t.Fatalf("AsString(12.5) = %q", got)
	}
	if got := AsString(nil); got != "" {
		t.Fatalf("AsString(nil) = %q", got)
	}
	if got := AsString(true); got != "true" {
		t.Fatalf("AsString(true) = %q", got)
	}
}

func TestConcatOwnsItsSchema(t *testing.T) {
	t.Parallel()

	a := Table{
		Columns: []string{"id", "sex"},
		Rows:    []Record{{"id": "1", "sex": "M"}},
	}
	snapshot := a.Clone()

	b := Table{Columns: []string{"id", "year"}, Rows: []Record{{"id": "2", "year": 2001.0}}}
	got := Concat(a, b)
	if diff := cmp.Diff([]string{"id", "sex", "year"}, got.Columns); diff != "" {
		t.Fatalf("concat columns (-want +got):\n%s", diff)
	}
	if got.Len() != 2 {
		t.Fatalf("Len = %d; want 2", got.Len())
	}

	// Growing or rewriting the result never shows through a.
	got.Columns[0] = "recnumbr"
	got.AddColumn("reentry")
	if diff := cmp.Diff(snapshot, a); diff != "" {
		t.Fatalf("input table changed (-want +got):\n%s", diff)
	}
}

func TestNullCounts(t *testing.T) {
	t.Parallel()

	tb := Table{
		Columns: []string{"a", "b"},
		Rows: []Record{
			{"a": "x", "b": nil},
			{"a": "", "b": 1.0},
			{"a": "y"},
		},
	}
	want := map[string]int{"a": 1, "b": 2}
	if diff := cmp.Diff(want, NullCounts(tb)); diff != "" {
		t.Fatalf("NullCounts (-want +got):\n%s", diff)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	tb := Table{Columns: []string{"a"}, Rows: []Record{{"a": "1"}}}
	cp := tb.Clone()
	cp.Rows[0]["a"] = "2"
	cp.Columns[0] = "z"
	if tb.Rows[0]["a"] != "1" || tb.Columns[0] != "a" {
		t.Fatalf("clone mutated the original: %#v", tb)
	}
}

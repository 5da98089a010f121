package impute

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

func sampleTable() records.Table {
	return records.Table{
		Columns: []string{"recnumbr", "fcmntpay", "lifelos", "totalrem", "phydis", "currentPlacementSetting", "dischargeReason", "ageAtReferenceDate"},
		Rows: []records.Record{
			{"recnumbr": "1", "fcmntpay": nil, "lifelos": "", "totalrem": nil, "phydis": nil,
				"currentPlacementSetting": "Kinship Care", "dischargeReason": nil, "ageAtReferenceDate": nil},
			{"recnumbr": "2", "fcmntpay": "310.5", "lifelos": "12", "totalrem": "3", "phydis": "1",
				"currentPlacementSetting": nil, "dischargeReason": "Unknown", "ageAtReferenceDate": 7.0},
			{"recnumbr": "3", "fcmntpay": "n/a", "lifelos": math.NaN(), "totalrem": 2, "phydis": true,
				"currentPlacementSetting": "  ", "ageAtReferenceDate": nil},
		},
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultPolicy(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestImputeByClass(t *testing.T) {
	t.Parallel()

	in := sampleTable()
	out, res, err := newEngine(t).Impute(context.Background(), in)
	if err != nil {
		t.Fatalf("Impute: %v", err)
	}

	want := []records.Record{
		{"recnumbr": "1", "fcmntpay": 0.0, "lifelos": 0.0, "totalrem": 1.0, "phydis": 0.0,
			"currentPlacementSetting": "Kinship Care", "dischargeReason": DataNotGiven, "ageAtReferenceDate": nil},
		{"recnumbr": "2", "fcmntpay": 310.5, "lifelos": 12.0, "totalrem": 3.0, "phydis": 1.0,
			"currentPlacementSetting": DataNotGiven, "dischargeReason": "Unknown", "ageAtReferenceDate": 7.0},
		{"recnumbr": "3", "fcmntpay": 0.0, "lifelos": 0.0, "totalrem": 2.0, "phydis": 1.0,
			"currentPlacementSetting": DataNotGiven, "dischargeReason": DataNotGiven, "ageAtReferenceDate": nil},
	}
	if diff := cmp.Diff(want, out.Rows); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	wantFilled := map[Class]int{ClassMonetary: 2, ClassDuration: 2, ClassCount: 1, ClassIndicator: 1, ClassCategorical: 4}
	if diff := cmp.Diff(wantFilled, res.Filled); diff != "" {
		t.Fatalf("filled (-want +got):\n%s", diff)
	}
	if len(res.Absent) == 0 || res.Absent[0] != "aachild" {
		t.Fatalf("absent = %v; want sorted list of columns not in the table", res.Absent)
	}
	// Input untouched.
	if in.Rows[0]["fcmntpay"] != nil {
		t.Fatalf("input was modified")
	}
}

func TestMustFillColumnsNonMissing(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	out, err := e.Apply(context.Background(), sampleTable())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, cols := range e.Columns() {
		for _, c := range cols {
			if !out.HasColumn(c) {
				continue
			}
			for i, r := range out.Rows {
				if records.IsMissing(r[c]) {
					t.Fatalf("row %d column %s is missing", i, c)
				}
			}
		}
	}
	// Columns outside the policy keep their missing values.
	if out.Rows[0]["ageAtReferenceDate"] != nil {
		t.Fatalf("unclassified column must pass through")
	}
}

func TestImputeIdempotent(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	once, err := e.Apply(context.Background(), sampleTable())
	if err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	twice, res, err := e.Impute(context.Background(), once)
	if err != nil {
		t.Fatalf("second Impute: %v", err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second pass changed the table (-once +twice):\n%s", diff)
	}
	for c, n := range res.Filled {
		if n != 0 {
			t.Fatalf("second pass filled %d cells of class %s", n, c)
		}
	}
}

func TestPolicyOverridesAndErrors(t *testing.T) {
	t.Parallel()

	p := Policy{Rules: []Rule{
		{Class: ClassCount, Columns: []string{"numplep"}, Fill: 2},
		{Class: ClassCategorical, Columns: []string{"sex"}, Fill: "Not Reported"},
	}}
	e, err := New(p, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := e.Apply(context.Background(), records.Table{
		Columns: []string{"numplep", "sex"},
		Rows:    []records.Record{{}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff(records.Record{"numplep": 2.0, "sex": "Not Reported"}, out.Rows[0]); diff != "" {
		t.Fatalf("row (-want +got):\n%s", diff)
	}

	bad := []Policy{
		{Rules: []Rule{{Class: "weird", Columns: []string{"x"}}}},
		{Rules: []Rule{{Class: ClassMonetary, Columns: []string{"x"}, Fill: "zero"}}},
		{Rules: []Rule{{Class: ClassCategorical, Columns: []string{"x"}, Fill: 0}}},
		{Rules: []Rule{
			{Class: ClassMonetary, Columns: []string{"x"}},
			{Class: ClassDuration, Columns: []string{"x"}},
		}},
	}
	for i, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrPolicy) {
			t.Fatalf("case %d: err = %v; want ErrPolicy", i, err)
		}
	}
}

func TestImputeCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newEngine(t).Apply(ctx, sampleTable()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
}

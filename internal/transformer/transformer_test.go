package transformer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

/*
addColumn returns a copy of the input with key set to val on every row.
*/
func addColumn(key string, val any) Transformer {
	return Func(func(_ context.Context, in records.Table) (records.Table, error) {
		out := in.Clone()
		out.AddColumn(key)
		for _, r := range out.Rows {
			r[key] = val
		}
		return out, nil
	})
}

func failing(msg string) Transformer {
	return Func(func(context.Context, records.Table) (records.Table, error) {
		return records.Table{}, errors.New(msg)
	})
}

func TestChainRunsInOrder(t *testing.T) {
	t.Parallel()

	in := records.Table{Columns: []string{"id"}, Rows: []records.Record{{"id": "1"}, {"id": "2"}}}
	c := Chain{addColumn("rank", 1), addColumn("rank", 2), addColumn("other", "x")}

	out, err := c.Apply(context.Background(), in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := records.Table{
		Columns: []string{"id", "rank", "other"},
		Rows: []records.Record{
			{"id": "1", "rank": 2, "other": "x"},
			{"id": "2", "rank": 2, "other": "x"},
		},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
	if in.HasColumn("rank") {
		t.Fatalf("input table was modified")
	}
}

func TestEmptyChainIsIdentity(t *testing.T) {
	t.Parallel()

	in := records.Table{Columns: []string{"a"}, Rows: []records.Record{{"a": 1}}}
	out, err := Chain{}.Apply(context.Background(), in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestChainStopsOnError(t *testing.T) {
	t.Parallel()

	called := false
	after := Func(func(_ context.Context, in records.Table) (records.Table, error) {
		called = true
		return in, nil
	})
	c := Chain{addColumn("a", 1), Named{Name: "impute", Transformer: failing("boom")}, after}
	_, err := c.Apply(context.Background(), records.Table{})
	if err == nil || !strings.Contains(err.Error(), "step impute: boom") {
		t.Fatalf("err = %v; want step name and cause", err)
	}
	if called {
		t.Fatalf("stage after the failing one must not run")
	}
}

func TestChainHonoursCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Chain{addColumn("a", 1)}).Apply(ctx, records.Table{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
}

package diag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type recordingSink struct{ got []Notice }

func (r *recordingSink) Notice(n Notice) { r.got = append(r.got, n) }

func TestCollectorForwardsAndCounts(t *testing.T) {
	t.Parallel()

	next := &recordingSink{}
	c := NewCollector(zap.NewNop(), next)
	c.Notice(Notice{Kind: KindUnrecognizedColumn, Column: "newcol"})
	c.Notice(Notice{Kind: KindUnmappedCode, Column: "sex", Count: 3})
	c.Notice(Notice{Kind: KindUnrecognizedColumn, Column: "other"})

	if got := c.Count(KindUnrecognizedColumn); got != 2 {
		t.Fatalf("Count(unrecognized) = %d; want 2", got)
	}
	if len(next.got) != 3 {
		t.Fatalf("forwarded %d notices; want 3", len(next.got))
	}
	ns := c.Notices()
	ns[0].Column = "mutated"
	if c.Notices()[0].Column != "newcol" {
		t.Fatalf("Notices must return a copy")
	}
}

func TestCSVLogWritesRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "notices.csv")
	l, closeFn, err := NewCSVLog(path)
	if err != nil {
		t.Fatalf("NewCSVLog: %v", err)
	}
	l.Notice(Notice{Kind: KindUnrecognizedColumn, Source: "2002.tab", Column: "newflag", Message: "passed through"})
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines; want 2:\n%s", len(lines), b)
	}
	if lines[0] != "kind,source,column,count,message" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "unrecognized_column,2002.tab,newflag,0,passed through" {
		t.Fatalf("row = %q", lines[1])
	}
}

package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// WriteCSV writes a header row in column order followed by one line per row.
// Numbers print without trailing zeros, booleans as true/false and missing
// values as empty cells. ctx is checked every 4096 rows.
func WriteCSV(ctx context.Context, w io.Writer, t records.Table) (int64, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(t.Columns))
	var n int64
	for i, r := range t.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		for j, c := range t.Columns {
			line[j] = records.AsString(r[c])
		}
		if err := cw.Write(line); err != nil {
			return n, fmt.Errorf("write row %d: %w", i, err)
		}
		n++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("flush: %w", err)
	}
	return n, nil
}

// CSVFile writes the table to Path, creating parent directories. The file
// is written to a temporary name and renamed into place so a failed run
// never leaves a truncated output.
type CSVFile struct {
	Path string
}

// Name returns the output path.
func (c CSVFile) Name() string { return c.Path }

// Write implements Sink.
func (c CSVFile) Write(ctx context.Context, t records.Table) (int64, error) {
	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.Path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp for %s: %w", c.Path, err)
	}
	n, err := WriteCSV(ctx, tmp, t)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return n, fmt.Errorf("csv %s: %w", c.Path, err)
	}
	if err := os.Rename(tmp.Name(), c.Path); err != nil {
		_ = os.Remove(tmp.Name())
		return n, fmt.Errorf("rename into %s: %w", c.Path, err)
	}
	return n, nil
}

package sink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sophie2chance2/foster-care-analysis/internal/storage"
	_ "github.com/sophie2chance2/foster-care-analysis/internal/storage/sqlite"
	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

func cleaned() records.Table {
	return records.Table{
		Columns: []string{"stfcid", "fcmntpay", "currentPlacementSetting", "dob", "reentry"},
		Rows: []records.Record{
			{"stfcid": "A1", "fcmntpay": 310.50, "currentPlacementSetting": "Kinship Care",
				"dob": time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC), "reentry": true},
			{"stfcid": "B2", "fcmntpay": 0.0, "currentPlacementSetting": "Data Not Given, Yet", "reentry": false},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := WriteCSV(context.Background(), &buf, cleaned())
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d; want 2", n)
	}
	want := "stfcid,fcmntpay,currentPlacementSetting,dob,reentry\n" +
		"A1,310.5,Kinship Care,1990-04-02,true\n" +
		"B2,0,\"Data Not Given, Yet\",,false\n"
	if got := buf.String(); got != want {
		t.Fatalf("csv =\n%s\nwant\n%s", got, want)
	}
}

func TestCSVFileAtomicWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "cleaned.csv")
	s := CSVFile{Path: path}
	if _, err := s.Write(context.Background(), cleaned()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output missing: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (CSVFile{Path: filepath.Join(filepath.Dir(path), "second.csv")}).Write(ctx, cleaned()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("directory holds %d entries; a failed write must leave nothing behind", len(entries))
	}
}

func TestDBSinkSQLite(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "afcars.db")
	s := DB{
		Config:     storage.Config{Kind: "sqlite", DSN: dsn, Table: "episodes"},
		AutoCreate: true,
		Options:    storage.WriteOptions{BatchSize: 1},
	}
	if s.Name() != "sqlite:episodes" {
		t.Fatalf("Name() = %q", s.Name())
	}
	n, err := s.Write(context.Background(), cleaned())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d; want 2", n)
	}
	// A second run appends to the existing table.
	if n, err := s.Write(context.Background(), cleaned()); err != nil || n != 2 {
		t.Fatalf("second Write = %d, %v", n, err)
	}
}

package diag

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// CSVLog appends notices to a CSV file with the header
// kind,source,column,count,message.
type CSVLog struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// NewCSVLog creates (or truncates) path, writing the header row. The
// returned close function flushes and closes the file.
func NewCSVLog(path string) (*CSVLog, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"kind", "source", "column", "count", "message"}); err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("write header: %w", err)
	}
	l := &CSVLog{f: f, w: w}
	return l, l.close, nil
}

// Notice implements Sink. Write errors are surfaced on close.
func (l *CSVLog) Notice(n Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.w.Write([]string{string(n.Kind), n.Source, n.Column, strconv.Itoa(n.Count), n.Message})
}

func (l *CSVLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

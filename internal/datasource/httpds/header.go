package httpds

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	fccsv "github.com/sophie2chance2/foster-care-analysis/internal/parser/csv"
)

// DefaultHeaderLimit bounds the ranged read behind Source.Header.
const DefaultHeaderLimit = 64 << 10

var (
	// ErrNoHeader means the object is empty.
	ErrNoHeader = errors.New("httpds: object has no header row")
	// ErrHeaderTooLong means no line break came within the byte limit.
	ErrHeaderTooLong = errors.New("httpds: header row exceeds the byte limit")
)

// HeaderLine is the first row of a delimited extract.
type HeaderLine struct {
	// Raw is the line without its terminator.
	Raw string
	// Comma is the delimiter implied by the object name: tab for .tab and
	// .tsv, comma otherwise.
	Comma  rune
	Fields []string
}

// FetchHeader reads the header row of the extract at rawURL without
// downloading the rest. It asks for the first limit bytes with a Range
// request and never reads more, even when the server ignores the range.
func (c *Client) FetchHeader(ctx context.Context, rawURL string, header http.Header, limit int) (HeaderLine, error) {
	if limit <= 0 {
		return HeaderLine{}, fmt.Errorf("httpds: header limit must be positive, got %d", limit)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Range", fmt.Sprintf("bytes=0-%d", limit-1))

	resp, err := c.Get(ctx, rawURL, h)
	if err != nil {
		return HeaderLine{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		// Nothing at byte 0: the object is empty.
		return HeaderLine{}, fmt.Errorf("%w: %s", ErrNoHeader, rawURL)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return HeaderLine{}, fmt.Errorf("httpds: GET %s: status %d", rawURL, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)))
	if err != nil {
		return HeaderLine{}, fmt.Errorf("httpds: read header of %s: %w", rawURL, err)
	}

	line := string(b)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	} else if len(b) == limit {
		return HeaderLine{}, fmt.Errorf("%w (%d bytes): %s", ErrHeaderTooLong, limit, rawURL)
	}
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return HeaderLine{}, fmt.Errorf("%w: %s", ErrNoHeader, rawURL)
	}
	return splitHeader(line, fccsv.CommaFor(objectName(rawURL)))
}

// splitHeader splits one header line on comma, honouring quotes. A leading
// BOM and space around names are dropped.
func splitHeader(line string, comma rune) (HeaderLine, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = comma
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return HeaderLine{}, fmt.Errorf("httpds: split header: %w", err)
	}
	for i, f := range fields {
		if i == 0 {
			f = strings.TrimPrefix(f, "\uFEFF")
		}
		fields[i] = strings.TrimSpace(f)
	}
	return HeaderLine{Raw: line, Comma: comma, Fields: fields}, nil
}

// objectName is the last path element of rawURL, query excluded.
func objectName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(u.Path)
}

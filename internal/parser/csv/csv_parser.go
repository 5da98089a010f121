// Package csv parses delimited text extracts (comma-separated .csv and
// tab-separated .tab files) into an in-memory records.Table.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// ErrDuplicateHeader is returned when two header cells name the same column.
var ErrDuplicateHeader = errors.New("duplicate header")

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// ExpectedFields, when > 0, enforces a fixed field count per record. Rows
	// with a different width are skipped (soft-fail) and counted.
	ExpectedFields int

	// HeaderMap maps source header names to other names. Only applies when
	// HasHeader is true. Header names are otherwise kept as written (minus a
	// leading BOM and surrounding space); case folding is the normalizer's job.
	HeaderMap map[string]string

	// NullValues lists cell values read as missing in addition to "".
	// SAS exports write "." for a missing numeric.
	NullValues []string

	// SkipLogLimit caps how many skipped rows are logged individually.
	// Zero means 400.
	SkipLogLimit int

	Logger *zap.Logger
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct {
	opt   Options
	nulls map[string]struct{}
	log   *zap.Logger
}

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	p := &Parser{opt: opt, nulls: map[string]struct{}{"": {}}, log: opt.Logger}
	for _, n := range opt.NullValues {
		p.nulls[n] = struct{}{}
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.opt.SkipLogLimit <= 0 {
		p.opt.SkipLogLimit = 400
	}
	return p
}

// CommaFor returns the delimiter implied by a file name: tab for .tab and
// .tsv, comma otherwise.
func CommaFor(name string) rune {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tab", ".tsv":
		return '\t'
	default:
		return ','
	}
}

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Parse consumes delimited records from r and returns them as a table along
// with the number of rows that were skipped due to parse errors or
// field-count mismatches.
func (p *Parser) Parse(r io.Reader) (records.Table, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	if cr.Comma == '\t' {
		// Tab extracts carry stray quotes inside free text.
		cr.LazyQuotes = true
	}
	cr.FieldsPerRecord = -1

	var headers []string
	if p.opt.HasHeader {
		h, err := cr.Read()
		if err != nil {
			return records.Table{}, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers, err = normalizeHeaders(h, p.opt)
		if err != nil {
			return records.Table{}, 0, err
		}
	} else if p.opt.ExpectedFields > 0 {
		headers = make([]string, p.opt.ExpectedFields)
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i)
		}
	}
	width := len(headers)
	if p.opt.ExpectedFields > 0 {
		width = p.opt.ExpectedFields
	}

	out := records.Table{Columns: append([]string(nil), headers...)}
	skipped := 0
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.skip(&skipped, line, err.Error())
			continue
		}
		if width > 0 && len(row) != width {
			p.skip(&skipped, line, fmt.Sprintf("incorrect number of fields (expected %d, got %d)", width, len(row)))
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			key := keyFor(i, headers)
			if i >= len(out.Columns) {
				out.Columns = append(out.Columns, key)
			}
			rec[key] = p.nullable(val)
		}
		out.Rows = append(out.Rows, rec)
	}
	if skipped > 0 {
		p.log.Warn("csv: rows skipped", zap.Int("skipped", skipped), zap.Int("parsed", len(out.Rows)))
	}
	return out, skipped, nil
}

func (p *Parser) skip(n *int, line int, reason string) {
	if *n < p.opt.SkipLogLimit {
		p.log.Warn("csv: skipping row", zap.Int("line", line), zap.String("reason", reason))
	}
	*n++
}

// nullable converts configured null markers to nil; all other values are
// returned as-is.
func (p *Parser) nullable(s string) any {
	if _, ok := p.nulls[s]; ok {
		return nil
	}
	if _, ok := p.nulls[strings.TrimSpace(s)]; ok {
		return nil
	}
	return s
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// normalizeHeaders trims header cells, strips a BOM from the first one and
// applies HeaderMap. Two cells that end up with the same name are an error.
func normalizeHeaders(h []string, opt Options) ([]string, error) {
	res := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimSpace(strings.TrimPrefix(c, utf8BOM))
		}
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		if j, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w %q at positions %d and %d", ErrDuplicateHeader, c, j, i)
		}
		seen[c] = i
		res[i] = c
	}
	return res, nil
}

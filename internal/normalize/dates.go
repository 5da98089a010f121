package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// sasEpoch is day zero of SAS numeric dates.
var sasEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

// layoutSAS is the date layout token for SAS day numbers.
const layoutSAS = "sas"

// SAS day numbers outside this range (roughly 1795 to 2206) are not dates a
// foster-care extract can carry and are treated as unparseable.
const (
	minSASDay = -60000
	maxSASDay = 90000
)

// parseDate reads v as a calendar date using layouts in order. ok is false
// for missing or unparseable values.
func parseDate(v any, layouts []string) (time.Time, bool) {
	if records.IsMissing(v) {
		return time.Time{}, false
	}
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	s := strings.TrimSpace(records.AsString(v))
	for _, l := range layouts {
		if l == layoutSAS {
			if f, ok := records.AsFloat(v); ok && f >= minSASDay && f <= maxSASDay {
				return sasEpoch.AddDate(0, 0, int(math.Floor(f))), true
			}
			continue
		}
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// wholeDays returns the whole days elapsed from a to b, floored. It works on
// Unix seconds because time.Duration saturates after about 292 years.
func wholeDays(a, b time.Time) int {
	secs := b.Unix() - a.Unix()
	days := secs / 86400
	if secs%86400 != 0 && secs < 0 {
		days--
	}
	return int(days)
}

// floorDiv is integer division rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Package builtin contains reusable table transforms configured from the
// pipeline's transform list.
//
// DeDup collapses duplicate records by a configured key and chooses a winner
// according to a configurable policy:
//
//   - "keep-first"   : keep the earliest occurrence
//   - "keep-last"    : keep the latest occurrence (default)
//   - "most-complete": keep the record that has the most non-missing fields;
//     ties break by "keep-last"
//
// Typical use is one record per subject per reporting year when an extract
// carries resubmitted rows.
package builtin

import (
	"context"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// DeDup implements a configurable, in-memory de-duplication policy.
type DeDup struct {
	// Keys are the field names that form the business key, e.g. ["stfcid","repdatyr"].
	Keys []string

	// Policy selects the winner among duplicates: "keep-first", "keep-last",
	// or "most-complete" (default is "keep-last").
	Policy string

	// PreferFields optionally lists fields that weigh more heavily in
	// "most-complete" selection.
	PreferFields []string
}

// Apply returns a table holding one winner per key, in the input order of the
// winners, followed by the records whose key could not be built (a key field
// missing) in input order.
func (d DeDup) Apply(ctx context.Context, in records.Table) (records.Table, error) {
	if err := ctx.Err(); err != nil {
		return records.Table{}, err
	}
	if in.Len() == 0 || len(d.Keys) == 0 {
		return in, nil
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "keep-last"
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[xxh3.Uint128]slot, in.Len())

	prefer := make(map[string]struct{}, len(d.PreferFields))
	for _, f := range d.PreferFields {
		prefer[f] = struct{}{}
	}

	scoreOf := func(r records.Record) int {
		score, bonus := 0, 0
		for k, v := range r {
			if records.IsMissing(v) {
				continue
			}
			score++
			if _, ok := prefer[k]; ok {
				bonus++
			}
		}
		return score*10 + bonus
	}

	var unkeyed []int
	for i, r := range in.Rows {
		key, ok := d.keyOf(r)
		if !ok {
			unkeyed = append(unkeyed, i)
			continue
		}
		switch policy {
		case "keep-first":
			if _, exists := winners[key]; !exists {
				winners[key] = slot{index: i}
			}
		case "most-complete":
			s := slot{index: i, score: scoreOf(r)}
			if prev, exists := winners[key]; !exists || s.score >= prev.score {
				winners[key] = s
			}
		default: // "keep-last"
			winners[key] = slot{index: i}
		}
	}

	indexes := make([]int, 0, len(winners))
	for _, s := range winners {
		indexes = append(indexes, s.index)
	}
	sort.Ints(indexes)

	out := records.Table{Columns: append([]string(nil), in.Columns...), Rows: make([]records.Record, 0, len(indexes)+len(unkeyed))}
	for _, i := range indexes {
		out.Rows = append(out.Rows, in.Rows[i].Clone())
	}
	for _, i := range unkeyed {
		out.Rows = append(out.Rows, in.Rows[i].Clone())
	}
	return out, nil
}

// keyOf hashes the key fields as text. ok is false when a key field is
// missing.
func (d DeDup) keyOf(r records.Record) (xxh3.Uint128, bool) {
	var b strings.Builder
	for i, k := range d.Keys {
		v := r[k]
		if records.IsMissing(v) {
			return xxh3.Uint128{}, false
		}
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(records.AsString(v))
	}
	return xxh3.HashString128(b.String()), true
}

// Package bitmap provides a fixed-length bitset backed by uint64 words. The
// re-entry detector uses one per subject to hold the yearly presence series.
package bitmap

import (
	"math/bits"
	"strings"
)

// Bitmap is a bitset of a fixed length n; bits are indexed [0, n).
type Bitmap struct {
	data []uint64
	n    int
}

// New allocates a bitmap holding n bits, all clear. n <= 0 yields an empty
// bitmap.
func New(n int) *Bitmap {
	if n <= 0 {
		return &Bitmap{}
	}
	return &Bitmap{data: make([]uint64, (n+63)/64), n: n}
}

// Len returns the number of bits.
func (b *Bitmap) Len() int { return b.n }

// Set sets bit i. Out-of-range indexes are ignored.
func (b *Bitmap) Set(i int) {
	if i < 0 || i >= b.n {
		return
	}
	b.data[i/64] |= 1 << uint(i%64)
}

// Has reports whether bit i is set. Out-of-range indexes report false.
func (b *Bitmap) Has(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.data[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	c := 0
	for _, w := range b.data {
		c += bits.OnesCount64(w)
	}
	return c
}

// String renders the bits in index order as '1' and '0'.
func (b *Bitmap) String() string {
	var sb strings.Builder
	sb.Grow(b.n)
	for i := 0; i < b.n; i++ {
		if b.Has(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Parse builds a bitmap from a string of '1' and '0'. Any byte other than
// '1' is a clear bit.
func Parse(s string) *Bitmap {
	b := New(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '1' {
			b.Set(i)
		}
	}
	return b
}

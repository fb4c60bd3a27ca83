// Package hlc implements the hybrid logical clock used to order writes
// authored by a single peer.
package hlc

import "fmt"

// HLC packs a 48-bit physical timestamp and a 16-bit logical counter into a
// single u64. Total order is plain numeric order, so HLCs can be indexed
// directly by a bitmap of u64s.
type HLC uint64

const (
	logicalMask  = uint64(0xFFFF)
	physicalMask = ^logicalMask // 0xFFFF_FFFF_FFFF_0000
)

// New packs l and c, masking each to its field so the two never bleed into
// one another.
func New(l uint64, c uint16) HLC {
	return HLC((l & physicalMask) | (uint64(c) & logicalMask))
}

// ToU64 and FromU64 round-trip an HLC through its u64 representation, the
// form a bitmap index stores.
func (h HLC) ToU64() uint64 {
	return uint64(h)
}

func FromU64(i uint64) HLC {
	return HLC(i)
}

// L returns the physical-time field.
func (h HLC) L() uint64 {
	return uint64(h) & physicalMask
}

// C returns the logical counter field.
func (h HLC) C() uint16 {
	return uint16(uint64(h) & logicalMask)
}

// Inc returns h+1, a numeric increment that never consults the wall clock.
// Counter overflow carries into the physical field through ordinary integer
// addition.
func (h HLC) Inc() HLC {
	return HLC(uint64(h) + 1)
}

// next advances h using pt, the current physical time, which it first masks
// to the same 2^16 granularity as New's l field. If pt is ahead of h's
// physical field the result resets the counter to zero at pt; otherwise it
// numerically increments h. The result is always strictly greater than h.
func (h HLC) next(pt uint64) HLC {
	pt &= physicalMask
	l := h.L()
	if pt > l {
		l = pt
	}
	if l == h.L() {
		return h.Inc()
	}
	return New(l, 0)
}

func (h HLC) String() string {
	return fmt.Sprintf("HLC{l=%d, c=%d}", h.L(), h.C())
}

// Less reports whether h sorts before other under plain numeric order.
func (h HLC) Less(other HLC) bool {
	return h < other
}

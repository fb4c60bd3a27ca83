// Package bitmap wraps a compressed sorted set of u64s, the structure the
// core uses to index live HLCs per peer. It is a thin adapter over
// RoaringBitmap/roaring's 64-bit bitmap so the rest of the module depends on
// this package's narrow surface instead of the roaring API directly.
package bitmap

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Bitmap is a compressed, ordered set of u64 HLC values.
type Bitmap struct {
	rb *roaring64.Bitmap
}

// New returns an empty bitmap.
func New() *Bitmap {
	return &Bitmap{rb: roaring64.New()}
}

// FromSlice builds a bitmap containing exactly the given values.
func FromSlice(values []uint64) *Bitmap {
	b := New()
	for _, v := range values {
		b.rb.Add(v)
	}
	return b
}

// Add inserts v into the set.
func (b *Bitmap) Add(v uint64) {
	b.rb.Add(v)
}

// Remove deletes v from the set, a no-op if absent.
func (b *Bitmap) Remove(v uint64) {
	b.rb.Remove(v)
}

// Contains reports whether v is a member.
func (b *Bitmap) Contains(v uint64) bool {
	return b.rb.Contains(v)
}

// Cardinality returns the number of members.
func (b *Bitmap) Cardinality() uint64 {
	return b.rb.GetCardinality()
}

// IsEmpty reports whether the set has no members.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Difference returns a new bitmap containing b \ other, leaving both
// operands unmodified.
func (b *Bitmap) Difference(other *Bitmap) *Bitmap {
	out := b.Clone()
	out.rb.AndNot(other.rb)
	return out
}

// Union returns a new bitmap containing b ∪ other.
func (b *Bitmap) Union(other *Bitmap) *Bitmap {
	out := b.Clone()
	out.rb.Or(other.rb)
	return out
}

// UnionInPlace folds other's members into b.
func (b *Bitmap) UnionInPlace(other *Bitmap) {
	b.rb.Or(other.rb)
}

const maxU64 = ^uint64(0)

// RemoveAtOrBelow returns a new bitmap with every member ≤ bound removed,
// used to restrict an insert candidate set to HLCs the requester has never
// seen.
func (b *Bitmap) RemoveAtOrBelow(bound uint64) *Bitmap {
	out := b.Clone()
	if bound == maxU64 {
		return New()
	}
	out.rb.RemoveRange(0, bound+1)
	return out
}

// RemoveGreaterThan returns a new bitmap with every member strictly greater
// than bound removed, used to restrict a delete candidate set to HLCs the
// responder has actually witnessed (everything up to and including its
// bookmark).
func (b *Bitmap) RemoveGreaterThan(bound uint64) *Bitmap {
	out := b.Clone()
	if bound == maxU64 {
		return out
	}
	out.rb.RemoveRange(bound+1, maxU64)
	return out
}

// Max returns the largest member, or 0 if the set is empty.
func (b *Bitmap) Max() uint64 {
	if b.rb.IsEmpty() {
		return 0
	}
	return b.rb.Maximum()
}

// Clone returns an independent copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{rb: b.rb.Clone()}
}

// ToSlice returns the set's members in ascending order.
func (b *Bitmap) ToSlice() []uint64 {
	return b.rb.ToArray()
}

// Iterator returns an ascending iterator over the set's members.
func (b *Bitmap) Iterator() roaring64.IntPeekable64 {
	return b.rb.Iterator()
}

// Serialize encodes the bitmap to its compact binary form. Dense runs are
// converted to run containers first (on a clone, so concurrent readers of b
// are unaffected); roaring only builds run containers on request, and the
// consecutive HLCs a transaction allocates depend on them to compress.
func (b *Bitmap) Serialize() ([]byte, error) {
	rb := b.rb.Clone()
	rb.RunOptimize()
	var buf bytes.Buffer
	if _, err := rb.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializedSize returns the byte length Serialize would produce, without
// allocating the buffer.
func (b *Bitmap) SerializedSize() int {
	rb := b.rb.Clone()
	rb.RunOptimize()
	return int(rb.GetSerializedSizeInBytes())
}

// Deserialize decodes data into a new Bitmap.
func Deserialize(data []byte) (*Bitmap, error) {
	rb := roaring64.New()
	if _, err := rb.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return &Bitmap{rb: rb}, nil
}

// GobEncode lets a Bitmap participate directly in gob-encoded structured
// payloads (DiffRequest, Diff, OpSet) by delegating to the roaring wire
// format instead of gob's reflection-based default.
func (b *Bitmap) GobEncode() ([]byte, error) {
	return b.Serialize()
}

// GobDecode is the inverse of GobEncode.
func (b *Bitmap) GobDecode(data []byte) error {
	decoded, err := Deserialize(data)
	if err != nil {
		return err
	}
	b.rb = decoded.rb
	return nil
}

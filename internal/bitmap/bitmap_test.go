package bitmap

import (
	"reflect"
	"testing"
)

func TestAddContainsRemove(t *testing.T) {
	b := New()
	b.Add(5)
	b.Add(10)
	if !b.Contains(5) || !b.Contains(10) {
		t.Fatal("expected both values present")
	}
	b.Remove(5)
	if b.Contains(5) {
		t.Fatal("5 should have been removed")
	}
	if b.Cardinality() != 1 {
		t.Fatalf("cardinality = %d, want 1", b.Cardinality())
	}
}

func TestDifference(t *testing.T) {
	a := FromSlice([]uint64{1, 2, 3, 4})
	b := FromSlice([]uint64{2, 4})
	diff := a.Difference(b)
	if !reflect.DeepEqual(diff.ToSlice(), []uint64{1, 3}) {
		t.Fatalf("difference = %v, want [1 3]", diff.ToSlice())
	}
	// operands unmodified
	if a.Cardinality() != 4 {
		t.Fatalf("Difference mutated operand a")
	}
}

func TestUnion(t *testing.T) {
	a := FromSlice([]uint64{1, 2})
	b := FromSlice([]uint64{2, 3})
	u := a.Union(b)
	if !reflect.DeepEqual(u.ToSlice(), []uint64{1, 2, 3}) {
		t.Fatalf("union = %v, want [1 2 3]", u.ToSlice())
	}
}

func TestRemoveAtOrBelow(t *testing.T) {
	a := FromSlice([]uint64{1, 5, 10, 20})
	out := a.RemoveAtOrBelow(10)
	if !reflect.DeepEqual(out.ToSlice(), []uint64{20}) {
		t.Fatalf("RemoveAtOrBelow(10) = %v, want [20]", out.ToSlice())
	}
}

func TestRemoveGreaterThan(t *testing.T) {
	a := FromSlice([]uint64{1, 5, 10, 20})
	out := a.RemoveGreaterThan(10)
	if !reflect.DeepEqual(out.ToSlice(), []uint64{1, 5, 10}) {
		t.Fatalf("RemoveGreaterThan(10) = %v, want [1 5 10]", out.ToSlice())
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	a := FromSlice([]uint64{1, 2, 3, 1_000_000})
	data, err := a.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	b, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !reflect.DeepEqual(a.ToSlice(), b.ToSlice()) {
		t.Fatalf("round trip mismatch: %v vs %v", a.ToSlice(), b.ToSlice())
	}
}

func TestEmptyBitmapSerializedSize(t *testing.T) {
	b := New()
	if !b.IsEmpty() {
		t.Fatal("new bitmap should be empty")
	}
	if b.SerializedSize() == 0 {
		t.Fatal("even an empty roaring bitmap has a nonzero header size")
	}
}

func TestConsecutiveRunCompresses(t *testing.T) {
	b := New()
	var h uint64 = 1 << 32
	for i := 0; i < 1_000_000; i++ {
		b.Add(h)
		h++
	}
	// 1M consecutive values span 16 roaring containers, each stored as a
	// single run: 242 bytes, against ~131KB as plain bitmap containers.
	if b.SerializedSize() > 242 {
		t.Fatalf("a consecutive run of 1M values should compress to one run per container (242 bytes), got %d bytes", b.SerializedSize())
	}
}

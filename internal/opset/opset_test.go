package opset

import (
	"testing"

	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/peerid"
)

func TestIsEmpty(t *testing.T) {
	o := New(peerid.ID("a"))
	if !o.IsEmpty() {
		t.Fatal("fresh opset should be empty")
	}
	o.RecordInsert(diff.Insert{Key: "k", Value: []byte("v"), HLC: hlc.New(1<<16, 0)})
	if o.IsEmpty() {
		t.Fatal("opset with an insert should not be empty")
	}
}

func TestRecordDeletePrunesPendingInsert(t *testing.T) {
	o := New(peerid.ID("a"))
	h := hlc.New(1<<16, 0)
	o.RecordInsert(diff.Insert{Key: "k", Value: []byte("v"), HLC: h})
	o.RecordDelete(peerid.ID("a"), h.ToU64())

	if len(o.Inserts) != 0 {
		t.Fatalf("expected the pending insert to be pruned, got %d inserts", len(o.Inserts))
	}
	if !o.Deletes[peerid.ID("a")].Contains(h.ToU64()) {
		t.Fatal("expected the delete itself to remain recorded")
	}

	// A delete of another author's HLC never touches the insert log.
	o.RecordInsert(diff.Insert{Key: "k2", HLC: h.Inc()})
	o.RecordDelete(peerid.ID("x"), h.Inc().ToU64())
	if len(o.Inserts) != 1 {
		t.Fatalf("expected remote-author delete to leave inserts alone, got %d", len(o.Inserts))
	}
}

func TestMergePrunesInsertsDeletedByOtherSide(t *testing.T) {
	h := hlc.New(1<<16, 0)
	a := New(peerid.ID("a"))
	a.RecordInsert(diff.Insert{Key: "k", Value: []byte("v"), HLC: h})

	b := New(peerid.ID("a"))
	b.RecordDelete(peerid.ID("a"), h.ToU64())

	a.Merge(b)
	if len(a.Inserts) != 0 {
		t.Fatalf("expected merge to prune the insert deleted by the other log, got %d", len(a.Inserts))
	}
}

func TestMergeConcatenatesInsertsAndUnionsDeletes(t *testing.T) {
	a := New(peerid.ID("a"))
	a.RecordInsert(diff.Insert{Key: "k1", HLC: hlc.New(1<<16, 0)})
	a.RecordDelete(peerid.ID("x"), 10)

	b := New(peerid.ID("a"))
	b.RecordInsert(diff.Insert{Key: "k2", HLC: hlc.New(2<<16, 0)})
	b.RecordDelete(peerid.ID("x"), 20)
	b.RecordDelete(peerid.ID("y"), 30)

	a.Merge(b)

	if len(a.Inserts) != 2 {
		t.Fatalf("expected 2 inserts after merge, got %d", len(a.Inserts))
	}
	if !a.Deletes[peerid.ID("x")].Contains(10) || !a.Deletes[peerid.ID("x")].Contains(20) {
		t.Fatal("expected delete bitmaps for peer x to be unioned")
	}
	if !a.Deletes[peerid.ID("y")].Contains(30) {
		t.Fatal("expected delete bitmap for peer y to be present after merge")
	}
}

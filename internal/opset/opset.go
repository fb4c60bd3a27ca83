// Package opset implements the incremental push-log alternative to a full
// diff round trip: a forward log of inserts authored by one peer plus the
// per-author delete sets accumulated since the last sync point.
package opset

import (
	"github.com/devrajpatel/meshkv/internal/bitmap"
	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/peerid"
)

// OpSet is a record of one peer's live edits between sync points: the
// writes it authored, and the HLCs (of any author) it deleted. Inserts are
// appended in order; RecordDelete and Merge prune inserts that a delete
// cancels.
type OpSet struct {
	AuthorID peerid.ID
	Inserts  []diff.Insert                `json:",omitempty"`
	Deletes  map[peerid.ID]*bitmap.Bitmap `json:",omitempty"`
}

// New returns an empty OpSet captured on behalf of author.
func New(author peerid.ID) *OpSet {
	return &OpSet{AuthorID: author, Deletes: make(map[peerid.ID]*bitmap.Bitmap)}
}

// RecordInsert appends an insert to the log.
func (o *OpSet) RecordInsert(ins diff.Insert) {
	o.Inserts = append(o.Inserts, ins)
}

// RecordDelete notes that the HLC authored by author was removed. A pending
// insert carrying the same HLC is pruned from the log: the receiver applies
// deletes before inserts, so shipping both would resurrect the write on a
// replica that never held it. The delete itself is still recorded for
// replicas that received the write through an earlier sync.
func (o *OpSet) RecordDelete(author peerid.ID, h uint64) {
	if author == o.AuthorID {
		for i := len(o.Inserts) - 1; i >= 0; i-- {
			if o.Inserts[i].HLC.ToU64() == h {
				o.Inserts = append(o.Inserts[:i], o.Inserts[i+1:]...)
				break
			}
		}
	}
	b, ok := o.Deletes[author]
	if !ok {
		b = bitmap.New()
		o.Deletes[author] = b
	}
	b.Add(h)
}

// IsEmpty reports whether the log has accumulated nothing since it was last
// drained.
func (o *OpSet) IsEmpty() bool {
	if len(o.Inserts) > 0 {
		return false
	}
	for _, b := range o.Deletes {
		if !b.IsEmpty() {
			return false
		}
	}
	return true
}

// Merge folds other into o: inserts are concatenated in order, and delete
// bitmaps are unioned per author. Inserts whose HLC the combined log also
// deletes are pruned, preserving RecordDelete's guarantee across merges.
func (o *OpSet) Merge(other *OpSet) {
	o.Inserts = append(o.Inserts, other.Inserts...)
	for author, b := range other.Deletes {
		if existing, ok := o.Deletes[author]; ok {
			existing.UnionInPlace(b)
		} else {
			o.Deletes[author] = b.Clone()
		}
	}
	if dels, ok := o.Deletes[o.AuthorID]; ok && !dels.IsEmpty() {
		kept := o.Inserts[:0]
		for _, ins := range o.Inserts {
			if !dels.Contains(ins.HLC.ToU64()) {
				kept = append(kept, ins)
			}
		}
		o.Inserts = kept
	}
}

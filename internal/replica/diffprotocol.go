package replica

import (
	"github.com/devrajpatel/meshkv/internal/bitmap"
	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/opset"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/peerstate"
	"github.com/devrajpatel/meshkv/internal/storage"
)

// RequestDiff summarizes the replica's current state: one entry per known
// peer (including itself), holding that peer's live index and bookmark.
func (r *Replica) RequestDiff() *diff.DiffRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req := diff.NewRequest()
	for pid, ps := range r.peers {
		req.Peers[pid] = diff.RequestPeerState{
			Index:    ps.Index.Clone(),
			Bookmark: ps.Bookmark,
		}
	}
	return req
}

// BuildDiff computes the delta a requester needs to converge toward this
// replica's state, given the requester's summary.
func (r *Replica) BuildDiff(req *diff.DiffRequest) *diff.Diff {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := diff.NewDiff()
	for pid, ps := range r.peers {
		pd := diff.PeerDiff{Bookmark: ps.Bookmark}

		if reqPS, known := req.Peers[pid]; known {
			rIdx := reqPS.Index
			if rIdx == nil {
				// A peer that omits an empty bitmap from the wire still
				// means "I hold nothing live from p".
				rIdx = bitmap.New()
			}

			// Inserts: S_idx \ R_idx, minus anything R has already seen
			// and deleted (HLC ≤ R's bookmark for this peer).
			insertHLCs := ps.Index.Difference(rIdx).RemoveAtOrBelow(reqPS.Bookmark.ToU64())
			pd.Inserts = r.materialize(ps, insertHLCs)

			// Deletes: R_idx \ S_idx, restricted to HLCs S has actually
			// witnessed (≤ S's bookmark for this peer). The bookmark
			// itself has been seen, so its absence from S_idx is an
			// authoritative delete; anything beyond it is merely unknown
			// to S and must not be propagated.
			pd.Deletes = rIdx.Difference(ps.Index).RemoveGreaterThan(ps.Bookmark.ToU64())
			if pd.Deletes.IsEmpty() {
				// Empty bitmaps are omitted from the encoding.
				pd.Deletes = nil
			}
		} else {
			pd.Inserts = r.materialize(ps, ps.Index)
		}

		// Every peer block is carried: blocks with inserts deliver writes,
		// blocks with deletes deliver tombstones, and empty blocks are
		// informational (the requester learns the peer's existence and
		// bookmark).
		out.Peers[pid] = pd
	}
	return out
}

func (r *Replica) materialize(ps *peerstate.PeerState, hlcs *bitmap.Bitmap) []diff.Insert {
	values := hlcs.ToSlice()
	if len(values) == 0 {
		// Empty insert vectors are omitted from the encoding.
		return nil
	}
	inserts := make([]diff.Insert, 0, len(values))
	for _, hv := range values {
		h := hlc.FromU64(hv)
		key, ok := ps.KeyFor(h)
		if !ok {
			// Invariant violation: every HLC in index must have a key.
			panic("replica: missing key for HLC in peer index")
		}
		entry, ok := r.store.Get(key)
		if !ok {
			panic("replica: missing entry for key referenced by peer index")
		}
		inserts = append(inserts, diff.Insert{Key: key, Value: entry.Value, HLC: h})
	}
	return inserts
}

// IntegrateDiff applies d to the replica in two phases: deletes, then
// inserts.
func (r *Replica) IntegrateDiff(d *diff.Diff) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrateDiffLocked(d)
}

func (r *Replica) integrateDiffLocked(d *diff.Diff) {
	overwritten := make(map[peerid.ID][]hlc.HLC)

	// Phase (a): deletes, for every peer block present locally.
	for pid, pd := range d.Peers {
		ps, known := r.peers[pid]
		if !known || pd.Deletes == nil {
			continue
		}
		for _, hv := range pd.Deletes.ToSlice() {
			// Only HLCs actually removed from the index drop entries;
			// a retained Keys mapping for a displaced local write must
			// not tombstone the newer entry now living at that key.
			if !ps.Index.Contains(hv) {
				continue
			}
			h := hlc.FromU64(hv)
			key, ok := ps.KeyFor(h)
			if !ok {
				panic("replica: missing key for HLC in peer index")
			}
			ps.Remove(h)
			r.store.Delete(key)
		}
	}

	// Phase (b): inserts, per peer block.
	for pid, pd := range d.Peers {
		r.integratePeerInserts(pid, pd, overwritten)
	}

	// Apply collected overwrites: an entry displaced by a causally-later
	// incoming insert must also lose its HLC from its own author's index,
	// or the stale bit lingers and bloats future diffs.
	for author, hlcs := range overwritten {
		ps := r.peerStateFor(author)
		for _, h := range hlcs {
			ps.Remove(h)
		}
	}
}

func (r *Replica) integratePeerInserts(pid peerid.ID, pd diff.PeerDiff, overwritten map[peerid.ID][]hlc.HLC) {
	ps := r.peerStateFor(pid)

	for _, ins := range pd.Inserts {
		existing, hasExisting := r.store.Get(ins.Key)
		installed := false

		if !hasExisting {
			r.store.Put(ins.Key, storage.Entry{Value: ins.Value, Author: pid, HLC: ins.HLC})
			installed = true
		} else if lwwWins(existing.HLC, existing.Author, ins.HLC, pid) {
			r.store.Put(ins.Key, storage.Entry{Value: ins.Value, Author: pid, HLC: ins.HLC})
			overwritten[existing.Author] = append(overwritten[existing.Author], existing.HLC)
			installed = true
		}

		if installed {
			ps.Insert(ins.HLC, ins.Key)
		}
	}

	ps.RaiseBookmark(pd.Bookmark)
}

// lwwWins reports whether an incoming write (incomingHLC, incomingAuthor)
// should replace an existing write (existingHLC, existingAuthor) under LWW:
// compare (hlc, author) lexicographically, the greater tuple wins.
func lwwWins(existingHLC hlc.HLC, existingAuthor peerid.ID, incomingHLC hlc.HLC, incomingAuthor peerid.ID) bool {
	if existingHLC != incomingHLC {
		return existingHLC < incomingHLC
	}
	return existingAuthor < incomingAuthor
}

// IntegrateOpSet applies an incremental OpSet: equivalent to running
// IntegrateDiff with the author peer's bookmark set to the greatest of the
// HLCs in its inserts, the HLCs in its own delete set, and the bookmark
// already held for it.
func (r *Replica) IntegrateOpSet(o *opset.OpSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := diff.NewDiff()

	var authorBookmark hlc.HLC
	for _, ins := range o.Inserts {
		if ins.HLC > authorBookmark {
			authorBookmark = ins.HLC
		}
	}
	if dels, ok := o.Deletes[o.AuthorID]; ok {
		// A pruned insert-then-delete can leave the author's highest HLC
		// visible only in its own delete set.
		if m := hlc.FromU64(dels.Max()); m > authorBookmark {
			authorBookmark = m
		}
	}
	if existing, ok := r.peers[o.AuthorID]; ok && existing.Bookmark > authorBookmark {
		authorBookmark = existing.Bookmark
	}
	d.Peers[o.AuthorID] = diff.PeerDiff{Inserts: o.Inserts, Bookmark: authorBookmark}

	for author, deletes := range o.Deletes {
		pd := d.Peers[author]
		pd.Deletes = deletes
		if pd.Bookmark == 0 {
			if existing, ok := r.peers[author]; ok {
				pd.Bookmark = existing.Bookmark
			}
		}
		d.Peers[author] = pd
	}

	r.integrateDiffLocked(d)
}

package replica

import (
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/storage"
)

// EntrySnapshot is one live (key, value) pair with its provenance, the
// shape a durable storage binding persists.
type EntrySnapshot struct {
	Key    string
	Value  []byte
	Author peerid.ID
	HLC    uint64
}

// PeerSnapshot is one peer's index and bookmark, as persisted HLC values.
type PeerSnapshot struct {
	ID       peerid.ID
	Index    []uint64
	Bookmark uint64
}

// Snapshot captures a replica's full state for durable persistence.
func (r *Replica) Snapshot() ([]EntrySnapshot, []PeerSnapshot) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]EntrySnapshot, 0, r.store.Len())
	for _, kv := range r.store.Entries() {
		entries = append(entries, EntrySnapshot{
			Key:    kv.Key,
			Value:  kv.Entry.Value,
			Author: kv.Entry.Author,
			HLC:    kv.Entry.HLC.ToU64(),
		})
	}

	peers := make([]PeerSnapshot, 0, len(r.peers))
	for id, ps := range r.peers {
		peers = append(peers, PeerSnapshot{
			ID:       id,
			Index:    ps.Index.ToSlice(),
			Bookmark: ps.Bookmark.ToU64(),
		})
	}
	return entries, peers
}

// Restore reconstructs a replica's peer index/bookmark state and store
// contents from a previously captured Snapshot, loading them into a fresh
// Replica it constructs with New(id, opts...).
func Restore(id peerid.ID, entries []EntrySnapshot, peers []PeerSnapshot, opts ...Option) *Replica {
	r := New(id, opts...)
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range entries {
		r.store.Put(rec.Key, storage.Entry{
			Value:  rec.Value,
			Author: rec.Author,
			HLC:    hlc.FromU64(rec.HLC),
		})
	}
	for _, pr := range peers {
		ps := r.peerStateFor(pr.ID)
		for _, h := range pr.Index {
			ps.Index.Add(h)
		}
		for i := range entries {
			if entries[i].Author == pr.ID {
				ps.Keys[entries[i].HLC] = entries[i].Key
			}
		}
		ps.RaiseBookmark(hlc.FromU64(pr.Bookmark))
		if pr.ID == id {
			// The clock must resume past the restored bookmark or a
			// fresh write could reuse a pre-restart HLC.
			r.clock.Observe(hlc.FromU64(pr.Bookmark))
		}
	}
	return r
}

// Package replica implements the CRDT key-value store's core: the write
// path, transactional batch commit, and the request_diff/build_diff/
// integrate_diff protocol that lets two replicas converge.
package replica

import (
	"sync"

	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/opset"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/peerstate"
	"github.com/devrajpatel/meshkv/internal/storage"
)

// Replica is one participating node holding a full copy of the store. All
// mutating operations require exclusive access; Get/Entries/RequestDiff/
// BuildDiff require only shared access. The core itself is single-threaded
// per the data model; Replica adds a mutex so a hosting system (the gRPC
// service) can safely share one Replica across goroutines without
// coordinating externally.
type Replica struct {
	mu      sync.RWMutex
	localID peerid.ID
	clock   *hlc.Clock
	store   *storage.Store
	peers   map[peerid.ID]*peerstate.PeerState
	opset   *opset.OpSet // nil unless opset capture is enabled
}

// Option configures a Replica at construction time.
type Option func(*Replica)

// WithOpsetCapture enables live opset capture from construction: every
// local insert/remove also appends to an internal OpSet, drainable with
// TakeOpSet.
func WithOpsetCapture() Option {
	return func(r *Replica) {
		r.opset = opset.New(r.localID)
	}
}

// WithPhysicalTime injects a physical-time source for the replica's clock,
// the seam tests use to pin HLC allocation deterministically.
func WithPhysicalTime(now hlc.PhysicalTimeFunc) Option {
	return func(r *Replica) {
		r.clock = hlc.NewClock(now)
	}
}

// New constructs an empty replica with local peer identity id.
func New(id peerid.ID, opts ...Option) *Replica {
	r := &Replica{
		localID: id,
		clock:   hlc.NewClock(nil),
		store:   storage.New(),
		peers:   make(map[peerid.ID]*peerstate.PeerState),
	}
	r.peers[id] = peerstate.New()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the replica's local peer identity.
func (r *Replica) ID() peerid.ID {
	return r.localID
}

func (r *Replica) localPeer() *peerstate.PeerState {
	return r.peers[r.localID]
}

// peerStateFor returns the PeerState for id, creating an empty one if this
// is the first time the replica has seen that peer.
func (r *Replica) peerStateFor(id peerid.ID) *peerstate.PeerState {
	ps, ok := r.peers[id]
	if !ok {
		ps = peerstate.New()
		r.peers[id] = ps
	}
	return ps
}

// displaceFromIndex removes h from author's index. For a remote author, the
// key mapping is removed too (the write is tombstoned and never needs
// re-materializing). For the local author, the key mapping is retained —
// matching the write path exactly as specified, not trimmed for tidiness.
func (r *Replica) displaceFromIndex(author peerid.ID, h hlc.HLC) {
	ps := r.peerStateFor(author)
	ps.Index.Remove(h.ToU64())
	if author != r.localID {
		delete(ps.Keys, h.ToU64())
	}
}

// Insert writes value at key, returning the previously stored value if one
// existed.
func (r *Replica) Insert(key string, value []byte) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(key, value, 0, false)
}

// insertLocked performs the local write path. If useHLC is true, h is used
// verbatim instead of allocating from the clock — the transactional commit
// path supplies consecutive pre-allocated HLCs this way.
func (r *Replica) insertLocked(key string, value []byte, h hlc.HLC, useHLC bool) ([]byte, bool) {
	if !useHLC {
		h = r.clock.Now()
	}
	local := r.localPeer()
	local.Insert(h, key)

	old, existed := r.store.Put(key, storage.Entry{Value: value, Author: r.localID, HLC: h})
	if existed {
		r.displaceFromIndex(old.Author, old.HLC)
	}

	if r.opset != nil {
		r.opset.RecordInsert(diff.Insert{Key: key, Value: value, HLC: h})
		if existed {
			r.opset.RecordDelete(old.Author, old.HLC.ToU64())
		}
	}

	if existed {
		return old.Value, true
	}
	return nil, false
}

// Remove deletes key, returning the previously stored value if one existed.
func (r *Replica) Remove(key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(key)
}

func (r *Replica) removeLocked(key string) ([]byte, bool) {
	old, existed := r.store.Delete(key)
	if !existed {
		return nil, false
	}
	ps := r.peerStateFor(old.Author)
	ps.Index.Remove(old.HLC.ToU64())
	delete(ps.Keys, old.HLC.ToU64())

	if r.opset != nil {
		r.opset.RecordDelete(old.Author, old.HLC.ToU64())
	}
	return old.Value, true
}

// Get returns the value at key, if any.
func (r *Replica) Get(key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.store.Get(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Len returns the number of live entries.
func (r *Replica) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Len()
}

// IsEmpty reports whether the replica holds no entries.
func (r *Replica) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.IsEmpty()
}

// Entries returns every live key-value pair as a map, for whole-state
// comparison between replicas.
func (r *Replica) Entries() map[string][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kvs := r.store.Entries()
	out := make(map[string][]byte, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Entry.Value
	}
	return out
}

// SortedEntries returns every live (key, entry) pair ordered by key, the
// deterministic iteration order the entry store guarantees.
func (r *Replica) SortedEntries() []storage.KV {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Entries()
}

// TakeOpSet drains and returns the replica's accumulated OpSet, resetting it
// to empty. Returns nil if opset capture was never enabled.
func (r *Replica) TakeOpSet() *opset.OpSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opset == nil {
		return nil
	}
	drained := r.opset
	r.opset = opset.New(r.localID)
	return drained
}

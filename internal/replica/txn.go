package replica

import "sort"

// Txn is a batch of staged inserts and deletes committed atomically with
// consecutive HLCs, so the bitmap index compresses to a single run.
//
// A Txn holds an exclusive lock on its parent Replica for its lifetime: the
// replica cannot be mutated through any other path until Commit or Abort
// releases it.
type Txn struct {
	r       *Replica
	inserts map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

// Begin opens a transaction, taking exclusive access to the replica.
func (r *Replica) Begin() *Txn {
	r.mu.Lock()
	return &Txn{
		r:       r,
		inserts: make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Insert stages key→value for the next Commit. Staging does not touch the
// replica.
func (t *Txn) Insert(key string, value []byte) {
	t.inserts[key] = value
}

// Remove unstages any pending insert at key and stages key for deletion.
func (t *Txn) Remove(key string) {
	delete(t.inserts, key)
	t.deletes[key] = struct{}{}
}

// Abort discards all staged work, releasing the replica with no side
// effects.
func (t *Txn) Abort() {
	if t.closed {
		return
	}
	t.closed = true
	t.r.mu.Unlock()
}

// Commit allocates a starting HLC and writes every staged insert with
// consecutive HLCs (h0, h0.Inc(), h0.Inc().Inc(), …) in key order, then
// applies every staged delete. Consecutive HLCs compress to a single run in
// the bitmap index.
func (t *Txn) Commit() {
	if t.closed {
		return
	}
	t.closed = true
	defer t.r.mu.Unlock()

	keys := make([]string, 0, len(t.inserts))
	for k := range t.inserts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		h := t.r.clock.Alloc(len(keys))
		for _, k := range keys {
			t.r.insertLocked(k, t.inserts[k], h, true)
			h = h.Inc()
		}
	}

	deleteKeys := make([]string, 0, len(t.deletes))
	for k := range t.deletes {
		deleteKeys = append(deleteKeys, k)
	}
	sort.Strings(deleteKeys)
	for _, k := range deleteKeys {
		t.r.removeLocked(k)
	}
}

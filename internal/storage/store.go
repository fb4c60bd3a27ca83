// Package storage holds the in-memory map from key to the entry currently
// live at that key.
package storage

import (
	"sort"

	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/peerid"
)

// Entry is a single live write: the value plus the identity of the write
// that produced it.
type Entry struct {
	Value  []byte
	Author peerid.ID
	HLC    hlc.HLC
}

// KV pairs a key with its entry, the shape Entries() iterates.
type KV struct {
	Key   string
	Entry Entry
}

// Store maps keys to their current entry.
type Store struct {
	m map[string]Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{m: make(map[string]Entry)}
}

// Get returns the entry at key, if any.
func (s *Store) Get(key string) (Entry, bool) {
	e, ok := s.m[key]
	return e, ok
}

// Put installs e at key, returning the displaced entry if one existed.
func (s *Store) Put(key string, e Entry) (Entry, bool) {
	old, existed := s.m[key]
	s.m[key] = e
	return old, existed
}

// Delete removes key, returning the removed entry if one existed.
func (s *Store) Delete(key string) (Entry, bool) {
	old, existed := s.m[key]
	if existed {
		delete(s.m, key)
	}
	return old, existed
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	return len(s.m)
}

// IsEmpty reports whether the store holds no entries.
func (s *Store) IsEmpty() bool {
	return len(s.m) == 0
}

// Entries returns every live (key, entry) pair ordered by key, the
// deterministic iteration order the public API guarantees.
func (s *Store) Entries() []KV {
	out := make([]KV, 0, len(s.m))
	for k, e := range s.m {
		out = append(out, KV{Key: k, Entry: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Package peerstate tracks, per known peer, which of that peer's writes are
// currently live and the highest HLC ever observed from them.
package peerstate

import (
	"github.com/devrajpatel/meshkv/internal/bitmap"
	"github.com/devrajpatel/meshkv/internal/hlc"
)

// PeerState is one peer's authored-writes index.
type PeerState struct {
	// Index is the set of HLCs for which the owning replica currently
	// holds a live entry authored by this peer.
	Index *bitmap.Bitmap
	// Keys maps every HLC in Index back to the key it was written at.
	Keys map[uint64]string
	// Bookmark is the greatest HLC ever observed from this peer,
	// including HLCs now tombstoned or overwritten.
	Bookmark hlc.HLC
}

// New returns an empty PeerState.
func New() *PeerState {
	return &PeerState{
		Index: bitmap.New(),
		Keys:  make(map[uint64]string),
	}
}

// Insert records a live write at h for key, raising the bookmark if h
// exceeds it.
func (p *PeerState) Insert(h hlc.HLC, key string) {
	p.Index.Add(h.ToU64())
	p.Keys[h.ToU64()] = key
	p.RaiseBookmark(h)
}

// Remove drops h from the live index and its key mapping. It does not touch
// the bookmark: a bookmark is never decremented.
func (p *PeerState) Remove(h hlc.HLC) {
	p.Index.Remove(h.ToU64())
	delete(p.Keys, h.ToU64())
}

// RaiseBookmark sets Bookmark to the greater of its current value and h.
func (p *PeerState) RaiseBookmark(h hlc.HLC) {
	if h > p.Bookmark {
		p.Bookmark = h
	}
}

// KeyFor returns the key recorded for h, if one is recorded. For the local
// peer a mapping outlives the HLC's removal from Index when a later local
// write displaces it.
func (p *PeerState) KeyFor(h hlc.HLC) (string, bool) {
	k, ok := p.Keys[h.ToU64()]
	return k, ok
}

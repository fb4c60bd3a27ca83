// Package diff implements the two-round request/build diff protocol: a
// compact bitmap-and-bookmark summary (DiffRequest) produces a per-peer delta
// (Diff) containing only the writes the requester has not seen and the
// deletes it must apply.
package diff

import (
	"github.com/devrajpatel/meshkv/internal/bitmap"
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/peerid"
)

// RequestPeerState is one peer's summary inside a DiffRequest: the
// requester's current live set for that peer, and the highest HLC it has
// ever seen from them.
type RequestPeerState struct {
	Index    *bitmap.Bitmap `json:",omitempty"`
	Bookmark hlc.HLC
}

// DiffRequest is produced by request_diff: one summary per peer the
// requester knows, including itself.
type DiffRequest struct {
	Peers map[peerid.ID]RequestPeerState
}

// NewRequest returns an empty DiffRequest ready to be populated per peer.
func NewRequest() *DiffRequest {
	return &DiffRequest{Peers: make(map[peerid.ID]RequestPeerState)}
}

// IndexSize returns the summed serialized byte length of every per-peer
// bitmap in the request — the figure the basic-sync budget test checks.
func (r *DiffRequest) IndexSize() int {
	total := 0
	for _, ps := range r.Peers {
		if ps.Index == nil {
			continue
		}
		total += ps.Index.SerializedSize()
	}
	return total
}

// Insert is a single materialized write delivered by a Diff.
type Insert struct {
	Key   string
	Value []byte
	HLC   hlc.HLC
}

// PeerDiff is one peer's contribution to a Diff: writes the requester is
// missing, and HLCs it must tombstone.
type PeerDiff struct {
	Inserts  []Insert       `json:",omitempty"`
	Deletes  *bitmap.Bitmap `json:",omitempty"`
	Bookmark hlc.HLC
}

// Diff is build_diff's result: a per-peer delta the requester can integrate.
type Diff struct {
	Peers map[peerid.ID]PeerDiff
}

// NewDiff returns an empty Diff ready to be populated per peer.
func NewDiff() *Diff {
	return &Diff{Peers: make(map[peerid.ID]PeerDiff)}
}

// IsEmpty reports whether pd carries neither inserts nor deletes — an
// informational block whose only payload is the bookmark.
func (pd PeerDiff) IsEmpty() bool {
	return len(pd.Inserts) == 0 && (pd.Deletes == nil || pd.Deletes.IsEmpty())
}

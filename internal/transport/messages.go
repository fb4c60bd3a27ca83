// Package transport is the peer-to-peer RPC surface: a hand-registered
// gRPC service ("meshkv.MeshService") carrying the diff protocol's own Go
// structs as payloads via internal/codec's gob codec, rather than
// generated protobuf messages — see DESIGN.md's "Transport codec" entry.
// Peer pooling and DNS discovery live in internal/replication; liveness
// probing and partition-healing detection live in internal/health.
package transport

import (
	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/opset"
)

// HealthRequest is the payload for the HealthCheck RPC.
type HealthRequest struct {
	SourceNodeID string
	Timestamp    int64
}

// HealthResponse is the HealthCheck RPC's result.
type HealthResponse struct {
	Healthy   bool
	NodeID    string
	Timestamp int64
}

// PushOpSetRequest carries an incremental OpSet to be integrated by the
// receiving peer.
type PushOpSetRequest struct {
	OpSet *opset.OpSet
}

// Ack is the trivial acknowledgement returned by mutating RPCs.
type Ack struct {
	Success bool
	Error   string
}

// BuildDiffRequest/Response and IntegrateDiffRequest reuse diff package
// types directly: the envelope IS the payload, there is no separate wire
// type to define. Exported (unlike a typical generated stub's unexported
// wire structs) so a MeshServiceServer implementation can live outside this
// package, the way internal/server's Handler does.
type BuildDiffRequest struct {
	Request *diff.DiffRequest
}

type BuildDiffResponse struct {
	Diff *diff.Diff
}

type IntegrateDiffRequest struct {
	Diff *diff.Diff
}

// PutRequest is the payload for a direct client write against a node. The
// node applies it as a local Insert, which the diff/opset protocols then
// propagate to peers on the next reconciliation round or opset push.
type PutRequest struct {
	Key   string
	Value []byte
}

// PutResponse acknowledges a Put.
type PutResponse struct {
	Success bool
	Error   string
}

// DeleteRequest is the payload for a direct client delete against a node.
// Applied as a local Remove; the resulting tombstone propagates through the
// diff/opset channels like any other delete.
type DeleteRequest struct {
	Key string
}

// DeleteResponse acknowledges a Delete, reporting whether the key existed.
type DeleteResponse struct {
	Existed bool
	Error   string
}

// GetRequest is the payload for a direct client read against a node.
type GetRequest struct {
	Key string
}

// GetResponse is the result of a Get.
type GetResponse struct {
	Found bool
	Value []byte
	Error string
}

// Package server implements the node-side RPC handler: Handler satisfies
// transport.MeshServiceServer by delegating every call straight through to
// a *replica.Replica.
package server

import (
	"context"
	"time"

	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/replica"
	"github.com/devrajpatel/meshkv/internal/transport"
	"go.uber.org/zap"
)

// Handler implements transport.MeshServiceServer over a local replica.
type Handler struct {
	nodeID  peerid.ID
	local   *replica.Replica
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewHandler constructs a Handler serving local on behalf of nodeID.
func NewHandler(nodeID peerid.ID, local *replica.Replica, logger *zap.Logger, m *metrics.Metrics) *Handler {
	return &Handler{nodeID: nodeID, local: local, logger: logger, metrics: m}
}

var _ transport.MeshServiceServer = (*Handler)(nil)

// RequestDiff returns the local replica's request-diff summary.
func (h *Handler) RequestDiff(ctx context.Context, in *transport.RequestDiffArgs) (*diff.DiffRequest, error) {
	h.logger.Debug("RequestDiff RPC received", zap.String("source", in.SourceNodeID))
	return h.local.RequestDiff(), nil
}

// BuildDiff computes the delta the caller needs to converge toward this
// replica's state.
func (h *Handler) BuildDiff(ctx context.Context, in *transport.BuildDiffRequest) (*transport.BuildDiffResponse, error) {
	start := time.Now()
	d := h.local.BuildDiff(in.Request)
	h.logger.Debug("BuildDiff RPC served",
		zap.Int("request_index_bytes", in.Request.IndexSize()),
		zap.Duration("latency", time.Since(start)))
	return &transport.BuildDiffResponse{Diff: d}, nil
}

// IntegrateDiff applies an inbound diff to the local replica.
func (h *Handler) IntegrateDiff(ctx context.Context, in *transport.IntegrateDiffRequest) (*transport.Ack, error) {
	start := time.Now()
	h.local.IntegrateDiff(in.Diff)

	inserts, deletes := 0, 0
	for peer, pd := range in.Diff.Peers {
		inserts += len(pd.Inserts)
		if pd.Deletes != nil {
			n := int(pd.Deletes.Cardinality())
			deletes += n
			h.metrics.DiffDeletesApplied.WithLabelValues(string(peer)).Add(float64(n))
		}
		h.metrics.DiffInsertsApplied.WithLabelValues(string(peer)).Add(float64(len(pd.Inserts)))
	}

	h.logger.Info("IntegrateDiff RPC applied",
		zap.Int("inserts", inserts),
		zap.Int("deletes", deletes),
		zap.Duration("latency", time.Since(start)))
	h.metrics.DiffExchanges.WithLabelValues("ok").Inc()
	return &transport.Ack{Success: true}, nil
}

// PushOpSet integrates an incremental opset pushed from a peer.
func (h *Handler) PushOpSet(ctx context.Context, in *transport.PushOpSetRequest) (*transport.Ack, error) {
	start := time.Now()
	h.local.IntegrateOpSet(in.OpSet)
	h.metrics.OpSetInserts.Add(float64(len(in.OpSet.Inserts)))
	h.logger.Info("PushOpSet RPC applied",
		zap.String("author", string(in.OpSet.AuthorID)),
		zap.Int("inserts", len(in.OpSet.Inserts)),
		zap.Duration("latency", time.Since(start)))
	return &transport.Ack{Success: true}, nil
}

// Put applies a direct client write to the local replica. The insert is
// propagated to peers by the ordinary diff/opset channels, not by this RPC.
func (h *Handler) Put(ctx context.Context, in *transport.PutRequest) (*transport.PutResponse, error) {
	start := time.Now()
	h.local.Insert(in.Key, in.Value)
	h.metrics.InsertLatency.Observe(time.Since(start).Seconds())
	h.metrics.WriteOpsTotal.Inc()
	h.logger.Debug("Put RPC applied", zap.String("key", in.Key), zap.Int("value_bytes", len(in.Value)))
	return &transport.PutResponse{Success: true}, nil
}

// Delete removes a key from the local replica. The tombstone propagates to
// peers by the ordinary diff/opset channels.
func (h *Handler) Delete(ctx context.Context, in *transport.DeleteRequest) (*transport.DeleteResponse, error) {
	start := time.Now()
	_, existed := h.local.Remove(in.Key)
	h.metrics.RemoveLatency.Observe(time.Since(start).Seconds())
	h.metrics.WriteOpsTotal.Inc()
	h.logger.Debug("Delete RPC applied", zap.String("key", in.Key), zap.Bool("existed", existed))
	return &transport.DeleteResponse{Existed: existed}, nil
}

// Get reads a key from the local replica.
func (h *Handler) Get(ctx context.Context, in *transport.GetRequest) (*transport.GetResponse, error) {
	value, ok := h.local.Get(in.Key)
	if !ok {
		return &transport.GetResponse{Found: false}, nil
	}
	return &transport.GetResponse{Found: true, Value: value}, nil
}

// HealthCheck answers a liveness probe.
func (h *Handler) HealthCheck(ctx context.Context, in *transport.HealthRequest) (*transport.HealthResponse, error) {
	return &transport.HealthResponse{
		Healthy:   true,
		NodeID:    string(h.nodeID),
		Timestamp: time.Now().UnixNano(),
	}, nil
}

// Package reconcile drives anti-entropy between this node and its peers.
// Engine runs the diff protocol bidirectionally against a peer for exact
// convergence, since the bitmap index makes an exact set-difference cheap.
// Triggered both by partition-healing events from internal/health and by a
// periodic tick whose interval is controlled by internal/syncsched.
package reconcile

import (
	"context"
	"time"

	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/replica"
	"go.uber.org/zap"
)

// Coordinator is the subset of *replication.Coordinator the engine needs.
// Declared as an interface so tests can supply a fake peer without a real
// gRPC connection.
type Coordinator interface {
	GetPeerAddresses() []string
	RequestDiff(ctx context.Context, peer string) (*diff.DiffRequest, error)
	BuildDiff(ctx context.Context, peer string, req *diff.DiffRequest) (*diff.Diff, error)
	PushDiff(ctx context.Context, peer string, d *diff.Diff) error
}

// Engine performs bidirectional diff-protocol reconciliation with peers.
type Engine struct {
	local         *replica.Replica
	coordinator   Coordinator
	logger        *zap.Logger
	metrics       *metrics.Metrics
	interval      time.Duration
	enabled       bool
	healingEvents chan string
}

// NewEngine constructs a reconciliation engine over local, driving exchanges
// through coordinator on the given periodic interval until
// internal/syncsched replaces it via SetInterval.
func NewEngine(local *replica.Replica, coordinator Coordinator, interval time.Duration, enabled bool, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		local:         local,
		coordinator:   coordinator,
		logger:        logger,
		metrics:       m,
		interval:      interval,
		enabled:       enabled,
		healingEvents: make(chan string, 100),
	}
}

// SetInterval updates the periodic reconciliation cadence; internal/syncsched
// calls this as the sync confidence score moves the interval between its
// configured bounds.
func (e *Engine) SetInterval(d time.Duration) {
	e.interval = d
}

// Start runs the reconciliation loop until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	if !e.enabled {
		e.logger.Info("reconciliation engine disabled")
		return
	}

	e.logger.Info("reconciliation engine starting", zap.Duration("interval", e.interval))

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case peer := <-e.healingEvents:
			e.logger.Info("partition healing detected, triggering reconciliation", zap.String("healed_peer", peer))
			e.metrics.PartitionHealing.Inc()
			e.reconcileWithPeer(ctx, peer)

		case <-ticker.C:
			ticker.Reset(e.interval)
			for _, peer := range e.coordinator.GetPeerAddresses() {
				e.reconcileWithPeer(ctx, peer)
			}

		case <-ctx.Done():
			e.logger.Info("reconciliation engine stopped")
			return
		}
	}
}

// NotifyHealingEvent queues peer for an immediate reconciliation pass,
// satisfying health.HealingListener.
func (e *Engine) NotifyHealingEvent(peer string) {
	select {
	case e.healingEvents <- peer:
		e.logger.Debug("healing event queued", zap.String("peer", peer))
	default:
		e.logger.Warn("healing event queue full, dropping event", zap.String("peer", peer))
	}
}

// reconcileWithPeer runs the diff protocol in both directions: first
// fetching what the peer is missing from us and pushing it, then fetching
// what we are missing from the peer and integrating it, reaching mutual
// convergence by replaying the protocol twice.
func (e *Engine) reconcileWithPeer(ctx context.Context, peer string) {
	start := time.Now()
	defer func() {
		e.metrics.ReconciliationLatency.Observe(time.Since(start).Seconds())
	}()

	e.logger.Info("starting reconciliation", zap.String("peer", peer))

	peerReq, err := e.coordinator.RequestDiff(ctx, peer)
	if err != nil {
		e.logger.Warn("reconciliation: request_diff failed", zap.String("peer", peer), zap.Error(err))
		e.metrics.ReconciliationErrors.WithLabelValues(peer).Inc()
		return
	}
	outbound := e.local.BuildDiff(peerReq)
	if err := e.coordinator.PushDiff(ctx, peer, outbound); err != nil {
		e.logger.Warn("reconciliation: push diff failed", zap.String("peer", peer), zap.Error(err))
		e.metrics.ReconciliationErrors.WithLabelValues(peer).Inc()
		return
	}

	localReq := e.local.RequestDiff()
	peerDiff, err := e.coordinator.BuildDiff(ctx, peer, localReq)
	if err != nil {
		e.logger.Warn("reconciliation: build_diff failed", zap.String("peer", peer), zap.Error(err))
		e.metrics.ReconciliationErrors.WithLabelValues(peer).Inc()
		return
	}
	integrateStart := time.Now()
	e.local.IntegrateDiff(peerDiff)
	e.metrics.DiffIntegrateLatency.WithLabelValues(peer).Observe(time.Since(integrateStart).Seconds())

	e.metrics.ReconciliationRuns.Inc()
	e.logger.Info("reconciliation completed", zap.String("peer", peer), zap.Duration("duration", time.Since(start)))
}

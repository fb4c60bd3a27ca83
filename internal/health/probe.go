// Package health periodically pings peers and detects partition healing —
// a peer that was unreachable and has just become reachable again — so
// internal/reconcile can trigger a full bidirectional diff exchange instead
// of waiting for the next periodic reconciliation tick. Probing reuses
// internal/replication's existing peer connections (via the same
// Coordinator) rather than dialing a second independent connection pool,
// since a CRDT node has no separate read/write RPC surface that would
// justify the duplication.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/replication"
	"go.uber.org/zap"
)

// HealingListener is notified when a peer transitions from down to up.
type HealingListener interface {
	NotifyHealingEvent(peer string)
}

// Prober periodically health-checks every configured peer.
type Prober struct {
	nodeID          string
	coordinator     *replication.Coordinator
	interval        time.Duration
	logger          *zap.Logger
	metrics         *metrics.Metrics
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.RWMutex
	peerStatus      map[string]bool
	healingListener HealingListener
}

// NewProber constructs a Prober driving health checks through coordinator.
func NewProber(nodeID string, coordinator *replication.Coordinator, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Prober {
	return &Prober{
		nodeID:      nodeID,
		coordinator: coordinator,
		interval:    interval,
		logger:      logger,
		metrics:     m,
		stopCh:      make(chan struct{}),
		peerStatus:  make(map[string]bool),
	}
}

// SetHealingListener sets the listener notified on partition healing.
func (p *Prober) SetHealingListener(listener HealingListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healingListener = listener
}

// Start begins periodic health checks against every configured peer.
func (p *Prober) Start() {
	for _, addr := range p.coordinator.GetPeerAddresses() {
		p.wg.Add(1)
		go p.probePeer(addr)
	}
}

func (p *Prober) probePeer(peerAddr string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.logger.Info("stopping health probe", zap.String("peer", peerAddr))
			return
		case <-ticker.C:
			p.checkPeer(peerAddr)
		}
	}
}

func (p *Prober) checkPeer(peerAddr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := p.coordinator.HealthCheck(ctx, peerAddr)
	rtt := time.Since(start)

	p.mu.RLock()
	wasDown := !p.peerStatus[peerAddr]
	p.mu.RUnlock()

	if err != nil {
		p.logger.Warn("health check failed", zap.String("peer", peerAddr), zap.Duration("rtt", rtt), zap.Error(err))
		p.metrics.PeerErrors.WithLabelValues(peerAddr, "health").Inc()
		p.mu.Lock()
		p.peerStatus[peerAddr] = false
		p.mu.Unlock()
		return
	}

	if !resp.Healthy {
		p.logger.Warn("peer reports unhealthy", zap.String("peer", peerAddr), zap.String("peer_node_id", resp.NodeID))
		p.mu.Lock()
		p.peerStatus[peerAddr] = false
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.peerStatus[peerAddr] = true
	p.mu.Unlock()

	if wasDown && p.healingListener != nil {
		p.logger.Info("partition healing detected", zap.String("peer", peerAddr), zap.String("peer_node_id", resp.NodeID))
		p.healingListener.NotifyHealingEvent(peerAddr)
	}

	p.logger.Debug("health check succeeded", zap.String("peer", peerAddr), zap.String("peer_node_id", resp.NodeID), zap.Duration("rtt", rtt))
	p.metrics.PeerRTT.WithLabelValues(peerAddr).Set(rtt.Seconds())
}

// Stop halts all probing goroutines.
func (p *Prober) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

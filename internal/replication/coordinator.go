// Package replication manages a node's gRPC connections to its peers
// (connection pooling, DNS-based Kubernetes peer discovery) and drives the
// diff protocol and opset push against them: RequestDiff/BuildDiff/
// IntegrateDiff/PushOpSet/HealthCheck round trips against one peer at a
// time, driven by internal/reconcile.
package replication

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/devrajpatel/meshkv/internal/codec"
	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/opset"
	"github.com/devrajpatel/meshkv/internal/transport"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Coordinator manages replication connections to peer nodes.
type Coordinator struct {
	nodeID          string
	peers           map[string]transport.MeshServiceClient // peer address -> client
	conns           map[string]*grpc.ClientConn             // peer address -> connection
	configuredPeers []string                                // full configured peer list (immutable)
	logger          *zap.Logger
	metrics         *metrics.Metrics
	timeout         time.Duration
	mu              sync.RWMutex
}

// NewCoordinator establishes connections to every configured peer.
func NewCoordinator(nodeID string, peerAddrs []string, logger *zap.Logger, m *metrics.Metrics, timeout time.Duration) (*Coordinator, error) {
	c := &Coordinator{
		nodeID:          nodeID,
		peers:           make(map[string]transport.MeshServiceClient),
		conns:           make(map[string]*grpc.ClientConn),
		configuredPeers: peerAddrs,
		logger:          logger,
		metrics:         m,
		timeout:         timeout,
	}

	for _, addr := range peerAddrs {
		if err := c.addPeer(addr); err != nil {
			logger.Warn("failed to connect to peer", zap.String("peer", addr), zap.Error(err))
		}
	}

	return c, nil
}

func (c *Coordinator) addPeer(addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.peers[addr]; exists {
		return nil
	}

	// dns:/// scheme so Kubernetes headless-service DNS resolves to every
	// backing pod instead of a single ClusterIP.
	target := "dns:///" + addr
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codec.Name)),
	)
	if err != nil {
		return err
	}

	c.peers[addr] = transport.NewMeshServiceClient(conn)
	c.conns[addr] = conn
	c.logger.Info("connected to peer", zap.String("peer", addr))
	return nil
}

func (c *Coordinator) removePeer(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, exists := c.conns[addr]; exists {
		conn.Close()
		delete(c.peers, addr)
		delete(c.conns, addr)
		c.logger.Info("removed peer", zap.String("peer", addr))
	}
}

// DiscoverPeersDNS resolves every ready pod behind a headless service,
// excluding the local node.
func DiscoverPeersDNS(nodeID, headlessSvc, namespace string) ([]string, error) {
	fqdn := fmt.Sprintf("%s.%s.svc.cluster.local", headlessSvc, namespace)

	ips, err := net.LookupHost(fqdn)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed for %s: %w", fqdn, err)
	}

	peers := []string{}
	headlessPattern := fmt.Sprintf(".%s.%s.svc.cluster.local", headlessSvc, namespace)

	for _, ip := range ips {
		names, err := net.LookupAddr(ip)
		if err != nil || len(names) == 0 {
			continue
		}

		var podFQDN string
		for _, name := range names {
			if strings.Contains(name, headlessPattern) {
				podFQDN = name
				break
			}
		}
		if podFQDN == "" {
			continue
		}

		parts := strings.Split(podFQDN, ".")
		if len(parts) < 2 {
			continue
		}

		podName := parts[0]
		if podName == nodeID {
			continue
		}

		peers = append(peers, fmt.Sprintf("%s.%s.%s.svc.cluster.local:8080", podName, headlessSvc, namespace))
	}

	return peers, nil
}

func (c *Coordinator) reconcilePeers(newPeerAddrs []string) {
	newPeerSet := make(map[string]bool)
	for _, addr := range newPeerAddrs {
		newPeerSet[addr] = true
	}

	c.mu.RLock()
	currentPeers := make([]string, 0, len(c.peers))
	for addr := range c.peers {
		currentPeers = append(currentPeers, addr)
	}
	c.mu.RUnlock()

	for _, addr := range currentPeers {
		if !newPeerSet[addr] {
			c.removePeer(addr)
		}
	}

	for addr := range newPeerSet {
		c.mu.RLock()
		_, exists := c.peers[addr]
		c.mu.RUnlock()

		if !exists {
			if err := c.addPeer(addr); err != nil {
				c.logger.Warn("failed to connect to new peer", zap.String("peer", addr), zap.Error(err))
			}
		}
	}
}

// StartPeerDiscovery periodically re-resolves the headless service and adds
// or drops peer connections accordingly.
func (c *Coordinator) StartPeerDiscovery(ctx context.Context, nodeID, headlessSvc, namespace string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("starting peer discovery", zap.String("method", "dns"), zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			peers, err := DiscoverPeersDNS(nodeID, headlessSvc, namespace)
			if err != nil {
				c.logger.Warn("peer discovery failed", zap.Error(err))
				continue
			}
			c.reconcilePeers(peers)
		case <-ctx.Done():
			c.logger.Info("peer discovery stopped")
			return
		}
	}
}

// GetPeerAddresses returns the full configured peer list (used by the sync
// scheduler's confidence score, which wants cluster size, not just
// currently-reachable peers).
func (c *Coordinator) GetPeerAddresses() []string {
	return c.configuredPeers
}

// GetConnectedPeerAddresses returns only peers with a live connection.
func (c *Coordinator) GetConnectedPeerAddresses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	addrs := make([]string, 0, len(c.peers))
	for addr := range c.peers {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (c *Coordinator) client(addr string) (transport.MeshServiceClient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.peers[addr]
	return cl, ok
}

// RequestDiff asks peer for its current request-diff summary.
func (c *Coordinator) RequestDiff(ctx context.Context, peer string) (*diff.DiffRequest, error) {
	cl, ok := c.client(peer)
	if !ok {
		return nil, fmt.Errorf("replication: no connection to %s", peer)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req, err := cl.RequestDiff(ctx, &transport.RequestDiffArgs{SourceNodeID: c.nodeID})
	c.metrics.DiffRequestLatency.WithLabelValues(peer).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.PeerErrors.WithLabelValues(peer, "request_diff").Inc()
		return nil, fmt.Errorf("replication: request_diff %s: %w", peer, err)
	}
	c.metrics.DiffRequestBytes.WithLabelValues(peer).Observe(float64(req.IndexSize()))
	return req, nil
}

// BuildDiff asks peer to build a diff from our request summary.
func (c *Coordinator) BuildDiff(ctx context.Context, peer string, req *diff.DiffRequest) (*diff.Diff, error) {
	cl, ok := c.client(peer)
	if !ok {
		return nil, fmt.Errorf("replication: no connection to %s", peer)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	d, err := cl.BuildDiff(ctx, req)
	c.metrics.DiffBuildLatency.WithLabelValues(peer).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.PeerErrors.WithLabelValues(peer, "build_diff").Inc()
		return nil, fmt.Errorf("replication: build_diff %s: %w", peer, err)
	}
	return d, nil
}

// PushDiff sends a diff for peer to integrate locally (used when we have
// already computed the diff peer needs, e.g. after BuildDiff on ourselves).
func (c *Coordinator) PushDiff(ctx context.Context, peer string, d *diff.Diff) error {
	cl, ok := c.client(peer)
	if !ok {
		return fmt.Errorf("replication: no connection to %s", peer)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ack, err := cl.IntegrateDiff(ctx, d)
	if err != nil {
		c.metrics.PeerErrors.WithLabelValues(peer, "integrate_diff").Inc()
		return fmt.Errorf("replication: integrate_diff %s: %w", peer, err)
	}
	if !ack.Success {
		return fmt.Errorf("replication: integrate_diff %s rejected: %s", peer, ack.Error)
	}
	return nil
}

// PushOpSet sends an incremental opset for peer to integrate.
func (c *Coordinator) PushOpSet(ctx context.Context, peer string, o *opset.OpSet) error {
	cl, ok := c.client(peer)
	if !ok {
		return fmt.Errorf("replication: no connection to %s", peer)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	ack, err := cl.PushOpSet(ctx, &transport.PushOpSetRequest{OpSet: o})
	c.metrics.OpSetPushLatency.WithLabelValues(peer).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.PeerErrors.WithLabelValues(peer, "push_opset").Inc()
		return fmt.Errorf("replication: push_opset %s: %w", peer, err)
	}
	if !ack.Success {
		return fmt.Errorf("replication: push_opset %s rejected: %s", peer, ack.Error)
	}
	return nil
}

// HealthCheck pings peer.
func (c *Coordinator) HealthCheck(ctx context.Context, peer string) (*transport.HealthResponse, error) {
	cl, ok := c.client(peer)
	if !ok {
		return nil, fmt.Errorf("replication: no connection to %s", peer)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return cl.HealthCheck(ctx, &transport.HealthRequest{
		SourceNodeID: c.nodeID,
		Timestamp:    time.Now().UnixNano(),
	})
}

func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, conn := range c.conns {
		if err := conn.Close(); err != nil {
			c.logger.Warn("failed to close connection", zap.Error(err))
		}
	}
	return nil
}

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/replica"
	"go.uber.org/zap"
)

// shared metrics instance to avoid duplicate registration
var testMetrics = metrics.NewMetrics("test")

// mockCoordinator relays diff-protocol calls directly against another
// in-process replica, standing in for a real gRPC connection.
type mockCoordinator struct {
	peers map[string]*replica.Replica
}

func (m *mockCoordinator) GetPeerAddresses() []string {
	addrs := make([]string, 0, len(m.peers))
	for addr := range m.peers {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (m *mockCoordinator) RequestDiff(ctx context.Context, peer string) (*diff.DiffRequest, error) {
	return m.peers[peer].RequestDiff(), nil
}

func (m *mockCoordinator) BuildDiff(ctx context.Context, peer string, req *diff.DiffRequest) (*diff.Diff, error) {
	return m.peers[peer].BuildDiff(req), nil
}

func (m *mockCoordinator) PushDiff(ctx context.Context, peer string, d *diff.Diff) error {
	m.peers[peer].IntegrateDiff(d)
	return nil
}

func TestEngine_ReconcileWithPeer_Converges(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	local := replica.New(peerid.ID("node1"))
	peer := replica.New(peerid.ID("node2"))

	local.Insert("a", []byte("1"))
	peer.Insert("b", []byte("2"))

	coord := &mockCoordinator{peers: map[string]*replica.Replica{"node2": peer}}
	engine := NewEngine(local, coord, time.Second, true, logger, testMetrics)

	engine.reconcileWithPeer(context.Background(), "node2")

	if local.Len() != 2 {
		t.Fatalf("expected local to have 2 entries after reconciliation, got %d", local.Len())
	}
	if peer.Len() != 2 {
		t.Fatalf("expected peer to have 2 entries after reconciliation, got %d", peer.Len())
	}
	localEntries, peerEntries := local.Entries(), peer.Entries()
	if len(localEntries) != len(peerEntries) {
		t.Fatalf("entries mismatch after reconciliation: local=%v peer=%v", localEntries, peerEntries)
	}
	for k, v := range localEntries {
		if string(peerEntries[k]) != string(v) {
			t.Fatalf("entry %q mismatch: local=%q peer=%q", k, v, peerEntries[k])
		}
	}
}

func TestEngine_NotifyHealingEvent_TriggersReconcile(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	local := replica.New(peerid.ID("node1"))
	peer := replica.New(peerid.ID("node2"))
	peer.Insert("k", []byte("v"))

	coord := &mockCoordinator{peers: map[string]*replica.Replica{"node2": peer}}
	engine := NewEngine(local, coord, time.Hour, true, logger, testMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Start(ctx)

	engine.NotifyHealingEvent("node2")

	deadline := time.After(2 * time.Second)
	for {
		if local.Len() == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for healing-triggered reconciliation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEngine_SetInterval(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	local := replica.New(peerid.ID("node1"))
	coord := &mockCoordinator{peers: map[string]*replica.Replica{}}
	engine := NewEngine(local, coord, time.Second, true, logger, testMetrics)

	engine.SetInterval(5 * time.Second)
	if engine.interval != 5*time.Second {
		t.Fatalf("expected interval=5s, got %s", engine.interval)
	}
}

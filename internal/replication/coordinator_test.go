package replication

import (
	"context"
	"net"
	"testing"
	"time"

	_ "github.com/devrajpatel/meshkv/internal/codec"
	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/replica"
	"github.com/devrajpatel/meshkv/internal/server"
	"github.com/devrajpatel/meshkv/internal/transport"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// startTestNode brings up a real gRPC server backed by an in-process
// replica, the same wiring cmd/meshkv-node does, and returns its listen
// address for a Coordinator to dial.
func startTestNode(t *testing.T, id peerid.ID) (addr string, local *replica.Replica) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_repl_node_" + string(id))
	local = replica.New(id)
	handler := server.NewHandler(id, local, logger, m)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&transport.ServiceDesc, handler)
	go grpcServer.Serve(lis)
	t.Cleanup(grpcServer.Stop)

	return lis.Addr().String(), local
}

func TestCoordinator_RequestBuildPushDiff(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_repl_coord_diff")

	addrB, localB := startTestNode(t, peerid.ID("nodeB"))
	localB.Insert("b", []byte("2"))

	coord, err := NewCoordinator("nodeA", []string{addrB}, logger, m, 5*time.Second)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	defer coord.Close()

	ctx := context.Background()
	req, err := coord.RequestDiff(ctx, addrB)
	if err != nil {
		t.Fatalf("RequestDiff: %v", err)
	}

	localA := replica.New(peerid.ID("nodeA"))
	localA.Insert("a", []byte("1"))
	outbound := localA.BuildDiff(req)

	if err := coord.PushDiff(ctx, addrB, outbound); err != nil {
		t.Fatalf("PushDiff: %v", err)
	}
	if localB.Len() != 2 {
		t.Fatalf("expected nodeB to have 2 entries after PushDiff, got %d", localB.Len())
	}

	d, err := coord.BuildDiff(ctx, addrB, localA.RequestDiff())
	if err != nil {
		t.Fatalf("BuildDiff: %v", err)
	}
	localA.IntegrateDiff(d)
	if localA.Len() != 2 {
		t.Fatalf("expected nodeA to have 2 entries after integrating BuildDiff result, got %d", localA.Len())
	}
}

func TestCoordinator_HealthCheck(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_repl_coord_health")

	addr, _ := startTestNode(t, peerid.ID("nodeC"))
	coord, err := NewCoordinator("nodeA", []string{addr}, logger, m, 5*time.Second)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	defer coord.Close()

	resp, err := coord.HealthCheck(context.Background(), addr)
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !resp.Healthy || resp.NodeID != "nodeC" {
		t.Fatalf("HealthCheck returned %+v", resp)
	}
}

func TestCoordinator_GetPeerAddresses(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_repl_coord_peers")

	coord, err := NewCoordinator("nodeA", []string{"127.0.0.1:1", "127.0.0.1:2"}, logger, m, time.Second)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	defer coord.Close()

	addrs := coord.GetPeerAddresses()
	if len(addrs) != 2 {
		t.Fatalf("expected 2 configured peers, got %d", len(addrs))
	}
}

func TestDiscoverPeersDNS_LookupFailureReturnsError(t *testing.T) {
	_, err := DiscoverPeersDNS("node0", "does-not-exist-headless-svc", "default")
	if err == nil {
		t.Fatal("expected DNS lookup failure for a nonexistent headless service")
	}
}

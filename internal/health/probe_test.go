package health

import (
	"net"
	"testing"
	"time"

	_ "github.com/devrajpatel/meshkv/internal/codec"
	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/replica"
	"github.com/devrajpatel/meshkv/internal/replication"
	"github.com/devrajpatel/meshkv/internal/server"
	"github.com/devrajpatel/meshkv/internal/transport"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func startHealthTestNode(t *testing.T, id peerid.ID) string {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_health_node_" + string(id))
	local := replica.New(id)
	handler := server.NewHandler(id, local, logger, m)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&transport.ServiceDesc, handler)
	go grpcServer.Serve(lis)
	t.Cleanup(grpcServer.Stop)

	return lis.Addr().String()
}

type recordingListener struct {
	healed chan string
}

func (r *recordingListener) NotifyHealingEvent(peer string) {
	r.healed <- peer
}

func TestProber_DetectsHealingOnFirstSuccessfulCheck(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_health_prober")

	addr := startHealthTestNode(t, peerid.ID("peerNode"))
	coord, err := replication.NewCoordinator("localNode", []string{addr}, logger, m, 2*time.Second)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	defer coord.Close()

	prober := NewProber("localNode", coord, 20*time.Millisecond, logger, m)
	listener := &recordingListener{healed: make(chan string, 1)}
	prober.SetHealingListener(listener)

	prober.Start()
	defer prober.Stop()

	select {
	case peer := <-listener.healed:
		if peer != addr {
			t.Fatalf("healed peer = %q, want %q", peer, addr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for healing notification on first successful check")
	}
}

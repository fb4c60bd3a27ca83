package server

import (
	"context"
	"testing"

	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/opset"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/replica"
	"github.com/devrajpatel/meshkv/internal/transport"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, id peerid.ID) (*Handler, *replica.Replica) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_server_" + string(id))
	local := replica.New(id)
	return NewHandler(id, local, logger, m), local
}

func TestHandler_PutAndGet(t *testing.T) {
	h, _ := newTestHandler(t, peerid.ID("node1"))
	ctx := context.Background()

	putResp, err := h.Put(ctx, &transport.PutRequest{Key: "k", Value: []byte("v")})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !putResp.Success {
		t.Fatal("expected Put to succeed")
	}

	getResp, err := h.Get(ctx, &transport.GetRequest{Key: "k"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !getResp.Found || string(getResp.Value) != "v" {
		t.Fatalf("Get returned %+v, want found=true value=v", getResp)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, local := newTestHandler(t, peerid.ID("node3"))
	ctx := context.Background()

	local.Insert("k", []byte("v"))
	resp, err := h.Delete(ctx, &transport.DeleteRequest{Key: "k"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !resp.Existed {
		t.Fatal("expected Delete to report the key existed")
	}
	if _, ok := local.Get("k"); ok {
		t.Fatal("expected k to be gone after Delete")
	}

	resp, err = h.Delete(ctx, &transport.DeleteRequest{Key: "k"})
	if err != nil {
		t.Fatalf("Delete (absent): %v", err)
	}
	if resp.Existed {
		t.Fatal("expected Delete of an absent key to report Existed=false")
	}
}

func TestHandler_GetMissingKey(t *testing.T) {
	h, _ := newTestHandler(t, peerid.ID("node2"))
	resp, err := h.Get(context.Background(), &transport.GetRequest{Key: "absent"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Found {
		t.Fatal("expected Found=false for missing key")
	}
}

func TestHandler_RequestBuildIntegrateDiff_Converge(t *testing.T) {
	ctx := context.Background()
	hA, localA := newTestHandler(t, peerid.ID("nodeA"))
	hB, localB := newTestHandler(t, peerid.ID("nodeB"))

	localA.Insert("a", []byte("1"))
	localB.Insert("b", []byte("2"))

	reqFromB, err := hB.RequestDiff(ctx, &transport.RequestDiffArgs{})
	if err != nil {
		t.Fatalf("RequestDiff: %v", err)
	}

	buildResp, err := hA.BuildDiff(ctx, &transport.BuildDiffRequest{Request: reqFromB})
	if err != nil {
		t.Fatalf("BuildDiff: %v", err)
	}

	ack, err := hB.IntegrateDiff(ctx, &transport.IntegrateDiffRequest{Diff: buildResp.Diff})
	if err != nil {
		t.Fatalf("IntegrateDiff: %v", err)
	}
	if !ack.Success {
		t.Fatal("expected IntegrateDiff ack success")
	}

	if localB.Len() != 2 {
		t.Fatalf("expected B to have 2 entries after integrating A's diff, got %d", localB.Len())
	}
}

func TestHandler_PushOpSet(t *testing.T) {
	ctx := context.Background()
	h, local := newTestHandler(t, peerid.ID("nodeC"))

	o := opset.New(peerid.ID("author"))
	o.RecordInsert(diff.Insert{Key: "k1", Value: []byte("v1"), HLC: hlc.New(1<<16, 0)})

	ack, err := h.PushOpSet(ctx, &transport.PushOpSetRequest{OpSet: o})
	if err != nil {
		t.Fatalf("PushOpSet: %v", err)
	}
	if !ack.Success {
		t.Fatal("expected PushOpSet ack success")
	}
	if _, ok := local.Get("k1"); !ok {
		t.Fatal("expected k1 to be present after opset integration")
	}
}

func TestHandler_HealthCheck(t *testing.T) {
	h, _ := newTestHandler(t, peerid.ID("nodeD"))
	resp, err := h.HealthCheck(context.Background(), &transport.HealthRequest{SourceNodeID: "nodeE", Timestamp: 42})
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !resp.Healthy || resp.NodeID != "nodeD" {
		t.Fatalf("HealthCheck returned %+v", resp)
	}
}

package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/devrajpatel/meshkv/internal/codec"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func startLoopbackServer(t *testing.T, srv MeshServiceServer) *grpc.ClientConn {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gs := grpc.NewServer()
	gs.RegisterService(&ServiceDesc, srv)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codec.Name)),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMeshServiceClient_PutGetRoundTrip(t *testing.T) {
	srv := &fakeServer{}
	conn := startLoopbackServer(t, srv)
	c := NewMeshServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	putResp, err := c.Put(ctx, &PutRequest{Key: "k", Value: []byte("v")})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !putResp.Success {
		t.Fatal("expected Put success")
	}

	getResp, err := c.Get(ctx, &GetRequest{Key: "k"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !getResp.Found || string(getResp.Value) != "value-for-k" {
		t.Fatalf("Get returned %+v", getResp)
	}
}

func TestMeshServiceClient_HealthCheck(t *testing.T) {
	srv := &fakeServer{}
	conn := startLoopbackServer(t, srv)
	c := NewMeshServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.HealthCheck(ctx, &HealthRequest{SourceNodeID: "caller"})
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if !resp.Healthy || resp.NodeID != "caller" {
		t.Fatalf("HealthCheck returned %+v", resp)
	}
}

func TestMeshServiceClient_BuildDiffUnwrapsEnvelope(t *testing.T) {
	srv := &fakeServer{}
	conn := startLoopbackServer(t, srv)
	c := NewMeshServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := c.RequestDiff(ctx, &RequestDiffArgs{})
	if err != nil {
		t.Fatalf("RequestDiff: %v", err)
	}

	d, err := c.BuildDiff(ctx, req)
	if err != nil {
		t.Fatalf("BuildDiff: %v", err)
	}
	if d == nil {
		t.Fatal("expected a non-nil diff")
	}

	ack, err := c.IntegrateDiff(ctx, d)
	if err != nil {
		t.Fatalf("IntegrateDiff: %v", err)
	}
	if !ack.Success {
		t.Fatal("expected IntegrateDiff ack success")
	}
}

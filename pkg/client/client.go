// Package client is the thin gRPC wrapper external programs use to talk to
// a meshkv node: NewClient, Close, one method per RPC except PushOpSet, plus
// Sync, fanning out over the
// diff-protocol surface instead of a single Put/Get/HealthCheck triad.
package client

import (
	"context"
	"fmt"

	"github.com/devrajpatel/meshkv/internal/codec"
	"github.com/devrajpatel/meshkv/internal/diff"
	"github.com/devrajpatel/meshkv/internal/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a connection to a single meshkv node.
type Client struct {
	conn   *grpc.ClientConn
	client transport.MeshServiceClient
}

// NewClient dials addr and wraps it with the MeshService method set.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codec.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: transport.NewMeshServiceClient(conn)}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Put writes key/value directly to the connected node.
func (c *Client) Put(ctx context.Context, key string, value []byte) (*transport.PutResponse, error) {
	return c.client.Put(ctx, &transport.PutRequest{Key: key, Value: value})
}

// Get reads key from the connected node.
func (c *Client) Get(ctx context.Context, key string) (*transport.GetResponse, error) {
	return c.client.Get(ctx, &transport.GetRequest{Key: key})
}

// Delete removes key on the connected node.
func (c *Client) Delete(ctx context.Context, key string) (*transport.DeleteResponse, error) {
	return c.client.Delete(ctx, &transport.DeleteRequest{Key: key})
}

// HealthCheck pings the connected node.
func (c *Client) HealthCheck(ctx context.Context, sourceNodeID string, timestamp int64) (*transport.HealthResponse, error) {
	return c.client.HealthCheck(ctx, &transport.HealthRequest{SourceNodeID: sourceNodeID, Timestamp: timestamp})
}

// RequestDiff fetches the connected node's request-diff summary.
func (c *Client) RequestDiff(ctx context.Context) (*diff.DiffRequest, error) {
	return c.client.RequestDiff(ctx, &transport.RequestDiffArgs{})
}

// BuildDiff asks the connected node to compute the delta against req.
func (c *Client) BuildDiff(ctx context.Context, req *diff.DiffRequest) (*diff.Diff, error) {
	return c.client.BuildDiff(ctx, req)
}

// IntegrateDiff pushes d to the connected node for integration.
func (c *Client) IntegrateDiff(ctx context.Context, d *diff.Diff) (*transport.Ack, error) {
	return c.client.IntegrateDiff(ctx, d)
}

// LocalReplica is the client-local replica view Sync exchanges diffs with:
// the diff protocol's three operations.
type LocalReplica interface {
	RequestDiff() *diff.DiffRequest
	BuildDiff(req *diff.DiffRequest) *diff.Diff
	IntegrateDiff(d *diff.Diff)
}

// Sync performs one bidirectional convergence round against the connected
// node using local: pull the node's request-diff, push what it's missing
// from local, and pull what local is missing from it. Mirrors
// internal/reconcile.Engine's exchange, driven from the client side.
func (c *Client) Sync(ctx context.Context, local LocalReplica) error {
	remoteReq, err := c.RequestDiff(ctx)
	if err != nil {
		return fmt.Errorf("client: sync: request diff from remote: %w", err)
	}
	outbound := local.BuildDiff(remoteReq)
	if _, err := c.IntegrateDiff(ctx, outbound); err != nil {
		return fmt.Errorf("client: sync: push local diff to remote: %w", err)
	}

	localReq := local.RequestDiff()
	inbound, err := c.BuildDiff(ctx, localReq)
	if err != nil {
		return fmt.Errorf("client: sync: fetch remote diff: %w", err)
	}
	local.IntegrateDiff(inbound)
	return nil
}

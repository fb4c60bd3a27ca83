package transport

import (
	"context"

	"github.com/devrajpatel/meshkv/internal/diff"
	"google.golang.org/grpc"
)

// MeshServiceClient is the hand-written counterpart of the
// protoc-gen-go-grpc client stub a .proto for this service would normally
// generate (see DESIGN.md's "Transport codec" entry for why there is no
// .proto here).
type MeshServiceClient interface {
	RequestDiff(ctx context.Context, in *RequestDiffArgs, opts ...grpc.CallOption) (*diff.DiffRequest, error)
	BuildDiff(ctx context.Context, in *diff.DiffRequest, opts ...grpc.CallOption) (*diff.Diff, error)
	IntegrateDiff(ctx context.Context, in *diff.Diff, opts ...grpc.CallOption) (*Ack, error)
	PushOpSet(ctx context.Context, in *PushOpSetRequest, opts ...grpc.CallOption) (*Ack, error)
	HealthCheck(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error)
	Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error)
	Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
}

type meshServiceClient struct {
	cc *grpc.ClientConn
}

// NewMeshServiceClient wraps conn with the MeshService method set.
func NewMeshServiceClient(cc *grpc.ClientConn) MeshServiceClient {
	return &meshServiceClient{cc: cc}
}

func (c *meshServiceClient) RequestDiff(ctx context.Context, in *RequestDiffArgs, opts ...grpc.CallOption) (*diff.DiffRequest, error) {
	out := new(diff.DiffRequest)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RequestDiff", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *meshServiceClient) BuildDiff(ctx context.Context, in *diff.DiffRequest, opts ...grpc.CallOption) (*diff.Diff, error) {
	wireIn := &BuildDiffRequest{Request: in}
	wireOut := new(BuildDiffResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/BuildDiff", wireIn, wireOut, opts...); err != nil {
		return nil, err
	}
	return wireOut.Diff, nil
}

func (c *meshServiceClient) IntegrateDiff(ctx context.Context, in *diff.Diff, opts ...grpc.CallOption) (*Ack, error) {
	wireIn := &IntegrateDiffRequest{Diff: in}
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/IntegrateDiff", wireIn, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *meshServiceClient) PushOpSet(ctx context.Context, in *PushOpSetRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/PushOpSet", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *meshServiceClient) HealthCheck(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/HealthCheck", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *meshServiceClient) Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error) {
	out := new(PutResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Put", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *meshServiceClient) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	out := new(GetResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Get", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *meshServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Delete", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

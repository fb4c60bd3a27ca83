package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/devrajpatel/meshkv/internal/diff"
	"google.golang.org/grpc"
)

// fakeServer is a minimal MeshServiceServer that records which method was
// invoked and echoes back a recognizable response, letting the handler
// dispatch tests verify wiring without a real replica or gRPC connection.
type fakeServer struct {
	lastMethod string
}

func (f *fakeServer) RequestDiff(ctx context.Context, in *RequestDiffArgs) (*diff.DiffRequest, error) {
	f.lastMethod = "RequestDiff"
	return diff.NewRequest(), nil
}

func (f *fakeServer) BuildDiff(ctx context.Context, in *BuildDiffRequest) (*BuildDiffResponse, error) {
	f.lastMethod = "BuildDiff"
	return &BuildDiffResponse{Diff: diff.NewDiff()}, nil
}

func (f *fakeServer) IntegrateDiff(ctx context.Context, in *IntegrateDiffRequest) (*Ack, error) {
	f.lastMethod = "IntegrateDiff"
	return &Ack{Success: true}, nil
}

func (f *fakeServer) PushOpSet(ctx context.Context, in *PushOpSetRequest) (*Ack, error) {
	f.lastMethod = "PushOpSet"
	return &Ack{Success: true}, nil
}

func (f *fakeServer) HealthCheck(ctx context.Context, in *HealthRequest) (*HealthResponse, error) {
	f.lastMethod = "HealthCheck"
	return &HealthResponse{Healthy: true, NodeID: in.SourceNodeID}, nil
}

func (f *fakeServer) Put(ctx context.Context, in *PutRequest) (*PutResponse, error) {
	f.lastMethod = "Put"
	return &PutResponse{Success: true}, nil
}

func (f *fakeServer) Delete(ctx context.Context, in *DeleteRequest) (*DeleteResponse, error) {
	f.lastMethod = "Delete"
	return &DeleteResponse{Existed: in.Key != "missing"}, nil
}

func (f *fakeServer) Get(ctx context.Context, in *GetRequest) (*GetResponse, error) {
	f.lastMethod = "Get"
	if in.Key == "missing" {
		return &GetResponse{Found: false}, nil
	}
	return &GetResponse{Found: true, Value: []byte("value-for-" + in.Key)}, nil
}

var _ MeshServiceServer = (*fakeServer)(nil)

func noopDecode(any) error { return nil }

func TestServiceDesc_MethodNames(t *testing.T) {
	want := []string{"RequestDiff", "BuildDiff", "IntegrateDiff", "PushOpSet", "HealthCheck", "Put", "Get", "Delete"}
	if len(ServiceDesc.Methods) != len(want) {
		t.Fatalf("got %d methods, want %d", len(ServiceDesc.Methods), len(want))
	}
	for i, m := range ServiceDesc.Methods {
		if m.MethodName != want[i] {
			t.Fatalf("method %d = %q, want %q", i, m.MethodName, want[i])
		}
	}
}

func TestHandlers_DispatchWithoutInterceptor(t *testing.T) {
	srv := &fakeServer{}

	for _, m := range ServiceDesc.Methods {
		if _, err := m.Handler(srv, context.Background(), noopDecode, nil); err != nil {
			t.Fatalf("%s handler returned error: %v", m.MethodName, err)
		}
		if srv.lastMethod != m.MethodName {
			t.Fatalf("expected dispatch to %s, got %s", m.MethodName, srv.lastMethod)
		}
	}
}

func TestHandlers_DecodeErrorPropagates(t *testing.T) {
	srv := &fakeServer{}
	decErr := errors.New("boom")
	failDecode := func(any) error { return decErr }

	for _, m := range ServiceDesc.Methods {
		if _, err := m.Handler(srv, context.Background(), failDecode, nil); !errors.Is(err, decErr) {
			t.Fatalf("%s handler error = %v, want %v", m.MethodName, err, decErr)
		}
	}
}

func TestGetHandler_InvokesInterceptor(t *testing.T) {
	srv := &fakeServer{}
	var interceptorCalled bool

	interceptor := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		interceptorCalled = true
		return handler(ctx, req)
	}

	resp, err := getHandler(srv, context.Background(), func(v any) error {
		*(v.(*GetRequest)) = GetRequest{Key: "k"}
		return nil
	}, interceptor)
	if err != nil {
		t.Fatalf("getHandler: %v", err)
	}
	if !interceptorCalled {
		t.Fatal("expected interceptor to be invoked")
	}
	out := resp.(*GetResponse)
	if !out.Found || string(out.Value) != "value-for-k" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

// Package codec provides the structured wire encoder for delta payloads.
// It serializes the replica's own Go types — diff requests, diffs, opsets —
// directly with encoding/gob, and exposes the same encoder as a grpc.Codec
// so the transport layer can carry these structs as RPC payloads without a
// generated protobuf schema for them.
package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Name is the gRPC content-subtype this codec registers under.
const Name = "gob"

// Encode gob-serializes v.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode gob-deserializes data into v, which must be a pointer.
func Decode(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("codec: decode: %w", err)
	}
	return nil
}

// GRPCCodec implements encoding.Codec (google.golang.org/grpc/encoding) by
// delegating to gob. Registered by init() in register.go and selected
// per-call with grpc.CallContentSubtype(Name); a server picks it from the
// request's content-subtype.
type GRPCCodec struct{}

func (GRPCCodec) Marshal(v any) ([]byte, error) { return Encode(v) }

func (GRPCCodec) Unmarshal(data []byte, v any) error { return Decode(data, v) }

func (GRPCCodec) Name() string { return Name }

package codec

import "testing"

type sample struct {
	A string
	B []int
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sample{A: "k", B: []int{1, 2, 3}}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out sample
	if err := Decode(data, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.A != in.A || len(out.B) != len(in.B) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestGRPCCodecName(t *testing.T) {
	if (GRPCCodec{}).Name() != Name {
		t.Fatalf("Name() = %q, want %q", (GRPCCodec{}).Name(), Name)
	}
}

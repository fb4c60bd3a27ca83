package diff

import (
	"testing"

	"github.com/devrajpatel/meshkv/internal/bitmap"
)

func TestIndexSizeSumsPerPeerBitmaps(t *testing.T) {
	req := NewRequest()
	a := bitmap.FromSlice([]uint64{1, 2, 3})
	req.Peers["a"] = RequestPeerState{Index: a}
	if req.IndexSize() != a.SerializedSize() {
		t.Fatalf("IndexSize() = %d, want %d", req.IndexSize(), a.SerializedSize())
	}
}

func TestPeerDiffIsEmpty(t *testing.T) {
	cases := []struct {
		name  string
		pd    PeerDiff
		empty bool
	}{
		{"no inserts, no deletes", PeerDiff{}, true},
		{"no inserts, empty deletes bitmap", PeerDiff{Deletes: bitmap.New()}, true},
		{"inserts only", PeerDiff{Inserts: []Insert{{Key: "k"}}}, false},
		{"deletes only", PeerDiff{Deletes: bitmap.FromSlice([]uint64{1})}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.pd.IsEmpty(); got != tc.empty {
				t.Fatalf("IsEmpty(%+v) = %v, want %v", tc.pd, got, tc.empty)
			}
		})
	}
}

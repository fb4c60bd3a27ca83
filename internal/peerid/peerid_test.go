package peerid

import "testing"

func TestRandomLength(t *testing.T) {
	id := Random()
	if len(id) != 8 {
		t.Fatalf("Random() length = %d, want 8", len(id))
	}
	for _, r := range string(id) {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			t.Fatalf("Random() produced non-alphanumeric char %q", r)
		}
	}
}

func TestRandomUniqueness(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := Random()
		if seen[id] {
			t.Fatalf("Random() collided at iteration %d: %q", i, id)
		}
		seen[id] = true
	}
}

func TestLessTotalOrder(t *testing.T) {
	a, b := ID("alice"), ID("bob")
	if !a.Less(b) {
		t.Fatalf("expected %q < %q", a, b)
	}
	if b.Less(a) {
		t.Fatalf("unexpected %q < %q", b, a)
	}
	if a.Less(a) {
		t.Fatalf("id should not be less than itself")
	}
}

// Package peerid defines the opaque peer identifier used as both a map key
// and an LWW tiebreaker.
package peerid

import (
	"crypto/rand"
)

// ID is an immutable byte-string identifier, totally ordered lexicographically
// and usable directly as a Go map key.
type ID string

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Random returns a fresh 8-character alphanumeric identifier, the default
// public identifier chosen for a replica on first open.
func Random() ID {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read failing indicates a broken system entropy
		// source; there is no sane fallback.
		panic("peerid: crypto/rand unavailable: " + err.Error())
	}
	out := make([]byte, 8)
	for i, b := range buf {
		out[i] = alphanumeric[int(b)%len(alphanumeric)]
	}
	return ID(out)
}

// Less reports whether id sorts before other in the lexicographic total
// order used to break LWW ties.
func (id ID) Less(other ID) bool {
	return id < other
}

func (id ID) String() string {
	return string(id)
}

package main

import "testing"

func TestIsLegacyVerb(t *testing.T) {
	cases := map[string]bool{
		"put":    true,
		"get":    true,
		"health": true,
		"sync":   false,
		"watch":  false,
		"":       false,
	}
	for verb, want := range cases {
		if got := isLegacyVerb(verb); got != want {
			t.Errorf("isLegacyVerb(%q) = %v, want %v", verb, got, want)
		}
	}
}

package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"NODE_ID", "PEERS", "HEADLESS_SERVICE", "SYNC_RELAX_THRESHOLD", "SYNC_TIGHTEN_THRESHOLD"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NodeID != "node1" {
		t.Fatalf("NodeID = %q, want default", cfg.NodeID)
	}
	if cfg.SyncMinInterval >= cfg.SyncMaxInterval {
		t.Fatalf("default sync interval bounds invalid: min=%s max=%s", cfg.SyncMinInterval, cfg.SyncMaxInterval)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := &Config{
		NodeID:               "n",
		SyncMinInterval:      1,
		SyncMaxInterval:      2,
		SyncRelaxThreshold:   0.9,
		SyncTightenThreshold: 0.1,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted thresholds")
	}
}

func TestPeersFromCommaList(t *testing.T) {
	t.Setenv("HEADLESS_SERVICE", "")
	t.Setenv("PEERS", "a:1, b:2 ,c:3")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := []string{"a:1", "b:2", "c:3"}
	if len(cfg.Peers) != len(want) {
		t.Fatalf("Peers = %v, want %v", cfg.Peers, want)
	}
	for i := range want {
		if cfg.Peers[i] != want[i] {
			t.Fatalf("Peers[%d] = %q, want %q", i, cfg.Peers[i], want[i])
		}
	}
}

package syncsched

import (
	"testing"

	"github.com/devrajpatel/meshkv/internal/metrics"
	"go.uber.org/zap"
)

func TestMetricsWindow_AverageAndEviction(t *testing.T) {
	w := NewMetricsWindow(3)
	if avg := w.GetAverage(); avg != 0 {
		t.Fatalf("empty window average = %f, want 0", avg)
	}

	w.Add(1)
	w.Add(2)
	w.Add(3)
	if avg := w.GetAverage(); avg != 2 {
		t.Fatalf("average = %f, want 2", avg)
	}

	// window holds only 3; the 4th eviction pushes out the oldest sample (1).
	w.Add(6)
	if avg := w.GetAverage(); avg != (2.0+3.0+6.0)/3.0 {
		t.Fatalf("average after eviction = %f, want %f", avg, (2.0+3.0+6.0)/3.0)
	}
}

func TestConfidenceComputer_HealthyCluster(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_confidence_healthy")
	cc := NewConfidenceComputer(logger, m)

	cc.RecordMetrics(0.01, 0.0, 0.0)
	score, components := cc.Compute()
	if score < 0.9 {
		t.Fatalf("expected high confidence for healthy cluster, got %f", score)
	}
	if components.ErrorHealth != 1.0 {
		t.Fatalf("expected perfect error health with zero errors, got %f", components.ErrorHealth)
	}
}

func TestConfidenceComputer_DegradedCluster(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_confidence_degraded")
	cc := NewConfidenceComputer(logger, m)

	cc.RecordMetrics(1.0, 1.0, 1.0)
	score, _ := cc.Compute()
	if score > 0.1 {
		t.Fatalf("expected low confidence for degraded cluster, got %f", score)
	}
}

func TestConfidenceComputer_SmoothedHistory(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := metrics.NewMetrics("test_confidence_smoothed")
	cc := NewConfidenceComputer(logger, m)

	cc.RecordMetrics(0.0, 0.0, 0.0)
	raw1, _ := cc.Compute()
	cc.AddToHistory(raw1)

	cc.RecordMetrics(1.0, 1.0, 1.0)
	raw2, _ := cc.Compute()
	cc.AddToHistory(raw2)

	smoothed := cc.Smoothed()
	if smoothed <= 0 || smoothed >= 1 {
		t.Fatalf("smoothed confidence = %f, want strictly between 0 and 1", smoothed)
	}
}

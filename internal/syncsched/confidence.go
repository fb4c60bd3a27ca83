// Package syncsched is a sync-cadence controller: a confidence score drives
// how often a node runs full reconciliation against its peers. A healthy,
// low-latency cluster can reconcile rarely (bitmap diffs are exact, so
// infrequent reconciliation never loses writes); a degraded cluster
// reconciles often to bound staleness.
package syncsched

import (
	"math"
	"sync"

	"github.com/devrajpatel/meshkv/internal/metrics"
	"go.uber.org/zap"
)

// MetricsWindow is a fixed-capacity circular buffer for sliding-window
// averages, ported from adaptive.MetricsWindow unchanged.
type MetricsWindow struct {
	samples []float64
	size    int
	index   int
	count   int
	mu      sync.RWMutex
}

// NewMetricsWindow returns a window holding up to size samples.
func NewMetricsWindow(size int) *MetricsWindow {
	return &MetricsWindow{samples: make([]float64, size), size: size}
}

// Add inserts a new sample, evicting the oldest once the window is full.
func (mw *MetricsWindow) Add(value float64) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.samples[mw.index] = value
	mw.index = (mw.index + 1) % mw.size
	if mw.count < mw.size {
		mw.count++
	}
}

// GetAverage returns the mean of all samples currently in the window.
func (mw *MetricsWindow) GetAverage() float64 {
	mw.mu.RLock()
	defer mw.mu.RUnlock()

	if mw.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < mw.count; i++ {
		sum += mw.samples[i]
	}
	return sum / float64(mw.count)
}

// ConfidenceComponents breaks a confidence score down by contributing
// signal, for logging and Prometheus gauges.
type ConfidenceComponents struct {
	RTTHealth   float64
	VarHealth   float64
	ErrorHealth float64
}

// ConfidenceComputer blends peer RTT, RTT variance, and health-check error
// rate into a single sync confidence score in [0, 1].
type ConfidenceComputer struct {
	mu sync.RWMutex

	rttWindow      *MetricsWindow
	varianceWindow *MetricsWindow
	errorWindow    *MetricsWindow
	scoreHistory   *MetricsWindow

	alphaRTT float64 // weight for rtt health
	betaVar  float64 // weight for variance health
	gammaErr float64 // weight for error health

	rttBadThreshold float64 // seconds; rtt at/above this is considered bad
	varBadThreshold float64 // seconds^2; variance at/above this is bad

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewConfidenceComputer constructs a confidence computer with a 10-sample
// window per component and weights rebalanced to sum to 1.0 across the
// three components.
func NewConfidenceComputer(logger *zap.Logger, m *metrics.Metrics) *ConfidenceComputer {
	return &ConfidenceComputer{
		rttWindow:       NewMetricsWindow(10),
		varianceWindow:  NewMetricsWindow(10),
		errorWindow:     NewMetricsWindow(10),
		scoreHistory:    NewMetricsWindow(10),
		alphaRTT:        0.40,
		betaVar:         0.25,
		gammaErr:        0.35,
		rttBadThreshold: 0.2,    // 200ms
		varBadThreshold: 0.0025, // 50ms^2
		logger:          logger,
		metrics:         m,
	}
}

// RecordMetrics folds one round's observations into the sliding windows.
func (cc *ConfidenceComputer) RecordMetrics(avgRTT, variance, errorRate float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.rttWindow.Add(avgRTT)
	cc.varianceWindow.Add(variance)
	cc.errorWindow.Add(errorRate)
}

// Compute calculates the raw confidence score from the current windows.
func (cc *ConfidenceComputer) Compute() (float64, ConfidenceComponents) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	avgRTT := cc.rttWindow.GetAverage()
	variance := cc.varianceWindow.GetAverage()
	errorRate := cc.errorWindow.GetAverage()

	rttHealth := 1.0 - math.Min(avgRTT/cc.rttBadThreshold, 1.0)
	varHealth := 1.0 - math.Min(variance/cc.varBadThreshold, 1.0)
	errorHealth := 1.0 - errorRate

	score := cc.alphaRTT*rttHealth + cc.betaVar*varHealth + cc.gammaErr*errorHealth

	return score, ConfidenceComponents{
		RTTHealth:   rttHealth,
		VarHealth:   varHealth,
		ErrorHealth: errorHealth,
	}
}

// AddToHistory records a computed score for smoothing.
func (cc *ConfidenceComputer) AddToHistory(score float64) {
	cc.scoreHistory.Add(score)
}

// Smoothed returns the moving average of recorded scores.
func (cc *ConfidenceComputer) Smoothed() float64 {
	return cc.scoreHistory.GetAverage()
}

// UpdateMetricsGauges publishes the latest raw/smoothed scores.
func (cc *ConfidenceComputer) UpdateMetricsGauges(raw, smoothed float64) {
	cc.metrics.SyncConfidenceRaw.Set(raw)
	cc.metrics.SyncConfidenceSmoothed.Set(smoothed)
}

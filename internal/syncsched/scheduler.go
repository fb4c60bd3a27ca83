package syncsched

import (
	"context"
	"time"

	"github.com/devrajpatel/meshkv/internal/metrics"
	"go.uber.org/zap"
)

// Reconciler is the subset of *reconcile.Engine the scheduler adjusts.
type Reconciler interface {
	SetInterval(d time.Duration)
}

// PeerLister is the subset of *replication.Coordinator the scheduler needs
// to know which peers to pull RTT/error signal for.
type PeerLister interface {
	GetPeerAddresses() []string
}

// Scheduler is the closed-loop controller that grows or shrinks the
// reconciliation engine's periodic interval based on the sync confidence
// score, adapted from adaptive.Adjuster. A confident (low-latency,
// low-error) cluster relaxes toward MaxInterval; a degraded cluster
// tightens toward MinInterval.
type Scheduler struct {
	reconciler Reconciler
	peers      PeerLister
	reader     *metrics.Reader
	computer   *ConfidenceComputer
	interval   time.Duration

	minInterval time.Duration
	maxInterval time.Duration

	relaxThreshold   float64 // smoothed score below this shrinks the interval
	tightenThreshold float64 // smoothed score above this grows the interval

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewScheduler constructs a Scheduler ticking every interval.
func NewScheduler(
	reconciler Reconciler,
	peers PeerLister,
	reader *metrics.Reader,
	computer *ConfidenceComputer,
	interval time.Duration,
	minInterval, maxInterval time.Duration,
	relaxThreshold, tightenThreshold float64,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Scheduler {
	return &Scheduler{
		reconciler:       reconciler,
		peers:            peers,
		reader:           reader,
		computer:         computer,
		interval:         interval,
		minInterval:      minInterval,
		maxInterval:      maxInterval,
		relaxThreshold:   relaxThreshold,
		tightenThreshold: tightenThreshold,
		logger:           logger,
		metrics:          m,
	}
}

// Start runs the adjustment loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sync scheduler starting",
		zap.Duration("interval", s.interval),
		zap.Float64("relax_threshold", s.relaxThreshold),
		zap.Float64("tighten_threshold", s.tightenThreshold))

	current := s.minInterval
	if s.maxInterval > current {
		current = (s.minInterval + s.maxInterval) / 2
	}

	for {
		select {
		case <-ticker.C:
			current = s.adjust(current)
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) adjust(current time.Duration) time.Duration {
	peers := s.peers.GetPeerAddresses()

	avgRTT := s.reader.AverageRTT(peers)
	variance := s.reader.RTTVariance()
	errorRate := s.reader.ErrorRate(peers)

	s.computer.RecordMetrics(avgRTT, variance, errorRate)
	raw, components := s.computer.Compute()
	s.computer.AddToHistory(raw)
	smoothed := s.computer.Smoothed()
	s.computer.UpdateMetricsGauges(raw, smoothed)

	s.logger.Debug("sync confidence computed",
		zap.Float64("raw", raw),
		zap.Float64("smoothed", smoothed),
		zap.Float64("rtt_health", components.RTTHealth),
		zap.Float64("var_health", components.VarHealth),
		zap.Float64("error_health", components.ErrorHealth),
		zap.Duration("current_interval", current))

	next := current
	switch {
	case smoothed < s.relaxThreshold:
		// cluster unhealthy: reconcile more often to bound staleness.
		next = current / 2
		if next < s.minInterval {
			next = s.minInterval
		}
	case smoothed > s.tightenThreshold:
		// cluster healthy: reconcile less often.
		next = current * 2
		if next > s.maxInterval {
			next = s.maxInterval
		}
	}

	if next != current {
		s.logger.Info("sync interval adjusted",
			zap.Duration("old_interval", current),
			zap.Duration("new_interval", next),
			zap.Float64("smoothed_confidence", smoothed))
		s.reconciler.SetInterval(next)
	}
	s.metrics.SyncIntervalSeconds.Set(next.Seconds())

	return next
}

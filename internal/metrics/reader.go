package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Reader provides real-time access to a node's own Prometheus values by
// reading directly from the collectors, without a network round trip.
type Reader struct {
	metrics *Metrics
}

// HistogramStats holds statistics extracted from a histogram.
type HistogramStats struct {
	Count uint64
	Sum   float64
	Avg   float64
	P95   float64
}

// NewReader constructs a Reader over m.
func NewReader(m *Metrics) *Reader {
	return &Reader{metrics: m}
}

func (r *Reader) gaugeValue(gauge prometheus.Gauge) (float64, error) {
	var metricDto dto.Metric
	if err := gauge.(prometheus.Metric).Write(&metricDto); err != nil {
		return 0, err
	}
	return metricDto.GetGauge().GetValue(), nil
}

func (r *Reader) counterValue(counter prometheus.Counter) (float64, error) {
	var metricDto dto.Metric
	if err := counter.(prometheus.Metric).Write(&metricDto); err != nil {
		return 0, err
	}
	return metricDto.GetCounter().GetValue(), nil
}

func (r *Reader) histogramStats(hist prometheus.Observer) (*HistogramStats, error) {
	var metricDto dto.Metric
	if err := hist.(prometheus.Metric).Write(&metricDto); err != nil {
		return nil, err
	}
	h := metricDto.GetHistogram()
	stats := &HistogramStats{Count: h.GetSampleCount(), Sum: h.GetSampleSum()}
	if stats.Count > 0 {
		stats.Avg = stats.Sum / float64(stats.Count)
	}
	stats.P95 = estimatePercentile(h, 0.95)
	return stats, nil
}

func estimatePercentile(hist *dto.Histogram, percentile float64) float64 {
	totalCount := hist.GetSampleCount()
	if totalCount == 0 {
		return 0
	}
	target := float64(totalCount) * percentile
	for _, bucket := range hist.GetBucket() {
		if float64(bucket.GetCumulativeCount()) >= target {
			return bucket.GetUpperBound()
		}
	}
	return 0
}

// PeerRTT returns the latest health-check RTT gauge value for peer.
func (r *Reader) PeerRTT(peer string) (float64, error) {
	gauge, err := r.metrics.PeerRTT.GetMetricWithLabelValues(peer)
	if err != nil {
		return 0, fmt.Errorf("metrics: peer rtt for %s: %w", peer, err)
	}
	return r.gaugeValue(gauge)
}

// AverageRTT averages the current RTT gauge across peers with valid data.
func (r *Reader) AverageRTT(peers []string) float64 {
	total, count := 0.0, 0
	for _, peer := range peers {
		rtt, err := r.PeerRTT(peer)
		if err != nil || rtt <= 0 {
			continue
		}
		total += rtt
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// RTTVariance approximates RTT variance across peers using the spread
// between the reconciliation-latency p95 and average, a proxy for when no
// true variance histogram is available.
func (r *Reader) RTTVariance() float64 {
	stats, err := r.histogramStats(r.metrics.ReconciliationLatency)
	if err != nil || stats.Count == 0 || stats.P95 == 0 {
		return 0
	}
	spread := stats.P95 - stats.Avg
	return spread * spread
}

// ErrorRate returns the fraction of peer RPCs that errored across peers,
// derived from PeerErrors counters as errors/(ReconciliationRuns+errors).
func (r *Reader) ErrorRate(peers []string) float64 {
	var errs float64
	for _, peer := range peers {
		for _, op := range []string{"request_diff", "build_diff", "integrate_diff", "push_opset", "health"} {
			c, err := r.metrics.PeerErrors.GetMetricWithLabelValues(peer, op)
			if err != nil {
				continue
			}
			v, err := r.counterValue(c)
			if err != nil {
				continue
			}
			errs += v
		}
	}
	runs, err := r.counterValue(r.metrics.ReconciliationRuns)
	if err != nil || runs == 0 {
		if errs > 0 {
			return 1.0
		}
		return 0
	}
	rate := errs / (runs + errs)
	if rate > 1 {
		rate = 1
	}
	return rate
}

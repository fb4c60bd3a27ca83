// Package metrics holds the Prometheus instrumentation for a meshkv node:
// sync/diff traffic, bitmap index size, and reconciliation activity,
// constructed once per process and threaded through every long-running
// component.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for a node.
type Metrics struct {
	// write path
	InsertLatency prometheus.Histogram
	RemoveLatency prometheus.Histogram
	WriteOpsTotal prometheus.Counter

	// diff protocol
	DiffRequestLatency   *prometheus.HistogramVec
	DiffBuildLatency     *prometheus.HistogramVec
	DiffIntegrateLatency *prometheus.HistogramVec
	DiffRequestBytes     *prometheus.HistogramVec // RequestDiff.IndexSize() per exchange
	DiffInsertsApplied   *prometheus.CounterVec
	DiffDeletesApplied   *prometheus.CounterVec
	DiffExchanges        *prometheus.CounterVec // result label: ok/error

	// opset push path
	OpSetPushLatency *prometheus.HistogramVec
	OpSetInserts     prometheus.Counter

	// bitmap index
	IndexSizeBytes   *prometheus.GaugeVec // serialized index size per known peer id
	IndexCardinality *prometheus.GaugeVec

	// peer health
	PeerRTT          *prometheus.GaugeVec
	PeerErrors       *prometheus.CounterVec
	PartitionHealing prometheus.Counter

	// reconciliation / sync cadence
	ReconciliationRuns     prometheus.Counter
	ReconciliationLatency  prometheus.Histogram
	ReconciliationErrors   *prometheus.CounterVec
	SyncConfidenceRaw      prometheus.Gauge
	SyncConfidenceSmoothed prometheus.Gauge
	SyncIntervalSeconds    prometheus.Gauge

	// storage binding
	PersistErrors *prometheus.CounterVec
}

// NewMetrics constructs and registers every collector under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		InsertLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "insert_latency_seconds",
			Help:      "Latency of local Insert operations",
			Buckets:   prometheus.DefBuckets,
		}),
		RemoveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remove_latency_seconds",
			Help:      "Latency of local Remove operations",
			Buckets:   prometheus.DefBuckets,
		}),
		WriteOpsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_ops_total",
			Help:      "Total local write operations (insert + remove)",
		}),

		DiffRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diff_request_latency_seconds",
			Help:      "Latency of the RequestDiff RPC as observed by the caller",
			Buckets:   prometheus.DefBuckets,
		}, []string{"peer"}),
		DiffBuildLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diff_build_latency_seconds",
			Help:      "Latency of the BuildDiff RPC as observed by the caller",
			Buckets:   prometheus.DefBuckets,
		}, []string{"peer"}),
		DiffIntegrateLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diff_integrate_latency_seconds",
			Help:      "Latency of local IntegrateDiff calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"peer"}),
		DiffRequestBytes: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diff_request_bytes",
			Help:      "Serialized size of DiffRequest.IndexSize() per exchange",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 8),
		}, []string{"peer"}),
		DiffInsertsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diff_inserts_applied_total",
			Help:      "Total inserts applied via IntegrateDiff",
		}, []string{"peer"}),
		DiffDeletesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diff_deletes_applied_total",
			Help:      "Total deletes applied via IntegrateDiff",
		}, []string{"peer"}),
		DiffExchanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diff_exchanges_total",
			Help:      "Total diff exchanges by result",
		}, []string{"result"}),

		OpSetPushLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "opset_push_latency_seconds",
			Help:      "Latency of the PushOpSet RPC as observed by the caller",
			Buckets:   prometheus.DefBuckets,
		}, []string{"peer"}),
		OpSetInserts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opset_inserts_total",
			Help:      "Total opset inserts integrated via PushOpSet",
		}),

		IndexSizeBytes: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_size_bytes",
			Help:      "Serialized bitmap index size per known peer",
		}, []string{"peer"}),
		IndexCardinality: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_cardinality",
			Help:      "Live HLC count in the bitmap index per known peer",
		}, []string{"peer"}),

		PeerRTT: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peer_rtt_seconds",
			Help:      "Round trip time to peers as measured by health checks",
		}, []string{"peer"}),
		PeerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_errors_total",
			Help:      "Total errors talking to peers by type",
		}, []string{"peer", "type"}),
		PartitionHealing: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_healing_total",
			Help:      "Partition healing events detected (peer reconnections)",
		}),

		ReconciliationRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_runs_total",
			Help:      "Total full reconciliation passes executed",
		}),
		ReconciliationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_latency_seconds",
			Help:      "Duration of a full bidirectional reconciliation with one peer",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconciliationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_errors_total",
			Help:      "Total reconciliation failures by peer",
		}, []string{"peer"}),
		SyncConfidenceRaw: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_confidence_raw",
			Help:      "Raw sync confidence score",
		}),
		SyncConfidenceSmoothed: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_confidence_smoothed",
			Help:      "Smoothed sync confidence score (moving average)",
		}),
		SyncIntervalSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_interval_seconds",
			Help:      "Current adaptive full-reconciliation interval",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Total storage binding errors by operation",
		}, []string{"op"}),
	}
}

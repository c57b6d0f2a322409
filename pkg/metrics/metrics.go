// Package metrics holds the Prometheus collectors for a single store instance.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for a store
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	keysTotal         prometheus.Gauge
	logSizeBytes      prometheus.Gauge
	corruptionTotal   prometheus.Counter
	recordsReplayed   prometheus.Counter
}

// New creates the store metrics and registers them with reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "akv_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"operation", "status"},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "akv_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		keysTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "akv_keys_total",
				Help: "Number of keys in the in-memory index",
			},
		),

		logSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "akv_log_size_bytes",
				Help: "Size of the data file in bytes",
			},
		),

		corruptionTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "akv_corruption_errors_total",
				Help: "Number of checksum mismatches or truncated records encountered",
			},
		),

		recordsReplayed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "akv_records_replayed_total",
				Help: "Number of records decoded while rebuilding the index",
			},
		),
	}
}

// RecordOperation records a store operation. Safe to call on a nil receiver.
func (m *Metrics) RecordOperation(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateStats updates the key and log size gauges
func (m *Metrics) UpdateStats(keys int, logSize int64) {
	if m == nil {
		return
	}
	m.keysTotal.Set(float64(keys))
	m.logSizeBytes.Set(float64(logSize))
}

// RecordCorruption counts a corrupted or truncated record
func (m *Metrics) RecordCorruption() {
	if m == nil {
		return
	}
	m.corruptionTotal.Inc()
}

// RecordReplay counts records decoded during a replay
func (m *Metrics) RecordReplay(records int) {
	if m == nil {
		return
	}
	m.recordsReplayed.Add(float64(records))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Document store metrics
var (
	// StoreFlushesTotal counts document flushes by result (success|error)
	StoreFlushesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_flushes_total",
			Help:      "Total number of document store flushes",
		},
		[]string{"result"},
	)

	// StoreFlushDuration records how long writing the document to disk takes
	StoreFlushDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_flush_duration_seconds",
			Help:      "Document store flush latency in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// StoreReloadsTotal counts document reloads by trigger (watch|manual) and result
	StoreReloadsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reloads_total",
			Help:      "Total number of document store reloads",
		},
		[]string{"trigger", "result"},
	)

	// StoreRecords tracks the number of records per collection
	StoreRecords = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Number of records held in a document store collection",
		},
		[]string{"collection"},
	)
)

// RecordFlush records the outcome and duration of a document flush.
func RecordFlush(start time.Time, err error) {
	StoreFlushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		StoreFlushesTotal.WithLabelValues("error").Inc()
		return
	}
	StoreFlushesTotal.WithLabelValues("success").Inc()
}

// RecordReload records a document reload triggered by trigger (watch|manual).
func RecordReload(trigger string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	StoreReloadsTotal.WithLabelValues(trigger, result).Inc()
}

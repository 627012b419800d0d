// Package metrics exposes Prometheus collectors for the ingest pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestResolvesTotal       *prometheus.CounterVec
	ingestHopsTotal           *prometheus.CounterVec
	ingestFetchedBytesTotal   prometheus.Counter
	ingestStoredBytesTotal    *prometheus.CounterVec
	ingestCompressionSavedSum prometheus.Counter
	ingestFetchSeconds        prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestResolvesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_resolves_total",
				Help: "Total number of ingest calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestHopsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_hops_total",
				Help: "Total number of resolution hops, labeled by hop kind.",
			},
			[]string{"kind"},
		)

		ingestFetchedBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_fetched_bytes_total",
				Help: "Total number of bytes fetched from upstreams.",
			},
		)

		ingestStoredBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_stored_bytes_total",
				Help: "Total number of bytes persisted, labeled by MIME type.",
			},
			[]string{"mime"},
		)

		ingestCompressionSavedSum = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_compression_saved_bytes_total",
				Help: "Total number of bytes saved by the image compressor.",
			},
		)

		ingestFetchSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_fetch_duration_seconds",
				Help:    "Duration of individual upstream fetches.",
				Buckets: prometheus.DefBuckets,
			},
		)
	})
}

// ObserveResolve records the outcome of one ingest call.
func ObserveResolve(outcome string) {
	if ingestResolvesTotal != nil {
		ingestResolvesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveHop records one resolution hop by kind (redirect, html, terminal, vendor).
func ObserveHop(kind string) {
	if ingestHopsTotal != nil {
		ingestHopsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveFetch records the duration and size of one upstream fetch.
func ObserveFetch(d time.Duration, bytes int) {
	if ingestFetchSeconds != nil {
		ingestFetchSeconds.Observe(d.Seconds())
	}
	if ingestFetchedBytesTotal != nil && bytes > 0 {
		ingestFetchedBytesTotal.Add(float64(bytes))
	}
}

// ObserveStore records bytes persisted under the final MIME type.
func ObserveStore(mime string, bytes int) {
	if ingestStoredBytesTotal != nil && bytes > 0 {
		ingestStoredBytesTotal.WithLabelValues(mime).Add(float64(bytes))
	}
}

// ObserveCompressionSaved records bytes shaved off by the compressor.
func ObserveCompressionSaved(saved int) {
	if ingestCompressionSavedSum != nil && saved > 0 {
		ingestCompressionSavedSum.Add(float64(saved))
	}
}

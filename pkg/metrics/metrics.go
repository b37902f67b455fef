// Package metrics provides Prometheus metrics for import runs. A CLI run has
// no scrape endpoint, so the registry is written to a node-exporter textfile
// at the end of the run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsTotal tracks records by table and outcome (inserted, failed, skipped, previewed)
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "import",
			Name:      "records_total",
			Help:      "Total number of records processed by table and outcome",
		},
		[]string{"table", "outcome"},
	)

	// ChunkFallbacksTotal tracks chunks retried row by row
	ChunkFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "commit",
			Name:      "chunk_fallbacks_total",
			Help:      "Total number of chunks retried row by row",
		},
		[]string{"table"},
	)

	// StoreRequestDuration tracks store round trips
	StoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "store",
			Name:      "request_duration_seconds",
			Help:      "Duration of record store requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op", "table"},
	)

	// StoreErrorsTotal tracks failed store calls by error kind
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Total number of failed store requests by error kind",
		},
		[]string{"op", "kind"},
	)

	// EntitiesTotal tracks extracted legal entities by type
	EntitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "entities",
			Name:      "extracted_total",
			Help:      "Total number of new legal entities by type",
		},
		[]string{"type"},
	)

	// ClaimsMatchedTotal tracks claim parent matching by result
	ClaimsMatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "claims_total",
			Help:      "Total number of claims by match result",
		},
		[]string{"result"},
	)

	// RunDuration tracks whole import runs by mode
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "import",
			Name:      "run_duration_seconds",
			Help:      "Duration of import runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)
)

// WriteTextfile writes the default registry to path. An empty path is a no-op.
func WriteTextfile(path string) error {
	return WriteTextfileFrom(path, prometheus.DefaultGatherer)
}

func WriteTextfileFrom(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Package metrics exposes Prometheus instrumentation for the search pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "scriptsearch"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of search calls by outcome",
		},
		[]string{"status"},
	)

	SearchStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each search pipeline stage in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"stage"},
	)

	SearchBranchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "branch_failures_total",
			Help:      "Branch searches that failed and contributed no results",
		},
		[]string{"branch"},
	)

	SemanticDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semantic",
			Name:      "degraded_total",
			Help:      "Searches served without semantic enhancement",
		},
		[]string{"reason"},
	)

	VectorCandidatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vector",
			Name:      "candidates_skipped_total",
			Help:      "Stored vectors skipped during search because of a dimension mismatch",
		},
		[]string{"entity_type"},
	)

	VectorsMigrated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vector",
			Name:      "migrated_total",
			Help:      "Legacy vector blobs rewritten in the raw encoding",
		},
		[]string{"entity_type"},
	)

	EmbeddingCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "cache_requests_total",
			Help:      "Query embedding cache lookups by result",
		},
		[]string{"result"},
	)
)

// Status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

package index

import (
	"strings"

	"github.com/viant/scriptsearch/errs"
)

// Metric names a distance function. Smaller distances are more similar.
type Metric string

const (
	// Cosine distance is 1 - cosine similarity.
	Cosine Metric = "cosine"
	// L2 is the Euclidean distance.
	L2 Metric = "l2"
	// L1 is the Manhattan distance.
	L1 Metric = "l1"
)

// ParseMetric accepts cosine, l2 or l1 (case-insensitive). Anything else is
// a configuration error.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate reports a configuration error for unsupported metrics.
func (m Metric) Validate() error {
	switch m {
	case Cosine, L2, L1:
		return nil
	}
	return errs.Configuration("index.Metric", "unsupported distance metric %q", string(m))
}

// Neighbor is one kNN match.
type Neighbor struct {
	ID       int64
	Distance float64
}

// Index defines a vector index with a build/query lifecycle.
type Index interface {
	// Build constructs the index from the given ids and vectors.
	// ids and vectors must have the same length and a single dimension.
	Build(ids []int64, vectors [][]float32) error

	// Query returns up to k neighbours of query ordered by ascending
	// distance, ties broken by ascending id. When maxDistance is non-nil,
	// neighbours farther than *maxDistance are dropped. k <= 0 yields none.
	Query(query []float32, k int, metric Metric, maxDistance *float64) ([]Neighbor, error)

	// Len returns the number of indexed vectors.
	Len() int
}

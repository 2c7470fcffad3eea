package bruteforce

import (
	"fmt"
	"math"
	"sort"

	"github.com/viant/vec/search"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/index"
)

// Index is a brute-force vector index supporting cosine, L2 and L1 metrics.
type Index struct {
	ids  []int64
	vecs [][]float32
	dim  int
	mags []float32
}

// New returns an empty index.
func New() *Index { return &Index{} }

// Build loads ids and vectors and precomputes magnitudes.
func (i *Index) Build(ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("bruteforce: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		i.ids, i.vecs, i.mags, i.dim = nil, nil, nil, 0
		return nil
	}
	dim := len(vectors[0])
	for j := range vectors {
		if len(vectors[j]) != dim {
			return errs.DimensionMismatch("bruteforce.Build", len(vectors[j]), dim)
		}
	}
	mags := make([]float32, len(vectors))
	for j := range vectors {
		mags[j] = search.Float32s(vectors[j]).Magnitude()
	}
	i.ids = append([]int64(nil), ids...)
	i.vecs = append([][]float32(nil), vectors...)
	i.dim = dim
	i.mags = mags
	return nil
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Query returns top-k neighbours by ascending distance.
func (i *Index) Query(query []float32, k int, metric index.Metric, maxDistance *float64) ([]index.Neighbor, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 || i.dim == 0 || len(i.vecs) == 0 {
		return nil, nil
	}
	if len(query) != i.dim {
		return nil, errs.DimensionMismatch("bruteforce.Query", len(query), i.dim)
	}
	qm := search.Float32s(query).Magnitude()
	out := make([]index.Neighbor, 0, len(i.vecs))
	for j := range i.vecs {
		d := i.distance(query, qm, j, metric)
		if math.IsNaN(d) {
			continue
		}
		if maxDistance != nil && d > *maxDistance {
			continue
		}
		out = append(out, index.Neighbor{ID: i.ids[j], Distance: d})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Distance != out[b].Distance {
			return out[a].Distance < out[b].Distance
		}
		return out[a].ID < out[b].ID
	})
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func (i *Index) distance(query []float32, qm float32, j int, metric index.Metric) float64 {
	v := i.vecs[j]
	switch metric {
	case index.L2:
		return float64(search.Float32s(query).EuclideanDistance(v))
	case index.L1:
		var sum float64
		for n := range query {
			sum += math.Abs(float64(query[n]) - float64(v[n]))
		}
		return sum
	default:
		if qm == 0 || i.mags[j] == 0 {
			return 1
		}
		return clamp(float64(search.Float32s(query).CosineDistance(v)))
	}
}

// clamp keeps a float32 rounding error from leaving the [0, 2] cosine
// distance range.
func clamp(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

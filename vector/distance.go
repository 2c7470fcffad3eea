package vector

import (
	"math"

	"github.com/viant/scriptsearch/errs"
)

// CosineSimilarity computes the cosine similarity between two vectors. It
// returns 0 when either vector has zero magnitude and a dimension mismatch
// error when the lengths differ.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.DimensionMismatch("vector.CosineSimilarity", len(a), len(b))
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	return math.Max(-1, math.Min(1, sim)), nil
}

// L2Distance computes the Euclidean (L2) distance between two vectors. It
// returns an error if the vectors have different lengths.
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.DimensionMismatch("vector.L2Distance", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// L1Distance computes the Manhattan (L1) distance between two vectors.
func L1Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.DimensionMismatch("vector.L1Distance", len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum, nil
}

// Distance computes the distance between a and b under metric. Cosine
// distance is 1 - CosineSimilarity.
func Distance(a, b []float32, metric Metric) (float64, error) {
	if err := metric.Validate(); err != nil {
		return 0, err
	}
	switch metric {
	case L2:
		return L2Distance(a, b)
	case L1:
		return L1Distance(a, b)
	}
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// Similarity maps a distance to a similarity score where larger is closer:
// 1-d for cosine, 1/(1+d) for L2 and L1.
func Similarity(distance float64, metric Metric) float64 {
	if metric == Cosine || metric == "" {
		return 1 - distance
	}
	return 1 / (1 + distance)
}

package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/viant/scriptsearch/errs"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{1, 0}

	// Orthogonal vectors -> similarity 0
	if sim, err := CosineSimilarity(a, b); err != nil || sim != 0 {
		t.Fatalf("CosineSimilarity(a,b) = %v, %v; want 0, nil", sim, err)
	}

	// Identical vectors -> similarity 1
	if sim, err := CosineSimilarity(a, c); err != nil || sim != 1 {
		t.Fatalf("CosineSimilarity(a,c) = %v, %v; want 1, nil", sim, err)
	}

	v := []float32{0.3, -1.7, 2.2, 9}
	if sim, err := CosineSimilarity(v, v); err != nil || math.Abs(sim-1) > 1e-9 {
		t.Fatalf("CosineSimilarity(v,v) = %v, %v; want 1, nil", sim, err)
	}

	// Zero vector -> similarity 0, no error
	if sim, err := CosineSimilarity(v, make([]float32, 4)); err != nil || sim != 0 {
		t.Fatalf("CosineSimilarity(v,0) = %v, %v; want 0, nil", sim, err)
	}

	if _, err := CosineSimilarity(a, v); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("CosineSimilarity mismatch = %v, want dimension mismatch", err)
	}
}

func TestL2Distance(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}

	d, err := L2Distance(a, b)
	if err != nil {
		t.Fatalf("L2Distance failed: %v", err)
	}
	if d != 5 {
		t.Fatalf("L2Distance(0,0)-(3,4) = %v, want 5", d)
	}
}

func TestDistance(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}

	tests := []struct {
		metric Metric
		want   float64
	}{
		{Cosine, 1},
		{L2, 5},
		{L1, 7},
	}
	for _, tt := range tests {
		got, err := Distance(a, b, tt.metric)
		if err != nil {
			t.Fatalf("Distance(%s) failed: %v", tt.metric, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("Distance(%s) = %v, want %v", tt.metric, got, tt.want)
		}
	}

	if _, err := Distance(a, b, Metric("invalid")); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("Distance(invalid) = %v, want configuration error", err)
	}
	if _, err := ParseMetric("dot"); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("ParseMetric(dot) = %v, want configuration error", err)
	}
	if m, err := ParseMetric(" L2 "); err != nil || m != L2 {
		t.Fatalf("ParseMetric(L2) = %v, %v; want l2, nil", m, err)
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity(0.25, Cosine); got != 0.75 {
		t.Fatalf("Similarity(0.25, cosine) = %v, want 0.75", got)
	}
	if got := Similarity(1, L2); got != 0.5 {
		t.Fatalf("Similarity(1, l2) = %v, want 0.5", got)
	}
}

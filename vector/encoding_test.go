package vector

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/viant/scriptsearch/errs"
)

func TestEncodeDecodeEmbedding_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 3, 384, 1536} {
		orig := make([]float32, n)
		for i := range orig {
			orig[i] = float32(rng.NormFloat64())
		}

		b, err := EncodeEmbedding(orig)
		if err != nil {
			t.Fatalf("EncodeEmbedding failed: %v", err)
		}
		if len(b) != n*4 {
			t.Fatalf("blob length = %d, want %d", len(b), n*4)
		}

		decoded, err := DecodeEmbeddingDim(b, n)
		if err != nil {
			t.Fatalf("DecodeEmbeddingDim failed: %v", err)
		}
		if len(decoded) != len(orig) {
			t.Fatalf("decoded length = %d, want %d", len(decoded), len(orig))
		}
		for i := range orig {
			if math.Abs(float64(decoded[i]-orig[i])) > 1e-6 {
				t.Fatalf("decoded[%d] = %v, want %v", i, decoded[i], orig[i])
			}
		}
	}
}

func TestEncodeDecodeEmbedding_Empty(t *testing.T) {
	b, err := EncodeEmbedding(nil)
	if err != nil {
		t.Fatalf("EncodeEmbedding(nil) failed: %v", err)
	}
	if len(b) != 0 {
		t.Fatalf("expected empty blob for nil slice, got len=%d", len(b))
	}

	vec, err := DecodeEmbedding(nil)
	if err != nil {
		t.Fatalf("DecodeEmbedding(nil) failed: %v", err)
	}
	if len(vec) != 0 {
		t.Fatalf("expected empty slice for nil blob, got len=%d", len(vec))
	}
}

func TestDecodeEmbeddingDim_Mismatch(t *testing.T) {
	b, _ := EncodeEmbedding([]float32{1, 2, 3})
	if _, err := DecodeEmbeddingDim(b, 4); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("DecodeEmbeddingDim(3 floats, 4) = %v, want dimension mismatch", err)
	}
	if _, err := DecodeEmbedding(b[:5]); err == nil {
		t.Fatalf("DecodeEmbedding of 5 bytes succeeded, want error")
	}
}

func TestLegacyEncoding(t *testing.T) {
	orig := []float32{0.5, -1.25, 3}
	legacy := EncodeLegacy(orig)
	if len(legacy) != 4+len(orig)*4 {
		t.Fatalf("legacy length = %d, want %d", len(legacy), 4+len(orig)*4)
	}
	if !IsLegacy(legacy, 3) || !IsLegacy(legacy, 0) {
		t.Fatalf("IsLegacy(legacy) = false, want true")
	}
	raw, _ := EncodeEmbedding(orig)
	if IsLegacy(raw, 3) {
		t.Fatalf("IsLegacy(raw, 3) = true, want false")
	}
	if IsLegacy(legacy, 4) {
		t.Fatalf("IsLegacy(legacy, 4) = true, want false")
	}

	decoded, err := DecodeLegacy(legacy)
	if err != nil {
		t.Fatalf("DecodeLegacy failed: %v", err)
	}
	for i := range orig {
		if decoded[i] != orig[i] {
			t.Fatalf("decoded[%d] = %v, want %v", i, decoded[i], orig[i])
		}
	}

	// decodeStored accepts both forms for the same dimension.
	for name, blob := range map[string][]byte{"raw": raw, "legacy": legacy} {
		vec, err := decodeStored(blob, 3)
		if err != nil || len(vec) != 3 || vec[1] != -1.25 {
			t.Fatalf("decodeStored(%s) = %v, %v; want %v", name, vec, err, orig)
		}
	}

	if _, err := DecodeLegacy(legacy[:len(legacy)-4]); err == nil {
		t.Fatalf("DecodeLegacy of truncated blob succeeded, want error")
	}
}

package engine

import (
	"database/sql"
	"math"
	"testing"

	"github.com/viant/scriptsearch/vector"
)

func encode(t *testing.T, v []float32) []byte {
	t.Helper()
	b, err := vector.EncodeEmbedding(v)
	if err != nil {
		t.Fatalf("EncodeEmbedding(%v) failed: %v", v, err)
	}
	return b
}

func TestRegisterVectorFunctionsAndUse(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	if err := RegisterVectorFunctions(); err != nil {
		t.Fatalf("RegisterVectorFunctions failed: %v", err)
	}

	a := encode(t, []float32{1, 0})
	b := encode(t, []float32{0, 1})
	zero := encode(t, []float32{0, 0})

	var sim float64
	if err := db.QueryRow(`SELECT vec_cosine(?, ?)`, a, b).Scan(&sim); err != nil {
		t.Fatalf("vec_cosine(a,b) query failed: %v", err)
	}
	if sim != 0 {
		t.Fatalf("vec_cosine(a,b) = %v, want 0", sim)
	}

	if err := db.QueryRow(`SELECT vec_cosine(?, ?)`, a, a).Scan(&sim); err != nil {
		t.Fatalf("vec_cosine(a,a) query failed: %v", err)
	}
	if math.Abs(sim-1) > 1e-9 {
		t.Fatalf("vec_cosine(a,a) = %v, want 1", sim)
	}

	// Zero magnitude yields 0 rather than an error.
	if err := db.QueryRow(`SELECT vec_cosine(?, ?)`, a, zero).Scan(&sim); err != nil {
		t.Fatalf("vec_cosine(a,zero) query failed: %v", err)
	}
	if sim != 0 {
		t.Fatalf("vec_cosine(a,zero) = %v, want 0", sim)
	}
}

// TestVectorFunctionsDimensionMismatch verifies that mismatched dimensions
// produce NULL instead of an error.
func TestVectorFunctionsDimensionMismatch(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	var got sql.NullFloat64
	err = db.QueryRow(`SELECT vec_cosine(?, ?)`, encode(t, []float32{1, 0}), encode(t, []float32{1, 0, 0})).Scan(&got)
	if err != nil {
		t.Fatalf("vec_cosine mismatch query failed: %v", err)
	}
	if got.Valid {
		t.Fatalf("vec_cosine mismatch = %v, want NULL", got.Float64)
	}
}

// TestVectorFunctionsMalformedBlob verifies that a blob which is not a whole
// number of float32 values yields NULL instead of failing the statement.
func TestVectorFunctionsMalformedBlob(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	var got sql.NullFloat64
	err = db.QueryRow(`SELECT vec_cosine(x'0102030405', ?)`, encode(t, []float32{1, 0})).Scan(&got)
	if err != nil {
		t.Fatalf("vec_cosine malformed query failed: %v", err)
	}
	if got.Valid {
		t.Fatalf("vec_cosine malformed = %v, want NULL", got.Float64)
	}
}

func TestVectorFunctionsLegacyBlob(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	legacy := vector.EncodeLegacy([]float32{1, 0})
	raw := encode(t, []float32{1, 0})
	for _, args := range [][2][]byte{{legacy, raw}, {raw, legacy}} {
		var got sql.NullFloat64
		if err := db.QueryRow(`SELECT vec_cosine(?, ?)`, args[0], args[1]).Scan(&got); err != nil {
			t.Fatalf("vec_cosine legacy query failed: %v", err)
		}
		if !got.Valid || math.Abs(got.Float64-1) > 1e-9 {
			t.Fatalf("vec_cosine legacy = %+v, want 1", got)
		}
	}
}

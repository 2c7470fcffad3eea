package engine

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"
)

var registerOnce sync.Once
var registerErr error

// legacyHeaderSize is the uint32 element count that prefixes embeddings
// written before blobs were stored raw.
const legacyHeaderSize = 4

// RegisterVectorFunctions registers vec_cosine with the driver so it is
// available on new connections opened after this call. The function returns
// NULL when either argument is NULL, is not a whole number of float32 values,
// or differs in dimension from the other, so a bad row drops out of a
// WHERE ... IS NOT NULL filter instead of failing the statement. A blob in the
// length-prefixed format is recognised when its prefix matches the dimension
// of the other argument.
// Note: existing open connections will not see new functions.
func RegisterVectorFunctions() error {
	registerOnce.Do(func() {
		if err := sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, scalar("vec_cosine", cosine)); err != nil {
			registerErr = fmt.Errorf("engine: register vec_cosine: %w", err)
		}
	})
	return registerErr
}

func scalar(name string, fn func(a, b []float32) float64) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
		}
		a, err := asBlob(name, args[0])
		if err != nil {
			return nil, err
		}
		b, err := asBlob(name, args[1])
		if err != nil {
			return nil, err
		}
		va, vb := decodePair(a, b)
		if va == nil || vb == nil || len(va) != len(vb) {
			return nil, nil
		}
		return fn(va, vb), nil
	}
}

func asBlob(name string, arg driver.Value) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T for embedding; want BLOB", name, arg)
	}
}

// decodePair decodes both blobs and strips a legacy length prefix from the
// one that carries it. A malformed blob decodes to nil.
func decodePair(a, b []byte) ([]float32, []float32) {
	va, vb := decodeEmbedding(a), decodeEmbedding(b)
	if va == nil || vb == nil {
		return va, vb
	}
	switch {
	case len(va) == len(vb)+1 && hasLegacyPrefix(a, len(vb)):
		va = va[1:]
	case len(vb) == len(va)+1 && hasLegacyPrefix(b, len(va)):
		vb = vb[1:]
	}
	return va, vb
}

func hasLegacyPrefix(b []byte, dim int) bool {
	return len(b) == legacyHeaderSize+dim*4 && binary.LittleEndian.Uint32(b) == uint32(dim)
}

// Local minimal helpers to avoid import cycles in tests.
func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosine returns 0 when either vector has zero magnitude.
func cosine(a, b []float32) float64 {
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}

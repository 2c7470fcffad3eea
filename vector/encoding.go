package vector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viant/scriptsearch/errs"
)

// EncodeEmbedding encodes a slice of float32 values into a BLOB representation
// suitable for storage in SQLite. The encoding is a little-endian sequence of
// IEEE 754 float32 values without a length prefix; the dimension is tracked
// by embedding_metadata.
func EncodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(b[i*4:], bits)
	}
	return b, nil
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding back into a
// slice of float32 values.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	n := len(b) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

// DecodeEmbeddingDim decodes a raw BLOB that must hold exactly dim values.
func DecodeEmbeddingDim(b []byte, dim int) ([]float32, error) {
	if len(b) != dim*4 {
		return nil, errs.DimensionMismatch("vector.DecodeEmbeddingDim", len(b)/4, dim)
	}
	return DecodeEmbedding(b)
}

// decodeStored decodes a stored blob in either the raw or the legacy
// format, using the dimension from embedding_metadata.
func decodeStored(b []byte, dim int) ([]float32, error) {
	if IsLegacy(b, dim) {
		return DecodeLegacy(b)
	}
	return DecodeEmbeddingDim(b, dim)
}

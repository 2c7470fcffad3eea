package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

const legacyHeaderSize = 4

// EncodeLegacy writes the length-prefixed format: a little-endian uint32
// element count followed by the float32 values. New rows never use it.
func EncodeLegacy(vec []float32) []byte {
	b := make([]byte, legacyHeaderSize+len(vec)*4)
	binary.LittleEndian.PutUint32(b, uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[legacyHeaderSize+i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeLegacy reads the length-prefixed format.
func DecodeLegacy(b []byte) ([]float32, error) {
	if len(b) < legacyHeaderSize {
		return nil, fmt.Errorf("vector: legacy blob too short: %d bytes", len(b))
	}
	n := int(binary.LittleEndian.Uint32(b))
	if len(b) != legacyHeaderSize+n*4 {
		return nil, fmt.Errorf("vector: legacy blob declares %d values but holds %d bytes", n, len(b)-legacyHeaderSize)
	}
	return DecodeEmbedding(b[legacyHeaderSize:])
}

// IsLegacy reports whether b is in the length-prefixed format. With a known
// dimension (dim > 0) the check is exact; otherwise the prefix must agree
// with the blob size.
func IsLegacy(b []byte, dim int) bool {
	if len(b) < legacyHeaderSize || (len(b)-legacyHeaderSize)%4 != 0 {
		return false
	}
	n := int(binary.LittleEndian.Uint32(b))
	if dim > 0 {
		return n == dim && len(b) == legacyHeaderSize+dim*4
	}
	return len(b) == legacyHeaderSize+n*4
}

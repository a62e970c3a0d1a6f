// Package codec converts embedding vectors between their in-memory
// representation and the raw little-endian blobs stored on disk.
//
// A blob carries no header and no length prefix: the component count of an
// fp32 blob is its byte length divided by four. The representation itself is
// not stored per row either; it is derived from the model signature the rows
// were written under, so every blob filed under one signature decodes the
// same way.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Kind identifies the numeric representation of an embedding vector.
type Kind uint8

const (
	// KindUnsupported marks model signatures whose encoding this build
	// cannot index. Rows under such signatures remain readable as chunks
	// but have no vector interpretation.
	KindUnsupported Kind = iota

	// KindFloat32 is a packed sequence of little-endian IEEE 754
	// single-precision floats, four bytes per component.
	KindFloat32
)

func (k Kind) String() string {
	switch k {
	case KindFloat32:
		return "fp32"
	default:
		return "unsupported"
	}
}

// KindForSignature derives the vector representation from a model signature.
//
// A signature selects fp32 when it ends in an explicit "_fp32" suffix, or
// when it names no encoding at all (contains no underscore) and fp32 applies
// as the default. Any other underscore suffix names an encoding with no
// codec in this build.
func KindForSignature(signature string) Kind {
	if strings.HasSuffix(signature, "_fp32") || !strings.Contains(signature, "_") {
		return KindFloat32
	}
	return KindUnsupported
}

// Vector holds a query or storage embedding in exactly one representation.
// The zero value carries no representation and is rejected by every codec
// operation; construct values through Float32.
type Vector struct {
	kind Kind
	f32  []float32
}

// Float32 wraps vals as an fp32 vector. The slice is retained, not copied.
func Float32(vals []float32) Vector {
	return Vector{kind: KindFloat32, f32: vals}
}

// Kind reports the representation v carries.
func (v Vector) Kind() Kind { return v.kind }

// Len returns the number of components of v.
func (v Vector) Len() int {
	switch v.kind {
	case KindFloat32:
		return len(v.f32)
	default:
		return 0
	}
}

// Float32s returns the fp32 components of v, or nil when v holds a
// different representation.
func (v Vector) Float32s() []float32 {
	if v.kind != KindFloat32 {
		return nil
	}
	return v.f32
}

// Encode converts v to the on-disk blob layout of its representation.
func Encode(v Vector) ([]byte, error) {
	switch v.kind {
	case KindFloat32:
		if len(v.f32) == 0 {
			return nil, fmt.Errorf("codec: cannot encode empty vector")
		}
		return encodeFloat32(v.f32), nil
	default:
		return nil, fmt.Errorf("codec: no blob layout for %s vectors", v.kind)
	}
}

// Decode converts a stored blob back to a vector of the given representation.
func Decode(kind Kind, blob []byte) (Vector, error) {
	switch kind {
	case KindFloat32:
		vals, err := decodeFloat32(blob)
		if err != nil {
			return Vector{}, err
		}
		return Float32(vals), nil
	default:
		return Vector{}, fmt.Errorf("codec: no blob layout for %s vectors", kind)
	}
}

func encodeFloat32(vals []float32) []byte {
	blob := make([]byte, len(vals)*4)
	for i, v := range vals {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], bits)
	}
	return blob
}

func decodeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("codec: fp32 blob size %d is not a multiple of 4", len(blob))
	}

	vals := make([]float32, len(blob)/4)
	for i := 0; i < len(vals); i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vals[i] = math.Float32frombits(bits)
	}

	return vals, nil
}

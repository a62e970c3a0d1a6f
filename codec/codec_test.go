package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature string
		want      Kind
	}{
		{name: "explicit fp32 suffix", signature: "demo-4_fp32", want: KindFloat32},
		{name: "no encoding suffix defaults to fp32", signature: "demo-4", want: KindFloat32},
		{name: "dashes are not encoding separators", signature: "all-MiniLM-L6-v2", want: KindFloat32},
		{name: "fp32 after other underscores", signature: "org_model_fp32", want: KindFloat32},
		{name: "fp16 has no codec", signature: "demo-4_fp16", want: KindUnsupported},
		{name: "int8 has no codec", signature: "demo-4_int8", want: KindUnsupported},
		{name: "empty signature defaults to fp32", signature: "", want: KindFloat32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindForSignature(tt.signature))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	vals := []float32{1.5, -2.25, 0, 3.14159, -0.000123}

	blob, err := Encode(Float32(vals))
	require.NoError(t, err)
	require.Len(t, blob, len(vals)*4)

	got, err := Decode(KindFloat32, blob)
	require.NoError(t, err)

	assert.Equal(t, KindFloat32, got.Kind())
	assert.Equal(t, vals, got.Float32s())
}

func TestEncodeBlobLayout(t *testing.T) {
	// 1.0 is 0x3F800000; the blob stores it little-endian with no prefix.
	blob, err := Encode(Float32([]float32{1.0}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, blob)

	// Component count is implied by byte length alone.
	blob, err = Encode(Float32([]float32{1.0, 2.0}))
	require.NoError(t, err)
	require.Len(t, blob, 8)

	got, err := Decode(KindFloat32, blob)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestEncodeRejectsEmptyVector(t *testing.T) {
	_, err := Encode(Float32(nil))
	assert.Error(t, err)

	_, err = Encode(Float32([]float32{}))
	assert.Error(t, err)
}

func TestEncodeRejectsZeroValue(t *testing.T) {
	var v Vector
	assert.Equal(t, KindUnsupported, v.Kind())

	_, err := Encode(v)
	assert.Error(t, err)
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 7} {
		_, err := Decode(KindFloat32, make([]byte, n))
		assert.Error(t, err, "blob of %d bytes", n)
	}
}

func TestDecodeRejectsUnsupportedKind(t *testing.T) {
	_, err := Decode(KindUnsupported, []byte{0, 0, 0, 0})
	assert.Error(t, err)
}

func TestVectorAccessors(t *testing.T) {
	v := Float32([]float32{1, 2, 3})
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, []float32{1, 2, 3}, v.Float32s())

	var zero Vector
	assert.Equal(t, 0, zero.Len())
	assert.Nil(t, zero.Float32s())
}

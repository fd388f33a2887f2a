package frame

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResponse_DataTypes(t *testing.T) {
	tests := []struct {
		name  string
		raw   []byte
		index byte
		want  Value
	}{
		{
			name:  "byte",
			raw:   []byte{0xFF, 0x55, 0x03, 0x07, 0x01, 0xAB},
			index: 7,
			want:  Value{Type: DataTypeByte, Byte: 0xAB},
		},
		{
			name:  "float32",
			raw:   []byte{0xFF, 0x55, 0x06, 0x09, 0x02, 0x00, 0x00, 0x48, 0x41}, // 12.5
			index: 9,
			want:  Value{Type: DataTypeFloat32, Float: 12.5},
		},
		{
			name:  "int16",
			raw:   []byte{0xFF, 0x55, 0x04, 0xFE, 0x03, 0x38, 0xFF}, // -200
			index: 254,
			want:  Value{Type: DataTypeInt16, Short: -200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, resp := DecodeResponse(tt.raw)
			require.NotNil(t, resp)
			assert.Equal(t, len(tt.raw), n)
			assert.Equal(t, int(tt.raw[2])+3, n)
			assert.Equal(t, tt.index, resp.Index)
			assert.Equal(t, tt.want, resp.Value)
		})
	}
}

func TestDecodeResponse_EncodeResponseAgrees(t *testing.T) {
	v := Value{Type: DataTypeFloat32, Float: 33.25}
	raw := EncodeResponse(12, v)
	n, resp := DecodeResponse(raw)
	require.NotNil(t, resp)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, byte(12), resp.Index)
	assert.InDelta(t, 33.25, resp.Value.Float64(), 1e-6)
}

func TestDecodeResponse_ZeroLengthPayload(t *testing.T) {
	raw := []byte{0xFF, 0x55, 0x02, 0x05, 0x01}
	n, resp := DecodeResponse(raw)
	require.NotNil(t, resp)
	assert.Equal(t, 5, n)
	assert.Equal(t, byte(5), resp.Index)
	assert.False(t, resp.Value.Valid())
}

func TestDecodeResponse_UnknownType(t *testing.T) {
	raw := []byte{0xFF, 0x55, 0x03, 0x05, 0x09, 0x01}
	n, resp := DecodeResponse(raw)
	require.NotNil(t, resp)
	assert.Equal(t, 6, n)
	assert.Equal(t, DataTypeNone, resp.Value.Type)
}

func TestDecodeResponse_NeedMoreBytes(t *testing.T) {
	full := []byte{0xFF, 0x55, 0x06, 0x09, 0x02, 0x00, 0x00, 0x48, 0x41}
	for i := 0; i < len(full); i++ {
		n, resp := DecodeResponse(full[:i])
		assert.Zero(t, n, "prefix of %d bytes", i)
		assert.Nil(t, resp)
	}
}

func TestDecodeResponse_SkipsOneByteWithoutMarker(t *testing.T) {
	n, resp := DecodeResponse([]byte{0x00, 0xFF, 0x55})
	assert.Equal(t, 1, n)
	assert.Nil(t, resp)

	n, resp = DecodeResponse([]byte{0xFF, 0x00, 0x55})
	assert.Equal(t, 1, n)
	assert.Nil(t, resp)
}

func TestDecodeResponse_ShortDeclaredLength(t *testing.T) {
	n, resp := DecodeResponse([]byte{0xFF, 0x55, 0x01, 0x05})
	assert.Equal(t, 1, n)
	assert.Nil(t, resp)
}

func TestDecodeResponse_MarkerInsidePayload(t *testing.T) {
	// int16 0x55FF is the marker byte pair in little-endian order
	raw := []byte{0xFF, 0x55, 0x04, 0x03, 0x03, 0xFF, 0x55}
	n, resp := DecodeResponse(raw)
	require.NotNil(t, resp)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, int16(0x55FF), resp.Value.Short)
}

func TestDecodeResponse_GarbageResync(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	valid := EncodeResponse(77, Value{Type: DataTypeInt16, Short: 1234})

	for _, garbageLen := range []int{0, 1, 7, 64, 300} {
		buf := make([]byte, 0, garbageLen+len(valid))
		for len(buf) < garbageLen {
			b := byte(rng.Intn(256))
			if b == 0xFF {
				continue
			}
			buf = append(buf, b)
		}
		buf = append(buf, valid...)

		var got *Response
		calls := 0
		for len(buf) > 0 && calls <= garbageLen+1 {
			n, resp := DecodeResponse(buf)
			require.NotZero(t, n, "decoder stalled with %d bytes left", len(buf))
			buf = buf[n:]
			calls++
			if resp != nil {
				got = resp
				break
			}
		}

		require.NotNil(t, got, "garbage length %d", garbageLen)
		assert.Equal(t, byte(77), got.Index)
		assert.Equal(t, int16(1234), got.Value.Short)
		assert.Empty(t, buf)
		assert.Equal(t, garbageLen+1, calls)
	}
}

func TestValue_Float64(t *testing.T) {
	assert.Equal(t, 7.0, Value{Type: DataTypeByte, Byte: 7}.Float64())
	assert.Equal(t, -3.0, Value{Type: DataTypeInt16, Short: -3}.Float64())
	assert.Equal(t, 0.0, Value{}.Float64())
	assert.Equal(t, "float32", DataTypeFloat32.String())
}

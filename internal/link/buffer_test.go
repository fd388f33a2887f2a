// internal/link/buffer_test.go
package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbot-service/internal/protocol/frame"
)

func TestReceiveBuffer_SplitFrame(t *testing.T) {
	rx := newReceiveBuffer(1024)
	encoded := frame.EncodeResponse(7, frame.Value{Type: frame.DataTypeInt16, Short: -300})

	rx.write(encoded[:4])
	_, ok := rx.next()
	assert.False(t, ok)
	assert.Equal(t, 4, rx.len())

	rx.write(encoded[4:])
	resp, ok := rx.next()
	require.True(t, ok)
	assert.Equal(t, byte(7), resp.Index)
	assert.Equal(t, int16(-300), resp.Value.Short)
	assert.Zero(t, rx.len())
}

func TestReceiveBuffer_SkipsGarbage(t *testing.T) {
	rx := newReceiveBuffer(1024)
	rx.write([]byte{0x01, 0xFF, 0x02})
	rx.write(frame.EncodeResponse(3, frame.Value{Type: frame.DataTypeByte, Byte: 9}))

	resp, ok := rx.next()
	require.True(t, ok)
	assert.Equal(t, byte(3), resp.Index)
	assert.Equal(t, uint8(9), resp.Value.Byte)
}

func TestReceiveBuffer_DropsOldestBeyondCap(t *testing.T) {
	rx := newReceiveBuffer(16)
	rx.write(make([]byte, 20))
	assert.Equal(t, 16, rx.len())
	assert.Equal(t, int64(4), rx.dropped.Load())

	encoded := frame.EncodeResponse(5, frame.Value{Type: frame.DataTypeFloat32, Float: 1.5})
	rx.write(encoded)
	assert.Equal(t, 16, rx.len())

	resp, ok := rx.next()
	require.True(t, ok)
	assert.Equal(t, byte(5), resp.Index)
}

// internal/protocol/frame/decode.go
package frame

import (
	"encoding/binary"
	"math"
)

// minResponseLen is the smallest declared length able to carry index and data type
const minResponseLen = 2

// Value is a decoded response payload
type Value struct {
	Type  DataType `json:"type"`
	Byte  uint8    `json:"byte,omitempty"`
	Float float32  `json:"float,omitempty"`
	Short int16    `json:"short,omitempty"`
}

// Valid reports whether the payload carried a value
func (v Value) Valid() bool {
	return v.Type != DataTypeNone
}

// Float64 returns the value widened to float64
func (v Value) Float64() float64 {
	switch v.Type {
	case DataTypeByte:
		return float64(v.Byte)
	case DataTypeFloat32:
		return float64(v.Float)
	case DataTypeInt16:
		return float64(v.Short)
	default:
		return 0
	}
}

// Response is one recognized response frame
type Response struct {
	Index byte
	Value Value
}

// DecodeResponse recognizes at most one response frame at the start of buf.
//
// It returns the number of bytes the caller must drop from the front of buf.
// A zero count with a nil response means more bytes are needed. A count of one
// with a nil response means buf did not start with a frame and the leading byte
// was skipped. Otherwise the whole frame is consumed and returned; its Value is
// DataTypeNone when the payload is empty or does not fit its declared type.
func DecodeResponse(buf []byte) (int, *Response) {
	if len(buf) == 0 {
		return 0, nil
	}
	if buf[0] != Marker[0] {
		return 1, nil
	}
	if len(buf) < 2 {
		return 0, nil
	}
	if buf[1] != Marker[1] {
		return 1, nil
	}
	if len(buf) < headerLen {
		return 0, nil
	}

	length := int(buf[2])
	if length < minResponseLen {
		return 1, nil
	}
	total := headerLen + length
	if len(buf) < total {
		return 0, nil
	}

	resp := &Response{
		Index: buf[3],
		Value: decodeValue(DataType(buf[4]), buf[5:total]),
	}
	return total, resp
}

func decodeValue(t DataType, payload []byte) Value {
	switch {
	case t == DataTypeByte && len(payload) >= 1:
		return Value{Type: t, Byte: payload[0]}
	case t == DataTypeFloat32 && len(payload) >= 4:
		bits := binary.LittleEndian.Uint32(payload[:4])
		return Value{Type: t, Float: math.Float32frombits(bits)}
	case t == DataTypeInt16 && len(payload) >= 2:
		return Value{Type: t, Short: int16(binary.LittleEndian.Uint16(payload[:2]))}
	default:
		return Value{}
	}
}

// EncodeResponse builds a response frame as the firmware would send it.
// Test fakes use it to feed the decoder.
func EncodeResponse(index byte, v Value) []byte {
	buf := []byte{Marker[0], Marker[1], 0, index, byte(v.Type)}
	switch v.Type {
	case DataTypeByte:
		buf = append(buf, v.Byte)
	case DataTypeFloat32:
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v.Float))
	case DataTypeInt16:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v.Short))
	}
	buf[2] = byte(len(buf) - headerLen)
	return buf
}

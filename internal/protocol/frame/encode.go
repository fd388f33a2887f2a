// internal/protocol/frame/encode.go
package frame

import (
	"encoding/binary"
	"math"
)

// command builds FF 55 len 00 02 opcode args; len counts everything after itself
func command(opcode byte, args ...byte) []byte {
	buf := make([]byte, 0, headerLen+3+len(args))
	buf = append(buf, Marker[0], Marker[1], 0, commandReserved, commandWrite, opcode)
	buf = append(buf, args...)
	buf[2] = byte(len(buf) - headerLen)
	return buf
}

func appendInt16(buf []byte, v int16) []byte {
	return binary.LittleEndian.AppendUint16(buf, uint16(v))
}

// negate flips the sign of v, saturating at the int16 bounds
func negate(v int16) int16 {
	if v == math.MinInt16 {
		return math.MaxInt16
	}
	return -v
}

// EncodeMove builds a differential drive frame.
// The left wheel is mounted mirrored, so its speed is sent negated.
func EncodeMove(left, right int16) []byte {
	args := make([]byte, 0, 4)
	args = appendInt16(args, negate(left))
	args = appendInt16(args, right)
	return command(OpMove, args...)
}

// EncodeLED sets one of the onboard RGB LEDs
func EncodeLED(index, red, green, blue uint8) []byte {
	return EncodeRGBLED(OnboardLEDPort, OnboardLEDSlot, index, red, green, blue)
}

// EncodeRGBLED sets an RGB LED on any port and slot
func EncodeRGBLED(port, slot, index, red, green, blue uint8) []byte {
	return command(OpRGBLED, port, slot, index, red, green, blue)
}

// EncodeBuzzer plays a tone; frequency 0 silences the buzzer
func EncodeBuzzer(frequency, duration int16) []byte {
	args := make([]byte, 0, 4)
	args = appendInt16(args, frequency)
	args = appendInt16(args, duration)
	return command(OpBuzzer, args...)
}

// EncodeMotor drives a single DC motor port
func EncodeMotor(port uint8, speed int16) []byte {
	return command(OpMotor, appendInt16([]byte{port}, speed)...)
}

// EncodeServo positions a servo, angle in degrees 0-180
func EncodeServo(port, slot, angle uint8) []byte {
	return command(OpServo, port, slot, angle)
}

// EncodeSensorRead requests an ultrasonic reading tagged with index
func EncodeSensorRead(port, slot, index uint8) []byte {
	buf := []byte{Marker[0], Marker[1], 0, index, actionRead, deviceUltrasonic, port, slot}
	buf[2] = byte(len(buf) - headerLen)
	return buf
}

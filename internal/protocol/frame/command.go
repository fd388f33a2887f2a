// internal/protocol/frame/command.go
package frame

// Marker opens every command and response frame
var Marker = [2]byte{0xFF, 0x55}

const (
	// headerLen covers the marker and the length byte
	headerLen = 3

	// reserved and sub-id bytes that follow the length in command frames
	commandReserved byte = 0x00
	commandWrite    byte = 0x02

	// read request action and device ids
	actionRead       byte = 0x01
	deviceUltrasonic byte = 0x01
)

// Opcodes understood by the mBot firmware
const (
	OpMove   byte = 0x05
	OpRGBLED byte = 0x08
	OpMotor  byte = 0x0A
	OpServo  byte = 0x0B
	OpBuzzer byte = 0x22
)

// Onboard RGB LED address
const (
	OnboardLEDPort byte = 0x07
	OnboardLEDSlot byte = 0x02
)

// DataType discriminates how a response payload decodes
type DataType byte

const (
	DataTypeNone    DataType = 0
	DataTypeByte    DataType = 1
	DataTypeFloat32 DataType = 2
	DataTypeInt16   DataType = 3
)

// String returns the data type name
func (t DataType) String() string {
	switch t {
	case DataTypeByte:
		return "byte"
	case DataTypeFloat32:
		return "float32"
	case DataTypeInt16:
		return "int16"
	default:
		return "none"
	}
}

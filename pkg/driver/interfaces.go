// pkg/driver/interfaces.go
package driver

// RobotDriver is the command surface every robot backend implements.
// Commands return false when the frame was not delivered; callers decide
// whether to retry.
type RobotDriver interface {
	// Motion
	Move(left, right int16) bool
	SetMotor(port uint8, speed int16) bool
	SetServo(port, slot, angle uint8) bool

	// Lights and sound
	SetLED(index, red, green, blue uint8) bool
	SetRGBLED(port, slot, index, red, green, blue uint8) bool
	Buzz(frequency, duration int16) bool

	// Sensors
	ReadDistance(port, slot uint8) (float64, bool, error)

	// Device information
	Info() *DeviceInfo
	GetHealthMetrics() *HealthMetrics

	// Cleanup
	Close() error
}

// StateReporter is implemented by drivers backed by a real link
type StateReporter interface {
	LinkStats() LinkStats
}

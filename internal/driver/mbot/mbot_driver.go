// internal/driver/mbot/mbot_driver.go
package mbot

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"mbot-service/internal/link"
	"mbot-service/internal/model"
	"mbot-service/internal/protocol/frame"
	"mbot-service/pkg/driver"
)

// Link is the part of the link manager the driver needs
type Link interface {
	Send(data []byte) bool
	ReadSensor(port, slot uint8) (frame.Value, bool, error)
	State() model.ConnectionState
	ConnectionType() model.ConnectionType
	Stats() link.Stats
	Close() error
}

var _ driver.RobotDriver = (*MBotDriver)(nil)

// MBotDriver implements driver.RobotDriver over a live link
type MBotDriver struct {
	link   Link
	logger *zap.Logger

	mutex           sync.Mutex
	operations      int64
	failures        int64
	lastErrorTime   *time.Time
	lastSuccessTime *time.Time
}

// NewMBotDriver creates a driver for a connected link
func NewMBotDriver(l Link, logger *zap.Logger) *MBotDriver {
	return &MBotDriver{
		link:   l,
		logger: logger.With(zap.String("component", "mbot-driver")),
	}
}

// Move drives the left and right wheels
func (d *MBotDriver) Move(left, right int16) bool {
	return d.send("move", frame.EncodeMove(left, right))
}

// SetMotor sets the speed of a single DC motor port
func (d *MBotDriver) SetMotor(port uint8, speed int16) bool {
	return d.send("motor", frame.EncodeMotor(port, speed))
}

// SetServo sets a servo angle
func (d *MBotDriver) SetServo(port, slot, angle uint8) bool {
	return d.send("servo", frame.EncodeServo(port, slot, angle))
}

// SetLED sets an onboard LED; index 0 addresses both
func (d *MBotDriver) SetLED(index, red, green, blue uint8) bool {
	return d.send("led", frame.EncodeLED(index, red, green, blue))
}

// SetRGBLED sets an LED on any port
func (d *MBotDriver) SetRGBLED(port, slot, index, red, green, blue uint8) bool {
	return d.send("rgb_led", frame.EncodeRGBLED(port, slot, index, red, green, blue))
}

// Buzz plays a tone; a zero frequency silences the buzzer
func (d *MBotDriver) Buzz(frequency, duration int16) bool {
	return d.send("buzzer", frame.EncodeBuzzer(frequency, duration))
}

// ReadDistance returns the ultrasonic distance in centimetres.
// ok is false when no reading arrived in time.
func (d *MBotDriver) ReadDistance(port, slot uint8) (float64, bool, error) {
	value, ok, err := d.link.ReadSensor(port, slot)
	if err != nil {
		return 0, false, err
	}
	if !ok || !value.Valid() {
		d.record(false)
		return 0, false, nil
	}
	d.record(true)
	return value.Float64(), true, nil
}

func (d *MBotDriver) send(action string, data []byte) bool {
	ok := d.link.Send(data)
	d.record(ok)
	if !ok {
		d.logger.Debug("Command not delivered", zap.String("action", action))
	}
	return ok
}

func (d *MBotDriver) record(success bool) {
	now := time.Now()
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.operations++
	if success {
		d.lastSuccessTime = &now
		return
	}
	d.failures++
	d.lastErrorTime = &now
}

// Info returns device information
func (d *MBotDriver) Info() *driver.DeviceInfo {
	return &driver.DeviceInfo{
		Model:          "mBot",
		Manufacturer:   "Makeblock",
		ConnectionType: d.link.ConnectionType(),
		State:          d.link.State(),
		Capabilities: []driver.Capability{
			driver.CapabilityMove,
			driver.CapabilityMotor,
			driver.CapabilityServo,
			driver.CapabilityLED,
			driver.CapabilityBuzzer,
			driver.CapabilityDistance,
		},
	}
}

// GetHealthMetrics returns delivery statistics for this driver
func (d *MBotDriver) GetHealthMetrics() *driver.HealthMetrics {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	metrics := &driver.HealthMetrics{
		TotalOperations: d.operations,
		ErrorCount:      d.failures,
		SuccessRate:     1,
		LastErrorTime:   d.lastErrorTime,
		LastSuccessTime: d.lastSuccessTime,
	}
	if d.operations > 0 {
		metrics.SuccessRate = float64(d.operations-d.failures) / float64(d.operations)
	}
	metrics.HealthScore = int(metrics.SuccessRate * 100)
	if !d.link.State().IsConnected() {
		metrics.HealthScore = 0
	}
	return metrics
}

// LinkStats returns the link counters
func (d *MBotDriver) LinkStats() driver.LinkStats {
	return d.link.Stats()
}

// Close closes the link. It sends nothing; stop the robot first.
func (d *MBotDriver) Close() error {
	return d.link.Close()
}

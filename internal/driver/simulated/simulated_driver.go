// internal/driver/simulated/simulated_driver.go
package simulated

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"mbot-service/internal/model"
	"mbot-service/pkg/driver"
)

var _ driver.RobotDriver = (*SimulatedDriver)(nil)

// Call records one command the simulator accepted
type Call struct {
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params"`
	Timestamp time.Time              `json:"timestamp"`
}

// SimulatedDriver stands in for the robot when no link could be opened.
// Every command is logged, recorded and reported as delivered.
type SimulatedDriver struct {
	logger *zap.Logger
	mutex  sync.Mutex
	calls  []Call
	closed bool
}

// NewSimulatedDriver creates a simulator
func NewSimulatedDriver(logger *zap.Logger) *SimulatedDriver {
	return &SimulatedDriver{
		logger: logger.With(zap.String("component", "simulated-driver")),
	}
}

func (d *SimulatedDriver) record(action string, params map[string]interface{}) bool {
	d.mutex.Lock()
	d.calls = append(d.calls, Call{Action: action, Params: params, Timestamp: time.Now()})
	d.mutex.Unlock()

	d.logger.Info("Simulated command",
		zap.String("action", action),
		zap.Any("params", params),
	)
	return true
}

// Move records a wheel command
func (d *SimulatedDriver) Move(left, right int16) bool {
	return d.record("move", map[string]interface{}{"left": left, "right": right})
}

// SetMotor records a motor command
func (d *SimulatedDriver) SetMotor(port uint8, speed int16) bool {
	return d.record("motor", map[string]interface{}{"port": port, "speed": speed})
}

// SetServo records a servo command
func (d *SimulatedDriver) SetServo(port, slot, angle uint8) bool {
	return d.record("servo", map[string]interface{}{"port": port, "slot": slot, "angle": angle})
}

// SetLED records an onboard LED command
func (d *SimulatedDriver) SetLED(index, red, green, blue uint8) bool {
	return d.record("led", map[string]interface{}{
		"index": index, "red": red, "green": green, "blue": blue,
	})
}

// SetRGBLED records a port LED command
func (d *SimulatedDriver) SetRGBLED(port, slot, index, red, green, blue uint8) bool {
	return d.record("rgb_led", map[string]interface{}{
		"port": port, "slot": slot, "index": index, "red": red, "green": green, "blue": blue,
	})
}

// Buzz records a buzzer command
func (d *SimulatedDriver) Buzz(frequency, duration int16) bool {
	return d.record("buzzer", map[string]interface{}{"frequency": frequency, "duration": duration})
}

// ReadDistance never has a reading, so obstacle logic above stays deterministic
func (d *SimulatedDriver) ReadDistance(port, slot uint8) (float64, bool, error) {
	d.record("read_distance", map[string]interface{}{"port": port, "slot": slot})
	return 0, false, nil
}

// Info returns simulator information
func (d *SimulatedDriver) Info() *driver.DeviceInfo {
	return &driver.DeviceInfo{
		Model:          "mBot",
		Manufacturer:   "Makeblock",
		ConnectionType: model.ConnectionTypeSimulated,
		Simulated:      true,
		Capabilities: []driver.Capability{
			driver.CapabilityMove,
			driver.CapabilityMotor,
			driver.CapabilityServo,
			driver.CapabilityLED,
			driver.CapabilityBuzzer,
		},
	}
}

// GetHealthMetrics reports a healthy simulator
func (d *SimulatedDriver) GetHealthMetrics() *driver.HealthMetrics {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return &driver.HealthMetrics{
		HealthScore:     100,
		SuccessRate:     1,
		TotalOperations: int64(len(d.calls)),
	}
}

// Calls returns a copy of the recorded commands
func (d *SimulatedDriver) Calls() []Call {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]Call(nil), d.calls...)
}

// Close marks the simulator closed
func (d *SimulatedDriver) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.closed {
		d.closed = true
		d.logger.Info("Simulated device closed")
	}
	return nil
}

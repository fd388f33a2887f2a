// internal/service/robot_service.go
package service

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mbot-service/internal/config"
	"mbot-service/internal/model"
	"mbot-service/internal/utils"
	"mbot-service/pkg/driver"
)

// Motor ports driven by the wheels; zeroed on emergency stop
const (
	leftMotorPort  uint8 = 9
	rightMotorPort uint8 = 10
)

// onboardLEDs are the LED indices switched together by flash and off
var onboardLEDs = []uint8{0, 1}

// ErrShutdown is returned by operations attempted after Shutdown
var ErrShutdown = errors.New("robot service shut down")

// EventPublisher receives robot events
type EventPublisher interface {
	Publish(event model.RobotEvent)
}

// Color is an RGB triple
type Color struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

// Note is one buzzer tone: frequency in Hz, duration in milliseconds
type Note struct {
	Frequency int16 `json:"frequency"`
	Duration  int16 `json:"duration"`
}

// defaultSoundLibrary is used when no sound library is configured
var defaultSoundLibrary = [][]Note{
	{{523, 180}, {659, 180}, {784, 250}},
	{{784, 140}, {659, 140}, {523, 200}},
	{{659, 120}, {784, 120}, {988, 200}},
	{{392, 160}, {523, 220}},
}

// RobotStatus is a snapshot of the robot and its link
type RobotStatus struct {
	Device    *driver.DeviceInfo    `json:"device"`
	Health    *driver.HealthMetrics `json:"health"`
	Link      *driver.LinkStats     `json:"link,omitempty"`
	Simulated bool                  `json:"simulated"`
	Sensors   []string              `json:"sensors"`
	Shutdown  bool                  `json:"shutdown"`
}

type distanceReading struct {
	value float64
	at    time.Time
}

// RobotService turns high level robot actions into driver commands
type RobotService struct {
	device       driver.RobotDriver
	config       *config.RobotConfig
	events       EventPublisher
	logger       *utils.ServiceLogger
	soundLibrary [][]Note
	maxSpeed     int

	// sleep and now are replaced in tests
	sleep func(time.Duration)
	now   func() time.Time

	cacheMutex    sync.Mutex
	distanceCache map[string]distanceReading

	// commands hold cmdMutex for reading; Shutdown takes it for writing so
	// in-flight commands finish before the robot is parked
	cmdMutex     sync.RWMutex
	shutdownOnce sync.Once
	shutdown     atomic.Bool
	shutdownErr  error
}

// NewRobotService creates a new robot service instance. events may be nil.
func NewRobotService(device driver.RobotDriver, cfg *config.RobotConfig, events EventPublisher, logger *zap.Logger) *RobotService {
	maxSpeed := cfg.MaxSpeed
	if maxSpeed <= 0 || maxSpeed > 32767 {
		maxSpeed = 255
	}

	return &RobotService{
		device:        device,
		config:        cfg,
		events:        events,
		logger:        utils.NewServiceLogger(logger, "robot-service"),
		soundLibrary:  soundLibraryFromConfig(cfg.SoundLibrary),
		maxSpeed:      maxSpeed,
		sleep:         time.Sleep,
		now:           time.Now,
		distanceCache: make(map[string]distanceReading),
	}
}

func soundLibraryFromConfig(configured [][]config.NoteConfig) [][]Note {
	if len(configured) == 0 {
		return defaultSoundLibrary
	}
	library := make([][]Note, 0, len(configured))
	for _, sequence := range configured {
		notes := make([]Note, 0, len(sequence))
		for _, n := range sequence {
			notes = append(notes, Note{Frequency: int16(n.Frequency), Duration: int16(n.Duration)})
		}
		library = append(library, notes)
	}
	return library
}

func (rs *RobotService) clamp(speed int) int16 {
	if speed > rs.maxSpeed {
		return int16(rs.maxSpeed)
	}
	if speed < -rs.maxSpeed {
		return int16(-rs.maxSpeed)
	}
	return int16(speed)
}

func (rs *RobotService) publish(eventType model.EventType, severity string, data map[string]interface{}) {
	if rs.events == nil {
		return
	}
	event := model.NewRobotEvent(eventType, "robot-service", data)
	if severity != "" {
		event.Severity = severity
	}
	rs.events.Publish(event)
}

func (rs *RobotService) command(action string, delivered bool, data map[string]interface{}) bool {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["action"] = action
	data["delivered"] = delivered
	rs.publish(model.EventRobotCommand, "", data)
	return delivered
}

// closed reports whether commands must be refused
func (rs *RobotService) closed(action string) bool {
	if rs.shutdown.Load() {
		rs.logger.Debug("Command refused after shutdown", zap.String("action", action))
		return true
	}
	return false
}

// Drive sets both wheel speeds, clamped to the configured maximum
func (rs *RobotService) Drive(left, right int) bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("drive") {
		return false
	}
	l, r := rs.clamp(left), rs.clamp(right)
	return rs.command("drive", rs.device.Move(l, r), map[string]interface{}{
		"left":  l,
		"right": r,
	})
}

// Forward drives straight ahead
func (rs *RobotService) Forward(speed int) bool {
	return rs.Drive(speed, speed)
}

// Backward drives straight back
func (rs *RobotService) Backward(speed int) bool {
	return rs.Drive(-speed, -speed)
}

// TurnLeft spins in place to the left
func (rs *RobotService) TurnLeft(speed int) bool {
	return rs.Drive(-speed, speed)
}

// TurnRight spins in place to the right
func (rs *RobotService) TurnRight(speed int) bool {
	return rs.Drive(speed, -speed)
}

// Stop sends the zero move several times since a single frame may be lost.
// It reports whether at least one was delivered.
func (rs *RobotService) Stop() bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("stop") {
		return false
	}
	return rs.command("stop", rs.stopBurst(), nil)
}

func (rs *RobotService) stopBurst() bool {
	repeats := rs.config.StopRepeats
	if repeats <= 0 {
		repeats = 1
	}

	delivered := false
	for i := 0; i < repeats; i++ {
		if i > 0 && rs.config.StopInterval > 0 {
			rs.sleep(rs.config.StopInterval)
		}
		if rs.device.Move(0, 0) {
			delivered = true
		}
	}
	return delivered
}

// EmergencyStop stops the wheels, zeroes both motor ports and switches LEDs off
func (rs *RobotService) EmergencyStop() bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("emergency_stop") {
		return false
	}

	stopped := rs.stopBurst()
	leftOff := rs.device.SetMotor(leftMotorPort, 0)
	rightOff := rs.device.SetMotor(rightMotorPort, 0)
	ledsOff := rs.ledsOff()

	delivered := stopped || (leftOff && rightOff)
	rs.logger.Warn("Emergency stop",
		zap.Bool("wheels_stopped", stopped),
		zap.Bool("motors_zeroed", leftOff && rightOff),
		zap.Bool("leds_off", ledsOff),
	)
	rs.publish(model.EventEmergencyStop, "WARNING", map[string]interface{}{
		"delivered": delivered,
		"leds_off":  ledsOff,
	})
	return delivered
}

func (rs *RobotService) ledsOff() bool {
	ok := true
	for _, index := range onboardLEDs {
		if !rs.device.SetLED(index, 0, 0, 0) {
			ok = false
		}
	}
	return ok
}

// SetLED sets an onboard LED
func (rs *RobotService) SetLED(index uint8, color Color) bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("led") {
		return false
	}
	return rs.command("led", rs.device.SetLED(index, color.Red, color.Green, color.Blue), map[string]interface{}{
		"index": index,
		"color": color,
	})
}

// SetRGBLED sets an LED on an arbitrary port
func (rs *RobotService) SetRGBLED(port, slot, index uint8, color Color) bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("rgb_led") {
		return false
	}
	delivered := rs.device.SetRGBLED(port, slot, index, color.Red, color.Green, color.Blue)
	return rs.command("rgb_led", delivered, map[string]interface{}{
		"port":  port,
		"slot":  slot,
		"index": index,
		"color": color,
	})
}

// FlashLEDs lights both onboard LEDs for d, then switches them off
func (rs *RobotService) FlashLEDs(color Color, d time.Duration) bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("flash") {
		return false
	}

	lit := true
	for _, index := range onboardLEDs {
		if !rs.device.SetLED(index, color.Red, color.Green, color.Blue) {
			lit = false
		}
	}
	rs.sleep(d)
	off := rs.ledsOff()

	return rs.command("flash", lit && off, map[string]interface{}{
		"color":    color,
		"duration": d.String(),
	})
}

// Buzz plays a single tone
func (rs *RobotService) Buzz(frequency, duration int16) bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("buzzer") {
		return false
	}
	return rs.command("buzzer", rs.device.Buzz(frequency, duration), map[string]interface{}{
		"frequency": frequency,
		"duration":  duration,
	})
}

// PlaySoundSequence plays each note and waits for it to finish.
// It reports whether every note was delivered.
func (rs *RobotService) PlaySoundSequence(notes []Note) bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("sound") {
		return false
	}

	opLogger := utils.NewOperationLogger(rs.logger.Logger, "sound", time.Now().Format("150405.000"))
	opLogger.Start(zap.Int("notes", len(notes)))

	delivered := 0
	for _, note := range notes {
		if rs.shutdown.Load() {
			break
		}
		if rs.device.Buzz(note.Frequency, note.Duration) {
			delivered++
		}
		if note.Duration > 0 {
			rs.sleep(time.Duration(note.Duration) * time.Millisecond)
		}
	}

	ok := delivered == len(notes)
	opLogger.Finish(ok, zap.Int("delivered", delivered))
	return rs.command("sound", ok, map[string]interface{}{
		"notes": len(notes),
	})
}

// PlayRandomSound plays one sequence from the sound library
func (rs *RobotService) PlayRandomSound() bool {
	if len(rs.soundLibrary) == 0 {
		return false
	}
	return rs.PlaySoundSequence(rs.soundLibrary[rand.IntN(len(rs.soundLibrary))])
}

// SoundLibrary returns the configured sound sequences
func (rs *RobotService) SoundLibrary() [][]Note {
	return rs.soundLibrary
}

// SetMotor drives one motor port directly
func (rs *RobotService) SetMotor(port uint8, speed int) bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("motor") {
		return false
	}
	s := rs.clamp(speed)
	return rs.command("motor", rs.device.SetMotor(port, s), map[string]interface{}{
		"port":  port,
		"speed": s,
	})
}

// SetServo moves a servo to angle degrees
func (rs *RobotService) SetServo(port, slot, angle uint8) bool {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.closed("servo") {
		return false
	}
	return rs.command("servo", rs.device.SetServo(port, slot, angle), map[string]interface{}{
		"port":  port,
		"slot":  slot,
		"angle": angle,
	})
}

// HasSensor reports whether sensor is configured
func (rs *RobotService) HasSensor(sensor string) bool {
	_, ok := rs.config.Sensors[sensor]
	return ok
}

// ReadDistance reads a named ultrasonic sensor in centimetres. A reading newer
// than the freshness window is served from cache. Unknown sensors and timeouts
// yield no reading; an unsupported channel yields driver.ErrNotImplemented.
func (rs *RobotService) ReadDistance(sensor string) (float64, bool, error) {
	rs.cmdMutex.RLock()
	defer rs.cmdMutex.RUnlock()
	if rs.shutdown.Load() {
		return 0, false, ErrShutdown
	}

	address, ok := rs.config.Sensors[sensor]
	if !ok {
		return 0, false, nil
	}

	now := rs.now()
	rs.cacheMutex.Lock()
	cached, hit := rs.distanceCache[sensor]
	rs.cacheMutex.Unlock()
	if hit && now.Sub(cached.at) < rs.config.DistanceFreshness {
		return cached.value, true, nil
	}

	distance, ok, err := rs.device.ReadDistance(address.Port, address.Slot)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}

	rs.cacheMutex.Lock()
	rs.distanceCache[sensor] = distanceReading{value: distance, at: now}
	rs.cacheMutex.Unlock()

	rs.publish(model.EventRobotDistance, "", map[string]interface{}{
		"sensor":   sensor,
		"distance": distance,
	})
	return distance, true, nil
}

// Status returns a snapshot of the robot
func (rs *RobotService) Status() *RobotStatus {
	info := rs.device.Info()
	status := &RobotStatus{
		Device:    info,
		Health:    rs.device.GetHealthMetrics(),
		Simulated: info.Simulated,
		Shutdown:  rs.shutdown.Load(),
	}
	if reporter, ok := rs.device.(driver.StateReporter); ok {
		stats := reporter.LinkStats()
		status.Link = &stats
	}

	for name := range rs.config.Sensors {
		status.Sensors = append(status.Sensors, name)
	}
	sort.Strings(status.Sensors)
	return status
}

// IsSimulated reports whether commands go to the simulator
func (rs *RobotService) IsSimulated() bool {
	return rs.device.Info().Simulated
}

// Shutdown refuses new commands, waits for in-flight ones, stops the robot,
// switches the LEDs off and closes the device. Later calls return the first result.
func (rs *RobotService) Shutdown() error {
	rs.shutdownOnce.Do(func() {
		rs.logger.LogServiceStop("shutdown")
		rs.shutdown.Store(true)

		rs.cmdMutex.Lock()
		defer rs.cmdMutex.Unlock()

		stopped := rs.stopBurst()
		ledsOff := rs.ledsOff()

		rs.logger.Info("Robot parked before close",
			zap.Bool("stopped", stopped),
			zap.Bool("leds_off", ledsOff),
		)
		rs.shutdownErr = rs.device.Close()
	})
	return rs.shutdownErr
}

// pkg/driver/types.go
package driver

import (
	"time"

	"mbot-service/internal/link"
	"mbot-service/internal/model"
)

// ErrNotImplemented is returned by operations the active channel cannot perform
var ErrNotImplemented = link.ErrNotImplemented

// LinkStats is a snapshot of the underlying link counters
type LinkStats = link.Stats

// DeviceInfo contains basic device information
type DeviceInfo struct {
	Model          string                `json:"model"`
	Manufacturer   string                `json:"manufacturer"`
	ConnectionType model.ConnectionType  `json:"connection_type"`
	State          model.ConnectionState `json:"state,omitempty"`
	Simulated      bool                  `json:"simulated"`
	Capabilities   []Capability          `json:"capabilities"`
}

// Capability names one physical feature of the robot
type Capability string

const (
	CapabilityMove     Capability = "MOVE"
	CapabilityMotor    Capability = "MOTOR"
	CapabilityServo    Capability = "SERVO"
	CapabilityLED      Capability = "LED"
	CapabilityBuzzer   Capability = "BUZZER"
	CapabilityDistance Capability = "DISTANCE"
)

// HealthMetrics contains device health information
type HealthMetrics struct {
	HealthScore     int        `json:"health_score"` // 0-100
	SuccessRate     float64    `json:"success_rate"` // 0.0-1.0
	ErrorCount      int64      `json:"error_count"`
	TotalOperations int64      `json:"total_operations"`
	LastErrorTime   *time.Time `json:"last_error_time,omitempty"`
	LastSuccessTime *time.Time `json:"last_success_time,omitempty"`
}

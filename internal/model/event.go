// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventLinkStateChanged EventType = "link.state_changed"
	EventRobotCommand     EventType = "robot.command"
	EventRobotDistance    EventType = "robot.distance"
	EventEmergencyStop    EventType = "robot.emergency_stop"
)

// RobotEvent represents an event in the system
type RobotEvent struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Severity  string                 `json:"severity"` // INFO, WARNING, ERROR
}

// NewRobotEvent creates an INFO event stamped with a fresh id
func NewRobotEvent(eventType EventType, source string, data map[string]interface{}) RobotEvent {
	return RobotEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
		Severity:  "INFO",
	}
}

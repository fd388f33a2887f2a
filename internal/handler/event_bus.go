// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mbot-service/internal/link"
	"mbot-service/internal/model"
)

// allEvents is the subscription key receiving every event type
const allEvents model.EventType = "*"

// EventBus manages event distribution
type EventBus struct {
	subscribers map[model.EventType][]chan model.RobotEvent
	events      chan model.RobotEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[model.EventType][]chan model.RobotEvent),
		events:      make(chan model.RobotEvent, 1000),
		logger:      logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes events until ctx is done
func (eb *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// Publish publishes an event; it never blocks
func (eb *EventBus) Publish(event model.RobotEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe subscribes to events of a specific type
func (eb *EventBus) Subscribe(eventType model.EventType) <-chan model.RobotEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.RobotEvent, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// SubscribeAll subscribes to every event type
func (eb *EventBus) SubscribeAll() <-chan model.RobotEvent {
	return eb.Subscribe(allEvents)
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.RobotEvent) {
	eb.mutex.RLock()
	subscribers := append([]chan model.RobotEvent(nil), eb.subscribers[event.Type]...)
	subscribers = append(subscribers, eb.subscribers[allEvents]...)
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// LinkStateObserver publishes link state transitions on the bus
func (eb *EventBus) LinkStateObserver() link.StateObserver {
	return func(prev, next model.ConnectionState, connectionType model.ConnectionType, sessionID uuid.UUID) {
		event := model.NewRobotEvent(model.EventLinkStateChanged, "link", map[string]interface{}{
			"from":            prev,
			"to":              next,
			"connection_type": connectionType,
			"session_id":      sessionID.String(),
		})
		if next == model.StateDisconnected {
			event.Severity = "WARNING"
		}
		eb.Publish(event)
	}
}

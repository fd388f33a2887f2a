// internal/handler/event_bus_test.go
package handler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mbot-service/internal/model"
)

func receive(t *testing.T, ch <-chan model.RobotEvent) model.RobotEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		require.FailNow(t, "no event received")
		return model.RobotEvent{}
	}
}

func TestEventBus_Distribution(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Start(ctx)

	distance := bus.Subscribe(model.EventRobotDistance)
	all := bus.SubscribeAll()

	bus.Publish(model.NewRobotEvent(model.EventRobotCommand, "robot", nil))
	bus.Publish(model.NewRobotEvent(model.EventRobotDistance, "robot", map[string]interface{}{"distance": 12.0}))

	assert.Equal(t, model.EventRobotCommand, receive(t, all).Type)
	assert.Equal(t, model.EventRobotDistance, receive(t, all).Type)
	assert.Equal(t, 12.0, receive(t, distance).Data["distance"])

	select {
	case event := <-distance:
		t.Fatalf("unexpected event %s", event.Type)
	default:
	}
}

func TestEventBus_PublishNeverBlocks(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1500; i++ {
			bus.Publish(model.NewRobotEvent(model.EventRobotCommand, "robot", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full bus")
	}
}

func TestEventBus_LinkStateObserver(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Start(ctx)

	events := bus.Subscribe(model.EventLinkStateChanged)
	observe := bus.LinkStateObserver()
	session := uuid.New()

	observe(model.StateConnectingWired, model.StateConnectedWired, model.ConnectionTypeSerial, session)
	observe(model.StateClosing, model.StateDisconnected, model.ConnectionTypeSerial, session)

	connected := receive(t, events)
	assert.Equal(t, "INFO", connected.Severity)
	assert.Equal(t, model.StateConnectedWired, connected.Data["to"])
	assert.Equal(t, session.String(), connected.Data["session_id"])

	disconnected := receive(t, events)
	assert.Equal(t, "WARNING", disconnected.Severity)
}

// internal/handler/websocket_handler_test.go
package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mbot-service/internal/model"
	"mbot-service/internal/service"
)

type wsFixture struct {
	server *httptest.Server
	driver *stubDriver
	bus    *EventBus
	ws     *WebSocketHandler
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	d := newStubDriver()
	bus := NewEventBus(logger)
	rs := service.NewRobotService(d, testRobotConfig(), bus, logger)
	ws := NewWebSocketHandler(rs, bus, []string{"http://panel.local"}, logger)

	go bus.Start(ctx)
	go ws.Run(ctx)

	router := gin.New()
	ws.RegisterRoutes(router.Group("/ws"))
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &wsFixture{server: server, driver: d, bus: bus, ws: ws}
}

func (f *wsFixture) dial(t *testing.T, path string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var message WebSocketMessage
	require.NoError(t, conn.ReadJSON(&message))
	return message
}

func TestWebSocket_RobotCommand(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/robot", nil)

	assert.Equal(t, "initial_status", readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type:      "robot_command",
		RequestID: "r1",
		Data:      map[string]interface{}{"command": "drive", "left": 80, "right": 90},
	}))

	response := readMessage(t, conn)
	assert.Equal(t, "command_response", response.Type)
	assert.Equal(t, "r1", response.RequestID)
	data := response.Data.(map[string]interface{})
	assert.Equal(t, true, data["success"])
	assert.Equal(t, [2]int16{80, 90}, f.driver.lastMove())
}

func TestWebSocket_CommandsKeepOrder(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/robot", nil)
	readMessage(t, conn)

	for i := 1; i <= 5; i++ {
		require.NoError(t, conn.WriteJSON(WebSocketMessage{
			Type: "robot_command",
			Data: map[string]interface{}{"command": "drive", "left": i, "right": i},
		}))
	}
	for i := 0; i < 5; i++ {
		readMessage(t, conn)
	}

	f.driver.mu.Lock()
	defer f.driver.mu.Unlock()
	require.Len(t, f.driver.moves, 5)
	for i, move := range f.driver.moves {
		assert.Equal(t, int16(i+1), move[0])
	}
}

func TestWebSocket_UnknownCommand(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/robot", nil)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type: "robot_command",
		Data: map[string]interface{}{"command": "dance"},
	}))
	assert.Equal(t, "error", readMessage(t, conn).Type)
}

func TestWebSocket_CommandArgumentsValidated(t *testing.T) {
	tests := []struct {
		name      string
		data      map[string]interface{}
		wantField string
	}{
		{name: "frequency overflows int16", data: map[string]interface{}{"command": "buzzer", "frequency": 40000, "duration": 100}},
		{name: "negative duration", data: map[string]interface{}{"command": "buzzer", "frequency": 440, "duration": -5}, wantField: "Duration"},
		{name: "color overflows byte", data: map[string]interface{}{"command": "led", "index": 1, "red": 256}},
		{name: "negative color", data: map[string]interface{}{"command": "led", "index": 1, "blue": -1}},
		{name: "drive without right", data: map[string]interface{}{"command": "drive", "left": 50}, wantField: "Right"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWSFixture(t)
			conn := f.dial(t, "/ws/robot", nil)
			readMessage(t, conn)

			require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "robot_command", RequestID: "bad", Data: tt.data}))

			response := readMessage(t, conn)
			assert.Equal(t, "error", response.Type)
			assert.Equal(t, "bad", response.RequestID)
			data := response.Data.(map[string]interface{})
			if tt.wantField != "" {
				assert.Equal(t, "VALIDATION_ERROR", data["code"])
				assert.Contains(t, data["validation_errors"], tt.wantField)
			}

			f.driver.mu.Lock()
			defer f.driver.mu.Unlock()
			assert.Empty(t, f.driver.buzzes)
			assert.Empty(t, f.driver.leds)
			assert.Empty(t, f.driver.moves)
		})
	}
}

func TestWebSocket_ValidLEDAndBuzzerCommands(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/robot", nil)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type: "robot_command",
		Data: map[string]interface{}{"command": "buzzer", "frequency": 440, "duration": 200},
	}))
	assert.Equal(t, "command_response", readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type: "robot_command",
		Data: map[string]interface{}{"command": "led", "index": 2, "red": 255, "port": 7, "slot": 2},
	}))
	assert.Equal(t, "command_response", readMessage(t, conn).Type)

	f.driver.mu.Lock()
	defer f.driver.mu.Unlock()
	assert.Equal(t, [][2]int16{{440, 200}}, f.driver.buzzes)
	assert.Equal(t, 1, f.driver.rgbLEDs)
}

func TestWebSocket_EventStream(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/events", nil)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type: "subscribe",
		Data: map[string]interface{}{"topic": string(model.EventEmergencyStop)},
	}))
	assert.Equal(t, "subscription_confirmed", readMessage(t, conn).Type)

	f.bus.Publish(model.NewRobotEvent(model.EventRobotCommand, "robot", nil))
	f.bus.Publish(model.NewRobotEvent(model.EventEmergencyStop, "robot", nil))

	message := readMessage(t, conn)
	assert.Equal(t, "robot_event", message.Type)
	data := message.Data.(map[string]interface{})
	assert.Equal(t, string(model.EventEmergencyStop), data["type"], "unsubscribed topics are filtered")
}

func TestWebSocket_EventChannelRejectsCommands(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/events", nil)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{
		Type: "robot_command",
		Data: map[string]interface{}{"command": "stop"},
	}))
	assert.Equal(t, "error", readMessage(t, conn).Type)
}

func TestWebSocket_Ping(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/events", nil)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping", RequestID: "p"}))
	pong := readMessage(t, conn)
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, "p", pong.RequestID)
}

func TestWebSocket_OriginCheck(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/events"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.local"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	f.dial(t, "/ws/events", http.Header{"Origin": []string{"http://panel.local"}})
}

func TestWebSocket_ConnectionStats(t *testing.T) {
	f := newWSFixture(t)
	f.dial(t, "/ws/events", nil)
	conn := f.dial(t, "/ws/robot", nil)
	readMessage(t, conn)

	assert.Eventually(t, func() bool {
		return f.ws.GetConnectionStats().TotalConnections == 2
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocket_StatsRoute(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/robot", nil)
	readMessage(t, conn)

	resp, err := http.Get(f.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

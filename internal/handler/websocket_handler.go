// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mbot-service/internal/service"
	"mbot-service/internal/utils"
	"mbot-service/pkg/driver"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler streams robot events and accepts robot commands over WebSocket
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	connections  *ConnectionManager
	robotService *service.RobotService
	eventBus     *EventBus
	logger       *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	robotService *service.RobotService,
	eventBus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return &WebSocketHandler{
		upgrader:     upgrader,
		connections:  NewConnectionManager(),
		robotService: robotService,
		eventBus:     eventBus,
		logger:       utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// originChecker accepts requests without an Origin header and origins on the list
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEventConnection)
	router.GET("/robot", h.HandleRobotConnection)
	router.GET("/stats", h.GetStats)
}

// Run forwards bus events to event clients until ctx is done, then
// disconnects every client
func (h *WebSocketHandler) Run(ctx context.Context) {
	events := h.eventBus.SubscribeAll()
	defer h.connections.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			message, err := json.Marshal(&WebSocketMessage{
				Type:      "robot_event",
				Data:      event,
				Timestamp: event.Timestamp,
			})
			if err != nil {
				h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
				continue
			}

			topic := string(event.Type)
			dropped := h.connections.Broadcast(message, func(c *Client) bool {
				return c.Type == clientTypeEvents && c.Wants(topic)
			})
			for _, clientID := range dropped {
				h.logger.Warn("Client send channel full during broadcast",
					zap.String("client_id", clientID),
				)
			}
		}
	}
}

// HandleEventConnection handles event stream WebSocket connections
// @Summary Robot event stream
// @Description Streams link state changes, commands, distance readings and emergency stops
// @Tags WebSocket
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	h.accept(c, clientTypeEvents)
}

// HandleRobotConnection handles robot command WebSocket connections
// @Summary Robot command channel
// @Description Accepts robot_command messages and answers with command_response
// @Tags WebSocket
// @Router /ws/robot [get]
func (h *WebSocketHandler) HandleRobotConnection(c *gin.Context) {
	h.accept(c, clientTypeRobot)
}

func (h *WebSocketHandler) accept(c *gin.Context, clientType string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        clientType,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("type", clientType),
		zap.String("remote_addr", client.RemoteAddr),
	)

	if clientType == clientTypeRobot {
		h.sendMessage(client, &WebSocketMessage{
			Type:      "initial_status",
			Data:      h.robotService.Status(),
			Timestamp: time.Now(),
		})
	}

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "", "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe":
		if topic, ok := topicOf(message); ok {
			client.Subscribe(topic)
			h.sendMessage(client, &WebSocketMessage{
				Type:      "subscription_confirmed",
				Data:      map[string]interface{}{"topic": topic},
				Timestamp: time.Now(),
				RequestID: message.RequestID,
			})
		}
	case "unsubscribe":
		if topic, ok := topicOf(message); ok {
			client.Unsubscribe(topic)
		}
	case "robot_command":
		if client.Type != clientTypeRobot {
			h.sendError(client, message.RequestID, "robot_command only available on /ws/robot")
			return
		}
		// commands run in the read loop so one client's commands keep their order
		h.executeRobotCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, message.RequestID, fmt.Sprintf("unknown message type: %s", message.Type))
	}
}

func topicOf(message *WebSocketMessage) (string, bool) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		return "", false
	}
	topic, ok := data["topic"].(string)
	return topic, ok && topic != ""
}

// bindCommand decodes command arguments into req and validates them with the
// same rules as the HTTP routes. On failure the error is sent to the client.
func (h *WebSocketHandler) bindCommand(client *Client, requestID string, data map[string]interface{}, req interface{}) bool {
	body, err := json.Marshal(data)
	if err == nil {
		err = binding.JSON.BindBody(body, req)
	}
	if err == nil {
		return true
	}

	if fields, ok := validationFields(err); ok {
		h.sendMessage(client, &WebSocketMessage{
			Type: "error",
			Data: map[string]interface{}{
				"error":             "validation failed",
				"code":              "VALIDATION_ERROR",
				"validation_errors": fields,
			},
			Timestamp: time.Now(),
			RequestID: requestID,
		})
		return false
	}
	h.sendError(client, requestID, fmt.Sprintf("invalid command arguments: %v", err))
	return false
}

// executeRobotCommand runs one robot_command message
func (h *WebSocketHandler) executeRobotCommand(client *Client, message *WebSocketMessage) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, message.RequestID, "invalid command data")
		return
	}

	command, ok := data["command"].(string)
	if !ok {
		h.sendError(client, message.RequestID, "command is required")
		return
	}

	var result interface{}
	var err error
	delivered := true

	switch command {
	case "drive":
		var req MoveRequest
		if !h.bindCommand(client, message.RequestID, data, &req) {
			return
		}
		delivered = h.robotService.Drive(*req.Left, *req.Right)
	case "stop":
		delivered = h.robotService.Stop()
	case "emergency_stop":
		delivered = h.robotService.EmergencyStop()
	case "led":
		var req LEDRequest
		if !h.bindCommand(client, message.RequestID, data, &req) {
			return
		}
		color := service.Color{Red: req.Red, Green: req.Green, Blue: req.Blue}
		if req.Port != nil {
			delivered = h.robotService.SetRGBLED(*req.Port, req.Slot, req.Index, color)
		} else {
			delivered = h.robotService.SetLED(req.Index, color)
		}
	case "buzzer":
		var req BuzzerRequest
		if !h.bindCommand(client, message.RequestID, data, &req) {
			return
		}
		delivered = h.robotService.Buzz(req.Frequency, req.Duration)
	case "distance":
		sensor, _ := data["sensor"].(string)
		if sensor == "" {
			sensor = "front"
		}
		var distance float64
		var reading bool
		distance, reading, err = h.robotService.ReadDistance(sensor)
		result = distanceResult(sensor, distance, reading)
	case "status":
		result = h.robotService.Status()
	default:
		h.sendError(client, message.RequestID, fmt.Sprintf("unknown command: %s", command))
		return
	}

	response := map[string]interface{}{
		"command":   command,
		"success":   delivered && err == nil,
		"delivered": delivered,
		"result":    result,
	}
	if err != nil {
		response["error"] = err.Error()
		if errors.Is(err, driver.ErrNotImplemented) {
			response["not_implemented"] = true
		}
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "command_response",
		Data:      response,
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	dropped := h.connections.Broadcast(messageBytes, func(c *Client) bool { return c == client })
	if len(dropped) > 0 {
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, requestID, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

// GetStats reports connected WebSocket clients
// @Summary WebSocket connection statistics
// @Tags WebSocket
// @Produce json
// @Success 200 {object} utils.APIResponse{data=ConnectionStats} "Connection statistics retrieved"
// @Router /ws/stats [get]
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Connection statistics retrieved", h.GetConnectionStats())
}

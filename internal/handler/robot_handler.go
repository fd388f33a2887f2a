// internal/handler/robot_handler.go
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"mbot-service/internal/service"
	"mbot-service/internal/utils"
	"mbot-service/pkg/driver"
)

// maxFlashDuration bounds how long a flash request may hold the LEDs
const maxFlashDuration = 5 * time.Second

// RobotHandler handles robot command HTTP requests
type RobotHandler struct {
	robotService *service.RobotService
	logger       *utils.ServiceLogger
}

// NewRobotHandler creates a new robot handler
func NewRobotHandler(robotService *service.RobotService, logger *zap.Logger) *RobotHandler {
	return &RobotHandler{
		robotService: robotService,
		logger:       utils.NewServiceLogger(logger, "robot-handler"),
	}
}

// RegisterRoutes registers robot routes
func (h *RobotHandler) RegisterRoutes(router *gin.RouterGroup) {
	robot := router.Group("/robot")
	{
		robot.GET("/status", h.GetStatus)
		robot.GET("/distance", h.GetDistance)
		robot.GET("/sounds", h.GetSounds)

		robot.POST("/move", h.Move)
		robot.POST("/drive", h.Drive)
		robot.POST("/stop", h.Stop)
		robot.POST("/emergency-stop", h.EmergencyStop)
		robot.POST("/led", h.SetLED)
		robot.POST("/led/flash", h.FlashLEDs)
		robot.POST("/buzzer", h.Buzz)
		robot.POST("/sound", h.PlaySound)
		robot.POST("/motor", h.SetMotor)
		robot.POST("/servo", h.SetServo)
	}
}

// respond maps a delivery outcome onto the API response
func (h *RobotHandler) respond(c *gin.Context, delivered bool, message string, data interface{}) {
	if !delivered {
		if h.robotService.Status().Shutdown {
			utils.ErrorResponse(c, http.StatusConflict, "Robot link unavailable", service.ErrShutdown)
			return
		}
		utils.ErrorResponse(c, http.StatusBadGateway, "Command not delivered", nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, message, data)
}

// GetStatus returns robot and link status
// @Summary Robot status
// @Tags Robot
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.RobotStatus} "Robot status retrieved"
// @Router /robot/status [get]
func (h *RobotHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Robot status retrieved", h.robotService.Status())
}

// Move sets both wheel speeds
// @Summary Move
// @Description Sets left and right wheel speeds, clamped to the configured maximum
// @Tags Robot
// @Accept json
// @Produce json
// @Param request body MoveRequest true "Wheel speeds"
// @Success 200 {object} utils.APIResponse "Command delivered"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/move [post]
func (h *RobotHandler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	delivered := h.robotService.Drive(*req.Left, *req.Right)
	h.respond(c, delivered, "Move command delivered", req)
}

// Drive runs one of the drive helpers
// @Summary Drive
// @Tags Robot
// @Accept json
// @Produce json
// @Param request body DriveRequest true "Direction and speed"
// @Success 200 {object} utils.APIResponse "Command delivered"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/drive [post]
func (h *RobotHandler) Drive(c *gin.Context) {
	var req DriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var delivered bool
	switch req.Direction {
	case "forward":
		delivered = h.robotService.Forward(req.Speed)
	case "backward":
		delivered = h.robotService.Backward(req.Speed)
	case "left":
		delivered = h.robotService.TurnLeft(req.Speed)
	case "right":
		delivered = h.robotService.TurnRight(req.Speed)
	}
	h.respond(c, delivered, "Drive command delivered", req)
}

// Stop stops the wheels
// @Summary Stop
// @Description Sends the zero move several times
// @Tags Robot
// @Produce json
// @Success 200 {object} utils.APIResponse "Robot stopped"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/stop [post]
func (h *RobotHandler) Stop(c *gin.Context) {
	h.respond(c, h.robotService.Stop(), "Robot stopped", nil)
}

// EmergencyStop stops wheels and motors and switches the LEDs off
// @Summary Emergency stop
// @Tags Robot
// @Produce json
// @Success 200 {object} utils.APIResponse "Robot stopped"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/emergency-stop [post]
func (h *RobotHandler) EmergencyStop(c *gin.Context) {
	h.logger.Warn("Emergency stop requested", zap.String("client_ip", c.ClientIP()))
	h.respond(c, h.robotService.EmergencyStop(), "Emergency stop delivered", nil)
}

// SetLED sets an onboard LED, or an LED on a port when port is given
// @Summary Set LED
// @Tags Robot
// @Accept json
// @Produce json
// @Param request body LEDRequest true "LED and color"
// @Success 200 {object} utils.APIResponse "Command delivered"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/led [post]
func (h *RobotHandler) SetLED(c *gin.Context) {
	var req LEDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	color := service.Color{Red: req.Red, Green: req.Green, Blue: req.Blue}
	var delivered bool
	if req.Port != nil {
		delivered = h.robotService.SetRGBLED(*req.Port, req.Slot, req.Index, color)
	} else {
		delivered = h.robotService.SetLED(req.Index, color)
	}
	h.respond(c, delivered, "LED command delivered", req)
}

// FlashLEDs flashes both onboard LEDs
// @Summary Flash LEDs
// @Tags Robot
// @Accept json
// @Produce json
// @Param request body FlashRequest true "Color and duration"
// @Success 200 {object} utils.APIResponse "LEDs flashed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/led/flash [post]
func (h *RobotHandler) FlashLEDs(c *gin.Context) {
	req := FlashRequest{DurationMS: 300}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	d := min(time.Duration(req.DurationMS)*time.Millisecond, maxFlashDuration)
	color := service.Color{Red: req.Red, Green: req.Green, Blue: req.Blue}
	h.respond(c, h.robotService.FlashLEDs(color, d), "LEDs flashed", req)
}

// Buzz plays one tone
// @Summary Buzzer
// @Tags Robot
// @Accept json
// @Produce json
// @Param request body service.Note true "Tone"
// @Success 200 {object} utils.APIResponse "Command delivered"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/buzzer [post]
func (h *RobotHandler) Buzz(c *gin.Context) {
	var req BuzzerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	h.respond(c, h.robotService.Buzz(req.Frequency, req.Duration), "Buzzer command delivered", req)
}

// PlaySound plays the given notes, or a random library sequence when none are given
// @Summary Play sound
// @Tags Robot
// @Accept json
// @Produce json
// @Param request body SoundRequest false "Notes"
// @Success 200 {object} utils.APIResponse "Sound played"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/sound [post]
func (h *RobotHandler) PlaySound(c *gin.Context) {
	var req SoundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	if len(req.Notes) == 0 {
		h.respond(c, h.robotService.PlayRandomSound(), "Sound played", nil)
		return
	}
	h.respond(c, h.robotService.PlaySoundSequence(req.Notes), "Sound played", gin.H{"notes": len(req.Notes)})
}

// GetSounds lists the sound library
// @Summary Sound library
// @Tags Robot
// @Produce json
// @Success 200 {object} utils.APIResponse "Sound library retrieved"
// @Router /robot/sounds [get]
func (h *RobotHandler) GetSounds(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Sound library retrieved", gin.H{
		"sequences": h.robotService.SoundLibrary(),
	})
}

// SetMotor drives one motor port
// @Summary Motor
// @Tags Robot
// @Accept json
// @Produce json
// @Param request body MotorRequest true "Port and speed"
// @Success 200 {object} utils.APIResponse "Command delivered"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/motor [post]
func (h *RobotHandler) SetMotor(c *gin.Context) {
	var req MotorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	h.respond(c, h.robotService.SetMotor(req.Port, *req.Speed), "Motor command delivered", req)
}

// SetServo moves a servo
// @Summary Servo
// @Tags Robot
// @Accept json
// @Produce json
// @Param request body ServoRequest true "Port, slot and angle"
// @Success 200 {object} utils.APIResponse "Command delivered"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 502 {object} utils.APIResponse "Command not delivered"
// @Router /robot/servo [post]
func (h *RobotHandler) SetServo(c *gin.Context) {
	var req ServoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	h.respond(c, h.robotService.SetServo(req.Port, req.Slot, *req.Angle), "Servo command delivered", req)
}

// GetDistance reads an ultrasonic sensor
// @Summary Distance
// @Description Reads a configured ultrasonic sensor; reading is false when nothing arrived in time
// @Tags Robot
// @Produce json
// @Param sensor query string false "Sensor name" default(front)
// @Success 200 {object} utils.APIResponse{data=object{sensor=string,distance_cm=number,reading=bool}} "Distance read"
// @Failure 404 {object} utils.APIResponse "Unknown sensor"
// @Failure 501 {object} utils.APIResponse "Not available over this link"
// @Router /robot/distance [get]
func (h *RobotHandler) GetDistance(c *gin.Context) {
	sensor := c.DefaultQuery("sensor", "front")
	if !h.robotService.HasSensor(sensor) {
		utils.ErrorResponse(c, http.StatusNotFound, "Unknown sensor", nil)
		return
	}

	distance, reading, err := h.robotService.ReadDistance(sensor)
	switch {
	case errors.Is(err, driver.ErrNotImplemented):
		utils.ErrorResponse(c, http.StatusNotImplemented, "Distance not available over this link", err)
		return
	case errors.Is(err, service.ErrShutdown):
		utils.ErrorResponse(c, http.StatusConflict, "Robot link unavailable", err)
		return
	case err != nil:
		h.logger.Error("Distance read failed", zap.String("sensor", sensor), zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Distance read failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Distance read", distanceResult(sensor, distance, reading))
}

// bindError reports field validation failures per field, anything else as a bad body
func bindError(c *gin.Context, err error) {
	fields, ok := validationFields(err)
	if !ok {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	utils.ValidationErrorResponse(c, fields)
}

// validationFields maps each failed field to its rule, e.g. "Frequency": "min=0"
func validationFields(err error) (map[string]string, bool) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, false
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		if fe.Param() != "" {
			fields[fe.Field()] = fe.Tag() + "=" + fe.Param()
		} else {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields, true
}

func distanceResult(sensor string, distance float64, reading bool) gin.H {
	result := gin.H{
		"sensor":  sensor,
		"reading": reading,
	}
	if reading {
		result["distance_cm"] = distance
	}
	return result
}

// MoveRequest sets both wheel speeds
type MoveRequest struct {
	Left  *int `json:"left" binding:"required"`
	Right *int `json:"right" binding:"required"`
}

// DriveRequest selects a drive helper
type DriveRequest struct {
	Direction string `json:"direction" binding:"required,oneof=forward backward left right"`
	Speed     int    `json:"speed" binding:"required,min=1"`
}

// LEDRequest sets one LED; Port and Slot address an external LED module
type LEDRequest struct {
	Index uint8  `json:"index"`
	Red   uint8  `json:"red"`
	Green uint8  `json:"green"`
	Blue  uint8  `json:"blue"`
	Port  *uint8 `json:"port,omitempty"`
	Slot  uint8  `json:"slot,omitempty"`
}

// FlashRequest flashes both onboard LEDs
type FlashRequest struct {
	Red        uint8 `json:"red"`
	Green      uint8 `json:"green"`
	Blue       uint8 `json:"blue"`
	DurationMS int   `json:"duration_ms" binding:"min=0"`
}

// BuzzerRequest plays one tone; zero frequency is silence
type BuzzerRequest struct {
	Frequency int16 `json:"frequency" binding:"min=0"`
	Duration  int16 `json:"duration" binding:"min=0"`
}

// SoundRequest plays a note sequence
type SoundRequest struct {
	Notes []service.Note `json:"notes" binding:"max=64"`
}

// MotorRequest drives one motor port
type MotorRequest struct {
	Port  uint8 `json:"port" binding:"required"`
	Speed *int  `json:"speed" binding:"required"`
}

// ServoRequest moves a servo
type ServoRequest struct {
	Port  uint8  `json:"port" binding:"required"`
	Slot  uint8  `json:"slot" binding:"required"`
	Angle *uint8 `json:"angle" binding:"required,max=180"`
}

// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mbot-service/internal/config"
	"mbot-service/internal/service"
	"mbot-service/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	robotService *service.RobotService
	config       *config.Config
	logger       *utils.ServiceLogger
	startTime    time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(robotService *service.RobotService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		robotService: robotService,
		config:       config,
		logger:       utils.NewServiceLogger(logger, "health-handler"),
		startTime:    time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including the robot link
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy or degraded"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	status := h.robotService.Status()
	robotCheck := CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"connection_type": status.Device.ConnectionType,
			"health_score":    status.Health.HealthScore,
		},
	}

	switch {
	case status.Shutdown:
		health.Status = "unhealthy"
		robotCheck.Status = "unhealthy"
		robotCheck.Message = "Robot service shut down"
	case status.Simulated:
		health.Status = "degraded"
		robotCheck.Status = "degraded"
		robotCheck.Message = "No robot linked, commands go to the simulator"
	case status.Device.State != "" && !status.Device.State.IsConnected():
		health.Status = "unhealthy"
		robotCheck.Status = "unhealthy"
		robotCheck.Message = "Robot link is " + string(status.Device.State)
	default:
		robotCheck.Message = "Robot link OK"
	}
	if status.Link != nil {
		robotCheck.Data["state"] = status.Link.State
		robotCheck.Data["frames_sent"] = status.Link.FramesSent
		robotCheck.Data["send_failures"] = status.Link.SendFailures
	}
	health.Checks["robot"] = robotCheck

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Check if service is ready to accept robot commands
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.robotService.Status().Shutdown {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "robot service shut down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Description Check if service is alive
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

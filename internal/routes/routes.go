// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"mbot-service/internal/config"
	"mbot-service/internal/handler"
	"mbot-service/internal/metrics"
	"mbot-service/internal/middleware"
	"mbot-service/internal/service"
	"mbot-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config           *config.Config
	logger           *zap.Logger
	registry         *prometheus.Registry
	robotService     *service.RobotService
	discoveryService *service.DiscoveryService
	wsHandler        *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	registry *prometheus.Registry,
	robotService *service.RobotService,
	discoveryService *service.DiscoveryService,
	wsHandler *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:           config,
		logger:           logger,
		registry:         registry,
		robotService:     robotService,
		discoveryService: discoveryService,
		wsHandler:        wsHandler,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case gin.Mode() == gin.TestMode:
	case r.config.IsProduction() || !r.config.IsDebugEnabled():
		gin.SetMode(gin.ReleaseMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")

	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(serviceLogger, metrics.NewHTTPMetrics(r.registry)))
	router.Use(middleware.CORSMiddleware(&r.config.Security))
	router.Use(middleware.RateLimitMiddleware(&r.config.Security, serviceLogger))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.robotService, r.config, r.logger)
	robotHandler := handler.NewRobotHandler(r.robotService, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.discoveryService, r.logger)

	// Health and metrics routes sit outside the API prefix
	healthHandler.RegisterRoutes(router.Group(""))
	router.GET("/metrics", gin.WrapH(metrics.Handler(r.registry)))

	apiV1 := router.Group("/api/v1")
	robotHandler.RegisterRoutes(apiV1)
	r.addDiscoveryRoutes(apiV1, discoveryHandler)

	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDiscoveryRoutes sets up device discovery routes
func (r *Router) addDiscoveryRoutes(api *gin.RouterGroup, handler *handler.DiscoveryHandler) {
	discovery := api.Group("/discovery")
	{
		discovery.GET("/scan", handler.ScanDevices)
		discovery.GET("/scanners", handler.GetScanners)
	}
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}

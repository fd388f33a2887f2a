// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mbot-service/internal/config"
	"mbot-service/internal/discovery/serial"
	"mbot-service/internal/discovery/usb"
	"mbot-service/internal/driver"
	"mbot-service/internal/handler"
	"mbot-service/internal/link"
	"mbot-service/internal/metrics"
	"mbot-service/internal/protocol"
	"mbot-service/internal/routes"
	"mbot-service/internal/service"
	"mbot-service/internal/utils"
)

// shutdownTimeout bounds HTTP drain on shutdown
const shutdownTimeout = 15 * time.Second

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry

	ctx    context.Context
	cancel context.CancelFunc

	eventBus  *handler.EventBus
	wsHandler *handler.WebSocketHandler

	// Services
	robotService     *service.RobotService
	discoveryService *service.DiscoveryService
}

// @title mBot Service API
// @version 1.0.0
// @description Drives a Makeblock mBot over USB serial or Bluetooth LE

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /api/v1
func main() {
	configPath := pflag.StringP("config", "c", "", "path to the configuration file")
	pflag.Parse()

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "mbot-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		config:   cfg,
		logger:   logger,
		registry: metrics.NewRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		eventBus: handler.NewEventBus(logger),
	}

	if err := app.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()
	return app, nil
}

// initializeServices links the robot and creates service instances
func (app *Application) initializeServices() error {
	// the bus must run before linking so the first state changes are delivered
	go app.eventBus.Start(app.ctx)

	device, err := driver.NewDevice(
		app.ctx,
		&app.config.Robot,
		protocol.NewFactory(&app.config.Robot, app.logger),
		app.logger,
		link.WithMetrics(metrics.NewLinkMetrics(app.registry)),
		link.WithStateObserver(app.eventBus.LinkStateObserver()),
	)
	if err != nil {
		return fmt.Errorf("failed to link robot: %w", err)
	}

	app.robotService = service.NewRobotService(device, &app.config.Robot, app.eventBus, app.logger)

	app.discoveryService = service.NewDiscoveryService(app.logger,
		serial.NewScanner(app.config.Robot.Serial.PortKeywords, app.logger),
		usb.NewScanner(app.logger, 0),
	)

	app.logger.Info("Services initialized successfully",
		zap.Bool("simulated", app.robotService.IsSimulated()),
		zap.Strings("scanners", app.discoveryService.AvailableScanners()),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.wsHandler = handler.NewWebSocketHandler(
		app.robotService,
		app.eventBus,
		app.config.Security.AllowedOrigins,
		app.logger,
	)

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.registry,
		app.robotService,
		app.discoveryService,
		app.wsHandler,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// Start serves HTTP until a shutdown signal arrives or the server fails
func (app *Application) Start() error {
	go app.wsHandler.Run(app.ctx)

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var startErr error
	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		startErr = fmt.Errorf("http server: %w", err)
	}

	app.shutdown()
	return startErr
}

// shutdown performs graceful shutdown: stop taking requests, park the
// robot, then release the link
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "mbot-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.robotService.Shutdown(); err != nil {
		app.logger.Error("Robot shutdown error", zap.Error(err))
	} else {
		app.logger.Info("Robot link closed")
	}

	// stops the event bus and disconnects WebSocket clients
	app.cancel()

	app.logger.Info("Application shutdown completed")
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

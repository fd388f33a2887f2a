// internal/driver/factory.go
package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mbot-service/internal/config"
	"mbot-service/internal/driver/mbot"
	"mbot-service/internal/driver/simulated"
	"mbot-service/internal/link"
	"mbot-service/internal/protocol"
	"mbot-service/pkg/driver"
)

// NewDevice connects to the robot using the configured connection mode.
// When every transport fails and cfg.SimulateOnFailure is set, a simulated
// device is returned instead; otherwise the connect error is returned.
func NewDevice(ctx context.Context, cfg *config.RobotConfig, transports protocol.Factory, logger *zap.Logger, opts ...link.Option) (driver.RobotDriver, error) {
	linkConfig, err := link.ConfigFromRobot(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid robot configuration: %w", err)
	}

	logger.Info("Connecting to robot",
		zap.String("mode", string(linkConfig.Mode)),
	)

	manager, err := link.Dial(ctx, linkConfig, transports, logger, opts...)
	if err == nil {
		logger.Info("Robot connected",
			zap.String("connection_type", string(manager.ConnectionType())),
			zap.String("state", string(manager.State())),
		)
		return mbot.NewMBotDriver(manager, logger), nil
	}

	if !cfg.SimulateOnFailure {
		return nil, fmt.Errorf("failed to connect to robot: %w", err)
	}

	logger.Warn("No robot reachable, continuing with simulated device", zap.Error(err))
	return simulated.NewSimulatedDriver(logger), nil
}

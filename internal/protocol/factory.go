// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"

	"mbot-service/internal/config"
	"mbot-service/internal/model"
)

// Factory builds a transport for a connection type
type Factory func(connectionType model.ConnectionType) (Transport, error)

// NewFactory returns a Factory bound to the robot configuration
func NewFactory(cfg *config.RobotConfig, logger *zap.Logger) Factory {
	return func(connectionType model.ConnectionType) (Transport, error) {
		return CreateTransport(connectionType, cfg, logger)
	}
}

// CreateTransport creates a transport based on connection type and configuration
func CreateTransport(connectionType model.ConnectionType, cfg *config.RobotConfig, logger *zap.Logger) (Transport, error) {
	switch connectionType {
	case model.ConnectionTypeSerial:
		return createSerialTransport(cfg, logger), nil
	case model.ConnectionTypeBluetooth:
		return createBLETransport(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", connectionType)
	}
}

// createSerialTransport creates the wired transport
func createSerialTransport(cfg *config.RobotConfig, logger *zap.Logger) Transport {
	serialConfig := &SerialConfig{
		Port:         cfg.Serial.Port,
		BaudRate:     cfg.Serial.BaudRate,
		ReadTimeout:  cfg.Serial.ReadTimeout,
		SettleDelay:  cfg.Serial.SettleDelay,
		PortKeywords: cfg.Serial.PortKeywords,
	}
	if serialConfig.BaudRate == 0 {
		serialConfig.BaudRate = DefaultBaudRate
	}

	logger.Debug("Creating serial transport",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)
	return NewSerialConnection(serialConfig, logger)
}

// createBLETransport creates the wireless transport
func createBLETransport(cfg *config.RobotConfig, logger *zap.Logger) Transport {
	bleConfig := &BLEConfig{
		Address:             cfg.Bluetooth.Address,
		NameFilters:         cfg.Bluetooth.NameFilters,
		WriteCharacteristic: cfg.Bluetooth.WriteCharacteristic,
	}

	logger.Debug("Creating BLE transport",
		zap.String("address", bleConfig.Address),
		zap.Strings("name_filters", bleConfig.NameFilters),
	)
	return NewBLEConnection(bleConfig, logger)
}

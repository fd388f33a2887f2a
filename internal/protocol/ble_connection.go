// internal/protocol/ble_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"mbot-service/internal/model"
)

// ErrRobotNotFound is returned when no advertisement matched before the deadline
var ErrRobotNotFound = errors.New("no robot advertisement found")

// BLEConnection is the wireless transport. Its calls block on the radio stack
// and are expected to run on the link manager's bridge goroutine.
type BLEConnection struct {
	config    *BLEConfig
	adapter   *bluetooth.Adapter
	device    bluetooth.Device
	writeChar bluetooth.DeviceCharacteristic
	logger    *zap.Logger
	mutex     sync.RWMutex
	isOpen    bool
}

// NewBLEConnection creates a new BLE connection on the default adapter
func NewBLEConnection(config *BLEConfig, logger *zap.Logger) *BLEConnection {
	return &BLEConnection{
		config:  config,
		adapter: bluetooth.DefaultAdapter,
		logger:  logger.With(zap.String("protocol", "ble")),
	}
}

// Connect scans, connects and resolves the write characteristic
func (bc *BLEConnection) Connect(ctx context.Context) error {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if bc.isOpen {
		return nil
	}

	if err := bc.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth adapter: %w", err)
	}

	result, err := bc.scan(ctx)
	if err != nil {
		return err
	}

	bc.logger.Info("Robot advertisement found",
		zap.String("address", result.Address.String()),
		zap.String("name", result.LocalName()),
		zap.Int16("rssi", result.RSSI),
	)

	device, err := bc.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", result.Address.String(), err)
	}

	char, err := bc.findWriteCharacteristic(device)
	if err != nil {
		if derr := device.Disconnect(); derr != nil {
			bc.logger.Debug("Disconnect after failed discovery", zap.Error(derr))
		}
		return err
	}

	bc.device = device
	bc.writeChar = char
	bc.isOpen = true

	bc.logger.Info("BLE connection established",
		zap.String("address", result.Address.String()),
		zap.String("write_characteristic", char.UUID().String()),
	)
	return nil
}

// scan blocks until a matching advertisement arrives or ctx ends
func (bc *BLEConnection) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scan not started: %w", err)
	}

	found := make(chan bluetooth.ScanResult, 1)
	stop := context.AfterFunc(ctx, func() {
		bc.adapter.StopScan()
	})
	defer stop()

	bc.logger.Info("Scanning for robot",
		zap.Strings("name_filters", bc.config.NameFilters),
		zap.String("address", bc.config.Address),
	)

	err := bc.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !matchAdvertisement(bc.config, result.Address.String(), result.LocalName()) {
			return
		}
		select {
		case found <- result:
		default:
		}
		adapter.StopScan()
	})

	select {
	case result := <-found:
		return result, nil
	default:
	}
	if ctx.Err() != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("%w: %w", ErrRobotNotFound, ctx.Err())
	}
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scan error: %w", err)
	}
	return bluetooth.ScanResult{}, ErrRobotNotFound
}

// matchAdvertisement applies the explicit address, else the name filters
func matchAdvertisement(config *BLEConfig, address, name string) bool {
	if config.Address != "" {
		return strings.EqualFold(address, config.Address)
	}
	lower := strings.ToLower(name)
	for _, filter := range config.NameFilters {
		if filter != "" && strings.Contains(lower, strings.ToLower(filter)) {
			return true
		}
	}
	return false
}

// writeCandidates lists characteristic UUIDs known to accept writes, preferred first
func writeCandidates(config *BLEConfig) []string {
	candidates := make([]string, 0, 4)
	if config.WriteCharacteristic != "" {
		candidates = append(candidates, config.WriteCharacteristic)
	}
	return append(candidates,
		CharacteristicMakeblockWrite,
		CharacteristicFFF2,
		CharacteristicMakeblockV2,
	)
}

// pickWriteCharacteristic returns the index in discovered of the best candidate, or -1
func pickWriteCharacteristic(discovered []string, candidates []string) int {
	for _, want := range candidates {
		for i, uuid := range discovered {
			if strings.EqualFold(uuid, want) {
				return i
			}
		}
	}
	return -1
}

// findWriteCharacteristic walks every service; if nothing writable shows up in
// the full listing it asks each service for the Makeblock write UUID directly.
func (bc *BLEConnection) findWriteCharacteristic(device bluetooth.Device) (bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover services: %w", err)
	}

	var chars []bluetooth.DeviceCharacteristic
	var uuids []string
	for _, service := range services {
		discovered, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			bc.logger.Debug("Characteristic discovery failed",
				zap.String("service", service.UUID().String()),
				zap.Error(err),
			)
			continue
		}
		for _, char := range discovered {
			chars = append(chars, char)
			uuids = append(uuids, char.UUID().String())
		}
	}
	bc.logger.Debug("Characteristics discovered", zap.Strings("uuids", uuids))

	if i := pickWriteCharacteristic(uuids, writeCandidates(bc.config)); i >= 0 {
		return chars[i], nil
	}

	fallback, err := bluetooth.ParseUUID(CharacteristicMakeblockWrite)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("invalid fallback characteristic: %w", err)
	}
	for _, service := range services {
		discovered, err := service.DiscoverCharacteristics([]bluetooth.UUID{fallback})
		if err == nil && len(discovered) > 0 {
			bc.logger.Warn("Using fallback write characteristic", zap.String("uuid", CharacteristicMakeblockWrite))
			return discovered[0], nil
		}
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("no writable characteristic found among %d", len(uuids))
}

// Send writes the frame without waiting for a GATT response
func (bc *BLEConnection) Send(data []byte) error {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()

	if !bc.isOpen {
		return ErrNotOpen
	}

	if _, err := bc.writeChar.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("failed to write characteristic: %w", err)
	}
	return nil
}

// Close disconnects from the robot
func (bc *BLEConnection) Close() error {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if !bc.isOpen {
		return nil
	}
	bc.isOpen = false

	if err := bc.device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	bc.logger.Info("BLE connection closed")
	return nil
}

// Type returns the transport type
func (bc *BLEConnection) Type() model.ConnectionType {
	return model.ConnectionTypeBluetooth
}

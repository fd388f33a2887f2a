// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	serialdiscovery "mbot-service/internal/discovery/serial"
	"mbot-service/internal/model"
)

// readChunk bounds a single ReadAvailable call
const readChunk = 256

// openPort is swapped in tests
var openPort = serial.Open

// SerialConnection is the wired transport over a USB-serial bridge
type SerialConnection struct {
	config  *SerialConfig
	port    serial.Port
	name    string
	logger  *zap.Logger
	mutex   sync.RWMutex
	writeMu sync.Mutex
	isOpen  bool
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		logger: logger.With(zap.String("protocol", "serial")),
	}
}

// Connect opens the configured port, or the first port that looks like a robot
func (sc *SerialConnection) Connect(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	name := sc.config.Port
	if name == "" {
		found, err := serialdiscovery.FindPort(sc.config.PortKeywords)
		if err != nil {
			return fmt.Errorf("failed to locate serial port: %w", err)
		}
		name = found
	}

	sc.logger.Info("Opening serial port",
		zap.String("port", name),
		zap.Int("baud_rate", sc.config.BaudRate),
	)

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := openPort(name, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	if err := port.SetReadTimeout(sc.config.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	// The board resets when the port opens; anything it prints while booting is noise.
	if sc.config.SettleDelay > 0 {
		timer := time.NewTimer(sc.config.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			port.Close()
			return fmt.Errorf("serial port settle interrupted: %w", ctx.Err())
		}
	}
	if err := port.ResetInputBuffer(); err != nil {
		sc.logger.Debug("Failed to reset input buffer", zap.Error(err))
	}

	sc.port = port
	sc.name = name
	sc.isOpen = true

	sc.logger.Info("Serial port opened successfully", zap.String("port", name))
	return nil
}

// Send writes the frame and waits for it to leave the output buffer
func (sc *SerialConnection) Send(data []byte) error {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}

	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()

	n, err := sc.port.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	if err := sc.port.Drain(); err != nil {
		return fmt.Errorf("failed to flush serial port: %w", err)
	}
	return nil
}

// ReadAvailable returns bytes received within the port read timeout
func (sc *SerialConnection) ReadAvailable() ([]byte, error) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return nil, ErrNotOpen
	}

	buffer := make([]byte, readChunk)
	n, err := sc.port.Read(buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to read from serial port: %w", err)
	}
	return buffer[:n], nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed", zap.String("port", sc.name))
	return nil
}

// Type returns the transport type
func (sc *SerialConnection) Type() model.ConnectionType {
	return model.ConnectionTypeSerial
}

// PortName returns the opened port path, empty before Connect
func (sc *SerialConnection) PortName() string {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.name
}

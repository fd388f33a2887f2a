// internal/driver/factory_test.go
package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mbot-service/internal/config"
	"mbot-service/internal/driver/mbot"
	"mbot-service/internal/driver/simulated"
	"mbot-service/internal/link"
	"mbot-service/internal/model"
	"mbot-service/internal/protocol"
)

type stubTransport struct {
	kind       model.ConnectionType
	connectErr error
}

func (s *stubTransport) Connect(context.Context) error  { return s.connectErr }
func (s *stubTransport) Send([]byte) error              { return nil }
func (s *stubTransport) Close() error                   { return nil }
func (s *stubTransport) Type() model.ConnectionType     { return s.kind }
func (s *stubTransport) ReadAvailable() ([]byte, error) { return nil, nil }

func failingFactory(connectionType model.ConnectionType) (protocol.Transport, error) {
	return &stubTransport{kind: connectionType, connectErr: errors.New("nothing attached")}, nil
}

func workingFactory(connectionType model.ConnectionType) (protocol.Transport, error) {
	return &stubTransport{kind: connectionType}, nil
}

func robotConfig(simulate bool) *config.RobotConfig {
	cfg := &config.RobotConfig{
		ConnectionMode:    "auto",
		SimulateOnFailure: simulate,
		ReadTimeout:       50 * time.Millisecond,
		PollInterval:      time.Millisecond,
		ReceiveBufferSize: 1024,
	}
	cfg.Bluetooth.ConnectTimeout = 100 * time.Millisecond
	cfg.Bluetooth.WriteTimeout = 50 * time.Millisecond
	return cfg
}

func TestNewDevice_FallsBackToSimulator(t *testing.T) {
	device, err := NewDevice(context.Background(), robotConfig(true), failingFactory, zaptest.NewLogger(t))
	require.NoError(t, err)

	sim, ok := device.(*simulated.SimulatedDriver)
	require.True(t, ok, "expected simulated driver, got %T", device)

	assert.True(t, sim.Move(100, 100))
	assert.True(t, sim.SetLED(0, 255, 255, 255))
	assert.True(t, sim.Buzz(440, 200))
	_, reading, err := sim.ReadDistance(1, 3)
	assert.NoError(t, err)
	assert.False(t, reading)
	assert.NoError(t, sim.Close())
}

func TestNewDevice_FailsHardWithoutSimulation(t *testing.T) {
	_, err := NewDevice(context.Background(), robotConfig(false), failingFactory, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, link.ErrNoDevice)
}

func TestNewDevice_ReturnsRealDriver(t *testing.T) {
	device, err := NewDevice(context.Background(), robotConfig(false), workingFactory, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer device.Close()

	_, ok := device.(*mbot.MBotDriver)
	require.True(t, ok, "expected mbot driver, got %T", device)
	assert.Equal(t, model.ConnectionTypeBluetooth, device.Info().ConnectionType)
}

func TestNewDevice_RejectsUnknownMode(t *testing.T) {
	cfg := robotConfig(true)
	cfg.ConnectionMode = "infrared"
	_, err := NewDevice(context.Background(), cfg, workingFactory, zaptest.NewLogger(t))
	assert.Error(t, err)
}

// internal/link/manager.go
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mbot-service/internal/config"
	"mbot-service/internal/metrics"
	"mbot-service/internal/model"
	"mbot-service/internal/protocol"
	"mbot-service/internal/protocol/frame"
	"mbot-service/internal/utils"
)

var (
	// ErrNoDevice is returned when every transport allowed by the mode failed
	ErrNoDevice = errors.New("no robot reachable")
	// ErrNotImplemented signals an operation the active transport cannot do
	ErrNotImplemented = errors.New("not implemented for this transport")
	// ErrNotConnected is returned by reads outside a connected state
	ErrNotConnected = errors.New("link not connected")
	// ErrTimeout marks a bridged wireless operation that did not finish in time
	ErrTimeout = errors.New("link operation timed out")
	// ErrClosed is returned by Connect after Close
	ErrClosed = errors.New("link closed")
)

// Config bounds every blocking link operation
type Config struct {
	Mode           model.ConnectionMode
	ConnectTimeout time.Duration // wireless discovery and connect
	WriteTimeout   time.Duration // one bridged wireless operation
	ReadTimeout    time.Duration // sensor read polling
	PollInterval   time.Duration
	CommandDelay   time.Duration // pause after each delivered frame
	BufferSize     int
}

// ConfigFromRobot maps robot configuration onto link settings
func ConfigFromRobot(cfg *config.RobotConfig) (Config, error) {
	mode, err := model.ParseConnectionMode(cfg.ConnectionMode)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Mode:           mode,
		ConnectTimeout: cfg.Bluetooth.ConnectTimeout,
		WriteTimeout:   cfg.Bluetooth.WriteTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		PollInterval:   cfg.PollInterval,
		CommandDelay:   cfg.CommandDelay,
		BufferSize:     cfg.ReceiveBufferSize,
	}, nil
}

// StateObserver is told about every state transition, outside the manager lock
type StateObserver func(prev, next model.ConnectionState, connectionType model.ConnectionType, sessionID uuid.UUID)

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records link activity in m
func WithMetrics(m *metrics.LinkMetrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithStateObserver registers fn for state transitions
func WithStateObserver(fn StateObserver) Option {
	return func(mgr *Manager) { mgr.observer = fn }
}

// Stats is a snapshot of link counters
type Stats struct {
	SessionID      uuid.UUID             `json:"session_id"`
	State          model.ConnectionState `json:"state"`
	ConnectionType model.ConnectionType  `json:"connection_type,omitempty"`
	ConnectedAt    time.Time             `json:"connected_at,omitempty"`
	FramesSent     int64                 `json:"frames_sent"`
	SendFailures   int64                 `json:"send_failures"`
	ReadsOK        int64                 `json:"reads_ok"`
	ReadTimeouts   int64                 `json:"read_timeouts"`
	BytesDropped   int64                 `json:"bytes_dropped"`
}

// Manager selects a transport, owns its lifecycle and exposes a
// synchronous send/read surface over either channel.
type Manager struct {
	config   Config
	factory  protocol.Factory
	logger   *zap.Logger
	metrics  *metrics.LinkMetrics
	observer StateObserver

	mutex       sync.RWMutex
	state       model.ConnectionState
	transport   protocol.Transport
	bridge      *bridge
	sessionID   uuid.UUID
	connectedAt time.Time
	closed      bool
	device      *utils.DeviceLogger

	framesSent   atomic.Int64
	sendFailures atomic.Int64
	readsOK      atomic.Int64
	readTimeouts atomic.Int64

	// readMu serializes sensor reads; rx and seq are only touched under it
	readMu sync.Mutex
	rx     *receiveBuffer
	seq    sequence
}

// NewManager creates a disconnected manager
func NewManager(cfg Config, factory protocol.Factory, logger *zap.Logger, opts ...Option) *Manager {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}

	m := &Manager{
		config:  cfg,
		factory: factory,
		logger:  logger.With(zap.String("component", "link")),
		state:   model.StateDisconnected,
		rx:      newReceiveBuffer(cfg.BufferSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dial creates a manager and connects it according to cfg.Mode
func Dial(ctx context.Context, cfg Config, factory protocol.Factory, logger *zap.Logger, opts ...Option) (*Manager, error) {
	m := NewManager(cfg, factory, logger, opts...)
	if err := m.Connect(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// candidates lists transports to try, in order
func (m *Manager) candidates() []model.ConnectionType {
	switch m.config.Mode {
	case model.ConnectionModeWireless:
		return []model.ConnectionType{model.ConnectionTypeBluetooth}
	case model.ConnectionModeWired:
		return []model.ConnectionType{model.ConnectionTypeSerial}
	default:
		return []model.ConnectionType{model.ConnectionTypeBluetooth, model.ConnectionTypeSerial}
	}
}

// Connect applies the connection policy. It is a no-op when already connected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mutex.RLock()
	closed, state := m.closed, m.state
	m.mutex.RUnlock()

	if closed {
		return ErrClosed
	}
	if state.IsConnected() {
		return nil
	}

	var errs []error
	for _, connectionType := range m.candidates() {
		err := m.connectOne(ctx, connectionType)
		if err == nil {
			return nil
		}
		m.logger.Warn("Transport connect failed",
			zap.String("connection_type", string(connectionType)),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", connectionType, err))
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %w", ErrNoDevice, errors.Join(errs...))
}

func (m *Manager) connectOne(ctx context.Context, connectionType model.ConnectionType) error {
	m.setState(model.ConnectingState(connectionType), connectionType)

	transport, err := m.factory(connectionType)
	if err != nil {
		m.setState(model.StateDisconnected, connectionType)
		return fmt.Errorf("failed to create transport: %w", err)
	}

	var b *bridge
	if connectionType == model.ConnectionTypeBluetooth {
		b = newBridge(transport, m.logger)
		connectCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
		err = b.connect(connectCtx)
		cancel()
		if err != nil {
			b.stop(m.config.WriteTimeout)
		}
	} else {
		err = transport.Connect(ctx)
	}

	sessionID := uuid.New()
	device := utils.NewDeviceLogger(m.logger, string(connectionType), sessionID.String())
	if err != nil {
		device.LogConnection("connect", false, err)
		m.setState(model.StateDisconnected, connectionType)
		return err
	}

	m.mutex.Lock()
	m.transport = transport
	m.bridge = b
	m.sessionID = sessionID
	m.connectedAt = time.Now()
	m.device = device
	m.mutex.Unlock()

	device.LogConnection("connect", true, nil)
	m.setState(model.ConnectedState(connectionType), connectionType)
	return nil
}

func (m *Manager) setState(next model.ConnectionState, connectionType model.ConnectionType) {
	m.mutex.Lock()
	prev := m.state
	m.state = next
	sessionID := m.sessionID
	m.mutex.Unlock()

	if prev == next {
		return
	}
	m.logger.Debug("Link state changed",
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)
	if m.metrics != nil {
		m.metrics.SetState(next)
	}
	if m.observer != nil {
		m.observer(prev, next, connectionType, sessionID)
	}
}

// Send hands one frame to the active transport. False means not delivered,
// state unknown; the manager never retries. Wireless sends block for at most
// the write timeout.
func (m *Manager) Send(data []byte) bool {
	m.mutex.RLock()
	state, transport, b, device := m.state, m.transport, m.bridge, m.device
	m.mutex.RUnlock()

	if !state.IsConnected() {
		m.logger.DPanic("Send on a link that is not connected",
			zap.String("state", string(state)),
			zap.Binary("frame", data),
		)
		return false
	}

	var err error
	if b != nil {
		err = b.do(m.config.WriteTimeout, func(t protocol.Transport) error {
			return t.Send(data)
		})
	} else {
		err = transport.Send(data)
	}

	if m.metrics != nil {
		m.metrics.ObserveSend(transport.Type(), err == nil)
	}
	if err != nil {
		m.sendFailures.Add(1)
		device.LogSend(data, err)
		return false
	}

	m.framesSent.Add(1)
	if m.config.CommandDelay > 0 {
		time.Sleep(m.config.CommandDelay)
	}
	return true
}

// ReadSensor requests an ultrasonic reading and waits for the matching response.
// A timeout yields ok=false with a nil error. Reads are wired only; on the
// wireless link ErrNotImplemented is returned.
func (m *Manager) ReadSensor(port, slot uint8) (frame.Value, bool, error) {
	m.mutex.RLock()
	state, transport, device := m.state, m.transport, m.device
	m.mutex.RUnlock()

	if state == model.StateConnectedWireless {
		m.observeRead("unsupported")
		return frame.Value{}, false, ErrNotImplemented
	}
	if !state.IsConnected() {
		return frame.Value{}, false, ErrNotConnected
	}
	reader, ok := transport.(protocol.StreamReader)
	if !ok {
		m.observeRead("unsupported")
		return frame.Value{}, false, ErrNotImplemented
	}

	m.readMu.Lock()
	defer m.readMu.Unlock()

	start := time.Now()
	index := m.seq.next()
	if !m.Send(frame.EncodeSensorRead(port, slot, index)) {
		m.observeRead("failed")
		device.LogRead(port, slot, index, "send_failed", time.Since(start))
		return frame.Value{}, false, nil
	}

	deadline := start.Add(m.config.ReadTimeout)
	for {
		data, err := reader.ReadAvailable()
		if err != nil {
			device.Debug("Read error while polling", zap.Error(err))
		} else if len(data) > 0 {
			m.rx.write(data)
		}

		for {
			resp, ok := m.rx.next()
			if !ok {
				break
			}
			if resp.Index != index {
				device.Debug("Discarding stale response",
					zap.Uint8("index", resp.Index),
					zap.Uint8("expected", index),
				)
				continue
			}
			m.readsOK.Add(1)
			m.observeRead("ok")
			device.LogRead(port, slot, index, "ok", time.Since(start))
			return resp.Value, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if len(data) == 0 {
			time.Sleep(min(m.config.PollInterval, remaining))
		}
	}

	m.readTimeouts.Add(1)
	m.observeRead("timeout")
	device.LogRead(port, slot, index, "timeout", time.Since(start))
	return frame.Value{}, false, nil
}

func (m *Manager) observeRead(result string) {
	if m.metrics != nil {
		m.metrics.ObserveRead(result)
	}
}

// Close tears the link down. It is idempotent, swallows teardown errors and
// sends nothing; stop the robot before calling it.
func (m *Manager) Close() error {
	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return nil
	}
	m.closed = true
	transport, b := m.transport, m.bridge
	connectionType := model.ConnectionType("")
	if transport != nil {
		connectionType = transport.Type()
	}
	m.mutex.Unlock()

	m.setState(model.StateClosing, connectionType)

	switch {
	case b != nil:
		err := b.do(m.config.WriteTimeout, func(t protocol.Transport) error {
			return t.Close()
		})
		if err != nil {
			m.logger.Debug("Wireless disconnect did not complete", zap.Error(err))
		}
		b.stop(m.config.WriteTimeout)
	case transport != nil:
		if err := transport.Close(); err != nil {
			m.logger.Debug("Wired close failed", zap.Error(err))
		}
	}

	m.mutex.Lock()
	m.transport = nil
	m.bridge = nil
	m.mutex.Unlock()

	m.setState(model.StateDisconnected, connectionType)
	m.logger.Info("Link closed")
	return nil
}

// State returns the current connection state
func (m *Manager) State() model.ConnectionState {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.state
}

// ConnectionType returns the active transport type, empty when disconnected
func (m *Manager) ConnectionType() model.ConnectionType {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.transport == nil {
		return ""
	}
	return m.transport.Type()
}

// Stats returns a snapshot of the link counters
func (m *Manager) Stats() Stats {
	m.mutex.RLock()
	stats := Stats{
		SessionID:   m.sessionID,
		State:       m.state,
		ConnectedAt: m.connectedAt,
	}
	if m.transport != nil {
		stats.ConnectionType = m.transport.Type()
	}
	m.mutex.RUnlock()

	stats.FramesSent = m.framesSent.Load()
	stats.SendFailures = m.sendFailures.Load()
	stats.ReadsOK = m.readsOK.Load()
	stats.ReadTimeouts = m.readTimeouts.Load()
	stats.BytesDropped = m.rx.dropped.Load()
	return stats
}

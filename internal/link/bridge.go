// internal/link/bridge.go
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mbot-service/internal/protocol"
)

var errBridgeStopped = errors.New("wireless bridge stopped")

// jobQueueSize bounds outstanding wireless operations
const jobQueueSize = 16

type job struct {
	run    func(protocol.Transport) error
	result chan error
}

// bridge owns the wireless transport on a single goroutine for the lifetime
// of the connection. Callers block on do() with a timeout; a job that outlives
// its caller still runs to completion here.
type bridge struct {
	transport protocol.Transport
	jobs      chan job
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *zap.Logger
}

func newBridge(transport protocol.Transport, logger *zap.Logger) *bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &bridge{
		transport: transport,
		jobs:      make(chan job, jobQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    logger.With(zap.String("component", "ble-bridge")),
	}
	go b.loop()
	return b
}

func (b *bridge) loop() {
	defer close(b.done)
	defer func() {
		// also releases a connect that finished after its caller gave up
		if err := b.transport.Close(); err != nil {
			b.logger.Debug("Transport close on bridge exit", zap.Error(err))
		}
	}()

	for {
		select {
		case <-b.ctx.Done():
			return
		case j := <-b.jobs:
			j.result <- b.run(j)
		}
	}
}

func (b *bridge) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Wireless operation panicked", zap.Any("panic", r))
			err = fmt.Errorf("wireless operation panicked: %v", r)
		}
	}()
	return j.run(b.transport)
}

// do schedules fn on the bridge and waits up to timeout for its result
func (b *bridge) do(timeout time.Duration, fn func(protocol.Transport) error) error {
	j := job{run: fn, result: make(chan error, 1)}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b.jobs <- j:
	case <-b.ctx.Done():
		return errBridgeStopped
	case <-timer.C:
		return fmt.Errorf("%w: queue full after %s", ErrTimeout, timeout)
	}

	select {
	case err := <-j.result:
		return err
	case <-b.done:
		return errBridgeStopped
	case <-timer.C:
		return fmt.Errorf("%w: no result after %s", ErrTimeout, timeout)
	}
}

// connect runs transport.Connect on the bridge, bounded by ctx
func (b *bridge) connect(ctx context.Context) error {
	result := make(chan error, 1)
	j := job{
		run:    func(t protocol.Transport) error { return t.Connect(ctx) },
		result: result,
	}

	select {
	case b.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

// stop ends the loop and waits briefly for it to exit
func (b *bridge) stop(wait time.Duration) {
	b.cancel()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-b.done:
	case <-timer.C:
		b.logger.Warn("Wireless bridge still busy after stop", zap.Duration("wait", wait))
	}
}

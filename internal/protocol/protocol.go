// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"

	"mbot-service/internal/model"
)

// ErrNotOpen is returned by Send and ReadAvailable before Connect or after Close
var ErrNotOpen = errors.New("transport not open")

// Transport is one physical channel to the robot
type Transport interface {
	// Connect establishes the channel; ctx bounds discovery and connect
	Connect(ctx context.Context) error
	// Send writes one complete frame
	Send(data []byte) error
	Close() error
	Type() model.ConnectionType
}

// StreamReader is implemented by transports that expose inbound bytes by polling.
// The wireless channel pushes notifications instead and does not implement it.
type StreamReader interface {
	// ReadAvailable returns whatever arrived within the transport's read timeout,
	// possibly nothing
	ReadAvailable() ([]byte, error)
}

// internal/model/link.go
package model

import (
	"fmt"
	"strings"
)

// ConnectionType represents the physical channel a robot is reached through
type ConnectionType string

const (
	ConnectionTypeSerial    ConnectionType = "SERIAL"
	ConnectionTypeBluetooth ConnectionType = "BLUETOOTH"
	ConnectionTypeSimulated ConnectionType = "SIMULATED"
)

// ConnectionMode selects which transports the link manager may try
type ConnectionMode string

const (
	ConnectionModeAuto     ConnectionMode = "auto"
	ConnectionModeWired    ConnectionMode = "usb"
	ConnectionModeWireless ConnectionMode = "bluetooth"
)

// ParseConnectionMode accepts the configured mode string and a few common aliases
func ParseConnectionMode(s string) (ConnectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ConnectionModeAuto, nil
	case "usb", "serial", "wired":
		return ConnectionModeWired, nil
	case "bluetooth", "ble", "wireless":
		return ConnectionModeWireless, nil
	default:
		return "", fmt.Errorf("unknown connection mode: %q", s)
	}
}

// ConnectionState represents the link manager state machine
type ConnectionState string

const (
	StateDisconnected       ConnectionState = "disconnected"
	StateConnectingWired    ConnectionState = "connecting_wired"
	StateConnectingWireless ConnectionState = "connecting_wireless"
	StateConnectedWired     ConnectionState = "connected_wired"
	StateConnectedWireless  ConnectionState = "connected_wireless"
	StateClosing            ConnectionState = "closing"
)

// AllConnectionStates lists every state, used for exporting gauges
var AllConnectionStates = []ConnectionState{
	StateDisconnected,
	StateConnectingWired,
	StateConnectingWireless,
	StateConnectedWired,
	StateConnectedWireless,
	StateClosing,
}

// IsConnected reports whether frames may be sent in this state
func (s ConnectionState) IsConnected() bool {
	return s == StateConnectedWired || s == StateConnectedWireless
}

// ConnectingState returns the connecting state for a transport type
func ConnectingState(t ConnectionType) ConnectionState {
	if t == ConnectionTypeBluetooth {
		return StateConnectingWireless
	}
	return StateConnectingWired
}

// ConnectedState returns the connected state for a transport type
func ConnectedState(t ConnectionType) ConnectionState {
	if t == ConnectionTypeBluetooth {
		return StateConnectedWireless
	}
	return StateConnectedWired
}

package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mbot-service/internal/model"
)

type stubScanner struct {
	kind      string
	available bool
	devices   []*DiscoveredDevice
	err       error
}

func (s *stubScanner) Scan(context.Context) ([]*DiscoveredDevice, error) { return s.devices, s.err }
func (s *stubScanner) GetScannerType() string                           { return s.kind }
func (s *stubScanner) IsAvailable() bool                                { return s.available }

func TestScannerManager_ScanAll(t *testing.T) {
	sm := NewScannerManager(zaptest.NewLogger(t))
	sm.RegisterScanner(&stubScanner{kind: "serial", available: true, devices: []*DiscoveredDevice{
		{ConnectionType: model.ConnectionTypeSerial, Confidence: 0.4},
		{ConnectionType: model.ConnectionTypeSerial, Confidence: 0.9},
	}})
	sm.RegisterScanner(&stubScanner{kind: "usb", available: true, err: errors.New("libusb missing")})
	sm.RegisterScanner(&stubScanner{kind: "off", available: false})

	devices, err := sm.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, 0.9, devices[0].Confidence)

	assert.Equal(t, []string{"serial", "usb"}, sm.GetAvailableScanners())
}

func TestScannerManager_ScanByType(t *testing.T) {
	sm := NewScannerManager(zaptest.NewLogger(t))
	sm.RegisterScanner(&stubScanner{kind: "off", available: false})

	_, err := sm.ScanByType(context.Background(), "missing")
	assert.Error(t, err)

	_, err = sm.ScanByType(context.Background(), "off")
	assert.Error(t, err)
}

func TestLookupBridge(t *testing.T) {
	b, ok := LookupBridge(0x1A86)
	require.True(t, ok)
	assert.Equal(t, "CH340/CH341", b.Chipset)

	_, ok = LookupBridge(0xFFFF)
	assert.False(t, ok)
}

package usb

import (
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe_KnownBridge(t *testing.T) {
	device, ok := describe(&gousb.DeviceDesc{Bus: 1, Port: 4, Address: 7, Vendor: 0x1A86, Product: 0x7523})
	require.True(t, ok)
	assert.Equal(t, "CH340/CH341", device.Chipset)
	assert.Equal(t, "1A86", device.ConnectionInfo["vendor_id"])
	assert.Equal(t, "7523", device.ConnectionInfo["product_id"])
	assert.Equal(t, "USB-Bus1-Port4", device.Location)
	assert.InDelta(t, 0.45, device.Confidence, 1e-9)
}

func TestDescribe_UnknownVendor(t *testing.T) {
	_, ok := describe(&gousb.DeviceDesc{Vendor: 0x046D, Product: 0xC52B})
	assert.False(t, ok)
}

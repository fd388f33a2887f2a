package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap/zaptest"
)

func withPorts(t *testing.T, ports []*enumerator.PortDetails, err error) {
	t.Helper()
	orig := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) { return ports, err }
	t.Cleanup(func() { listPorts = orig })
}

var fixturePorts = []*enumerator.PortDetails{
	{Name: "/dev/ttyS0"},
	{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R"},
	{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523", Product: "USB2.0-Serial"},
}

func TestFindPort_PrefersCH340(t *testing.T) {
	withPorts(t, fixturePorts, nil)

	port, err := FindPort([]string{"CH340", "CH341", "USB"})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", port)
}

func TestFindPort_KeywordOnly(t *testing.T) {
	withPorts(t, []*enumerator.PortDetails{
		{Name: "COM3", Product: "USB-SERIAL CH340"},
	}, nil)

	port, err := FindPort([]string{"ch340"})
	require.NoError(t, err)
	assert.Equal(t, "COM3", port)
}

func TestFindPort_None(t *testing.T) {
	withPorts(t, []*enumerator.PortDetails{{Name: "/dev/ttyS0"}}, nil)

	_, err := FindPort([]string{"CH340"})
	assert.ErrorIs(t, err, ErrNoPort)
}

func TestScanner_Scan(t *testing.T) {
	withPorts(t, fixturePorts, nil)

	s := NewScanner([]string{"CH340"}, zaptest.NewLogger(t))
	assert.True(t, s.IsAvailable())

	devices, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "CH340/CH341", devices[1].Chipset)
	assert.Equal(t, "1A86", devices[1].ConnectionInfo["vendor_id"])
}

func TestScanner_EnumerationError(t *testing.T) {
	withPorts(t, nil, errors.New("permission denied"))

	s := NewScanner(nil, zaptest.NewLogger(t))
	assert.False(t, s.IsAvailable())
	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

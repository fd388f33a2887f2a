// internal/driver/mbot/mbot_driver_test.go
package mbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mbot-service/internal/link"
	"mbot-service/internal/model"
	"mbot-service/internal/protocol/frame"
	"mbot-service/pkg/driver"
)

type fakeLink struct {
	sent     [][]byte
	deliver  bool
	value    frame.Value
	readOK   bool
	readErr  error
	closed   int
	state    model.ConnectionState
	linkType model.ConnectionType
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		deliver:  true,
		state:    model.StateConnectedWired,
		linkType: model.ConnectionTypeSerial,
	}
}

func (f *fakeLink) Send(data []byte) bool {
	f.sent = append(f.sent, data)
	return f.deliver
}

func (f *fakeLink) ReadSensor(port, slot uint8) (frame.Value, bool, error) {
	f.sent = append(f.sent, frame.EncodeSensorRead(port, slot, 1))
	return f.value, f.readOK, f.readErr
}

func (f *fakeLink) State() model.ConnectionState        { return f.state }
func (f *fakeLink) ConnectionType() model.ConnectionType { return f.linkType }
func (f *fakeLink) Stats() link.Stats                    { return link.Stats{State: f.state} }

func (f *fakeLink) Close() error {
	f.closed++
	return nil
}

func TestMBotDriver_EncodesCommands(t *testing.T) {
	l := newFakeLink()
	d := NewMBotDriver(l, zaptest.NewLogger(t))

	assert.True(t, d.Move(100, 100))
	assert.True(t, d.SetLED(0, 255, 0, 0))
	assert.True(t, d.SetRGBLED(3, 2, 1, 0, 0, 255))
	assert.True(t, d.Buzz(440, 500))
	assert.True(t, d.SetMotor(9, -120))
	assert.True(t, d.SetServo(1, 1, 90))

	assert.Equal(t, [][]byte{
		frame.EncodeMove(100, 100),
		frame.EncodeLED(0, 255, 0, 0),
		frame.EncodeRGBLED(3, 2, 1, 0, 0, 255),
		frame.EncodeBuzzer(440, 500),
		frame.EncodeMotor(9, -120),
		frame.EncodeServo(1, 1, 90),
	}, l.sent)
}

func TestMBotDriver_UndeliveredCommandReturnsFalse(t *testing.T) {
	l := newFakeLink()
	l.deliver = false
	d := NewMBotDriver(l, zaptest.NewLogger(t))

	assert.False(t, d.Move(10, 10))
	// no retry inside the driver
	assert.Len(t, l.sent, 1)

	health := d.GetHealthMetrics()
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Zero(t, health.SuccessRate)
	assert.NotNil(t, health.LastErrorTime)
}

func TestMBotDriver_ReadDistance(t *testing.T) {
	l := newFakeLink()
	l.value = frame.Value{Type: frame.DataTypeFloat32, Float: 23.5}
	l.readOK = true
	d := NewMBotDriver(l, zaptest.NewLogger(t))

	distance, ok, err := d.ReadDistance(1, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 23.5, distance, 0.001)
}

func TestMBotDriver_ReadDistanceNoReading(t *testing.T) {
	l := newFakeLink()
	d := NewMBotDriver(l, zaptest.NewLogger(t))

	_, ok, err := d.ReadDistance(1, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// a response without a usable payload is also no reading
	l.readOK = true
	_, ok, err = d.ReadDistance(1, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMBotDriver_ReadDistanceNotImplemented(t *testing.T) {
	l := newFakeLink()
	l.state = model.StateConnectedWireless
	l.readErr = link.ErrNotImplemented
	d := NewMBotDriver(l, zaptest.NewLogger(t))

	_, ok, err := d.ReadDistance(1, 3)
	assert.ErrorIs(t, err, driver.ErrNotImplemented)
	assert.False(t, ok)
}

func TestMBotDriver_InfoAndClose(t *testing.T) {
	l := newFakeLink()
	d := NewMBotDriver(l, zaptest.NewLogger(t))

	info := d.Info()
	assert.Equal(t, model.ConnectionTypeSerial, info.ConnectionType)
	assert.Equal(t, model.StateConnectedWired, info.State)
	assert.False(t, info.Simulated)
	assert.Contains(t, info.Capabilities, driver.CapabilityDistance)

	require.NoError(t, d.Close())
	assert.Equal(t, 1, l.closed)
	assert.Len(t, l.sent, 0, "close sends no safety stop")
}

// internal/driver/simulated/simulated_driver_test.go
package simulated

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mbot-service/internal/model"
)

func TestSimulatedDriver_AcceptsEveryCommand(t *testing.T) {
	d := NewSimulatedDriver(zaptest.NewLogger(t))

	assert.True(t, d.Move(100, -100))
	assert.True(t, d.SetMotor(9, 50))
	assert.True(t, d.SetServo(1, 1, 45))
	assert.True(t, d.SetLED(0, 1, 2, 3))
	assert.True(t, d.SetRGBLED(3, 2, 1, 4, 5, 6))
	assert.True(t, d.Buzz(440, 500))
	assert.True(t, d.Buzz(0, 0))

	calls := d.Calls()
	require.Len(t, calls, 7)
	assert.Equal(t, "move", calls[0].Action)
	assert.Equal(t, int16(100), calls[0].Params["left"])
	assert.Equal(t, int16(-100), calls[0].Params["right"])
	assert.Equal(t, "buzzer", calls[6].Action)
}

func TestSimulatedDriver_DistanceIsDeterministic(t *testing.T) {
	d := NewSimulatedDriver(zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		distance, ok, err := d.ReadDistance(1, 3)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, distance)
	}
}

func TestSimulatedDriver_InfoAndClose(t *testing.T) {
	d := NewSimulatedDriver(zaptest.NewLogger(t))

	info := d.Info()
	assert.True(t, info.Simulated)
	assert.Equal(t, model.ConnectionTypeSimulated, info.ConnectionType)
	assert.Equal(t, 100, d.GetHealthMetrics().HealthScore)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}

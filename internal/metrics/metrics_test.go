package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"mbot-service/internal/model"
)

func TestLinkMetrics_State(t *testing.T) {
	m := NewLinkMetrics(NewRegistry())

	m.SetState(model.StateConnectedWired)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkState.WithLabelValues(string(model.StateConnectedWired))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LinkState.WithLabelValues(string(model.StateDisconnected))))
}

func TestLinkMetrics_Counters(t *testing.T) {
	m := NewLinkMetrics(NewRegistry())

	m.ObserveSend(model.ConnectionTypeSerial, true)
	m.ObserveSend(model.ConnectionTypeSerial, false)
	m.ObserveSend(model.ConnectionTypeSerial, false)
	m.ObserveRead("timeout")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("SERIAL", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("SERIAL", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SensorReads.WithLabelValues("timeout")))
}

// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mbot-service/internal/model"
)

// NewRegistry creates a private registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the Prometheus HTTP handler for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// LinkMetrics tracks robot link activity
type LinkMetrics struct {
	FramesSent  *prometheus.CounterVec // labels: transport, result=ok|failed
	SensorReads *prometheus.CounterVec // labels: result=ok|timeout|failed|unsupported
	LinkState   *prometheus.GaugeVec   // labels: state; 1 for the current state
}

// NewLinkMetrics registers and returns link metrics
func NewLinkMetrics(reg prometheus.Registerer) *LinkMetrics {
	m := &LinkMetrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbot_frames_sent_total",
			Help: "Command frames handed to the active transport.",
		}, []string{"transport", "result"}),
		SensorReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbot_sensor_reads_total",
			Help: "Sensor read requests by outcome.",
		}, []string{"result"}),
		LinkState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mbot_link_state",
			Help: "Current link state, 1 for the active state.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.FramesSent, m.SensorReads, m.LinkState)
	m.SetState(model.StateDisconnected)
	return m
}

// ObserveSend counts one send attempt
func (m *LinkMetrics) ObserveSend(t model.ConnectionType, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.FramesSent.WithLabelValues(string(t), result).Inc()
}

// ObserveRead counts one sensor read by outcome
func (m *LinkMetrics) ObserveRead(result string) {
	m.SensorReads.WithLabelValues(result).Inc()
}

// SetState marks state as current and clears the others
func (m *LinkMetrics) SetState(state model.ConnectionState) {
	for _, s := range model.AllConnectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.LinkState.WithLabelValues(string(s)).Set(v)
	}
}

// HTTPMetrics tracks API traffic
type HTTPMetrics struct {
	Requests *prometheus.CounterVec // labels: method, path, status
	Duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers and returns HTTP metrics
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbot_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "path", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mbot_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}

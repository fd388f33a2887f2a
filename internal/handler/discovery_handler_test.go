// internal/handler/discovery_handler_test.go
package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mbot-service/internal/discovery"
	"mbot-service/internal/model"
	"mbot-service/internal/service"
)

type fixedScanner struct {
	scannerType string
	devices     []*discovery.DiscoveredDevice
}

func (s *fixedScanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	return s.devices, nil
}
func (s *fixedScanner) GetScannerType() string { return s.scannerType }
func (s *fixedScanner) IsAvailable() bool      { return true }

func newDiscoveryRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ds := service.NewDiscoveryService(logger, &fixedScanner{
		scannerType: "serial",
		devices: []*discovery.DiscoveredDevice{{
			ConnectionType: model.ConnectionTypeSerial,
			ConnectionInfo: map[string]interface{}{"port": "/dev/ttyUSB0"},
			Confidence:     0.9,
		}},
	})

	router := gin.New()
	h := NewDiscoveryHandler(ds, logger)
	router.GET("/discovery/scan", h.ScanDevices)
	router.GET("/discovery/scanners", h.GetScanners)
	return router
}

func TestDiscoveryHandler_Scan(t *testing.T) {
	router := newDiscoveryRouter(t)

	w := doJSON(router, http.MethodGet, "/discovery/scan?type=serial&timeout=2s", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, 1.0, data["devices_found"])
	assert.Contains(t, w.Body.String(), "/dev/ttyUSB0")
}

func TestDiscoveryHandler_InvalidRequest(t *testing.T) {
	router := newDiscoveryRouter(t)

	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/discovery/scan?type=wifi", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/discovery/scan?timeout=soon", nil).Code)
}

func TestDiscoveryHandler_Scanners(t *testing.T) {
	router := newDiscoveryRouter(t)

	w := doJSON(router, http.MethodGet, "/discovery/scanners", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"serial"`)
}

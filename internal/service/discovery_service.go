// internal/service/discovery_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mbot-service/internal/discovery"
	"mbot-service/internal/utils"
)

// maxScanTimeout bounds a single discovery request
const maxScanTimeout = 30 * time.Second

// ErrInvalidScanRequest is returned for an unknown scan type or bad timeout
var ErrInvalidScanRequest = errors.New("invalid scan request")

// ScanRequest represents a discovery request
type ScanRequest struct {
	ScanType string // all, serial, usb
	Timeout  string
}

// DiscoveryService finds candidate robot connections
type DiscoveryService struct {
	scannerManager *discovery.ScannerManager
	logger         *utils.ServiceLogger
}

// NewDiscoveryService creates a new discovery service over the given scanners
func NewDiscoveryService(logger *zap.Logger, scanners ...discovery.DeviceScanner) *DiscoveryService {
	ds := &DiscoveryService{
		scannerManager: discovery.NewScannerManager(logger),
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}

	for _, scanner := range scanners {
		ds.scannerManager.RegisterScanner(scanner)
	}

	ds.logger.Info("Discovery scanners initialized",
		zap.Strings("available_scanners", ds.scannerManager.GetAvailableScanners()),
	)
	return ds
}

// ScanDevices runs the requested scan
func (ds *DiscoveryService) ScanDevices(ctx context.Context, req *ScanRequest) ([]*discovery.DiscoveredDevice, error) {
	timeout := maxScanTimeout
	if req.Timeout != "" {
		parsed, err := time.ParseDuration(req.Timeout)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%w: timeout %q", ErrInvalidScanRequest, req.Timeout)
		}
		timeout = min(parsed, maxScanTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ds.logger.Info("Starting device scan", zap.String("type", req.ScanType))

	var devices []*discovery.DiscoveredDevice
	var err error

	switch req.ScanType {
	case "", "all":
		devices, err = ds.scannerManager.ScanAll(ctx)
	case "serial", "usb":
		devices, err = ds.scannerManager.ScanByType(ctx, req.ScanType)
	default:
		return nil, fmt.Errorf("%w: unsupported scan type %s", ErrInvalidScanRequest, req.ScanType)
	}

	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	ds.logger.Info("Device scan completed",
		zap.Int("devices_found", len(devices)),
		zap.String("scan_type", req.ScanType),
	)
	return devices, nil
}

// AvailableScanners lists the scanner types usable on this host
func (ds *DiscoveryService) AvailableScanners() []string {
	return ds.scannerManager.GetAvailableScanners()
}

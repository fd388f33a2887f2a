// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"mbot-service/internal/discovery"
	"mbot-service/internal/model"
)

// ErrNoPort is returned when no enumerated port looks like a robot
var ErrNoPort = errors.New("no matching serial port found")

// listPorts is swapped in tests
var listPorts = enumerator.GetDetailedPortsList

// Scanner finds serial ports backed by a USB-serial bridge
type Scanner struct {
	keywords []string
	logger   *zap.Logger
}

// NewScanner creates a serial scanner matching the given description keywords
func NewScanner(keywords []string, logger *zap.Logger) *Scanner {
	return &Scanner{
		keywords: keywords,
		logger:   logger.With(zap.String("scanner", "serial")),
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable reports whether the host can enumerate serial ports
func (s *Scanner) IsAvailable() bool {
	_, err := listPorts()
	return err == nil
}

// Scan lists ports that match a keyword or a known bridge vendor
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var found []*discovery.DiscoveredDevice
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		device, ok := identify(port, s.keywords)
		if !ok {
			s.logger.Debug("Skipping serial port", zap.String("port", port.Name))
			continue
		}
		found = append(found, device)
	}
	return found, nil
}

// FindPort returns the best matching port name
func FindPort(keywords []string) (string, error) {
	ports, err := listPorts()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	best, bestScore := "", 0.0
	for _, port := range ports {
		device, ok := identify(port, keywords)
		if ok && device.Confidence > bestScore {
			best, bestScore = port.Name, device.Confidence
		}
	}
	if best == "" {
		return "", ErrNoPort
	}
	return best, nil
}

// identify scores a port; keyword hits on the description win over vendor id alone
func identify(port *enumerator.PortDetails, keywords []string) (*discovery.DiscoveredDevice, bool) {
	device := &discovery.DiscoveredDevice{
		ConnectionType: model.ConnectionTypeSerial,
		ConnectionInfo: map[string]interface{}{
			"port": port.Name,
		},
		Description:  port.Product,
		SerialNumber: port.SerialNumber,
		Location:     port.Name,
	}

	if vid, err := strconv.ParseUint(port.VID, 16, 16); err == nil && port.IsUSB {
		device.ConnectionInfo["vendor_id"] = strings.ToUpper(port.VID)
		device.ConnectionInfo["product_id"] = strings.ToUpper(port.PID)
		if bridge, ok := discovery.LookupBridge(uint16(vid)); ok {
			device.Vendor = bridge.Vendor
			device.Chipset = bridge.Chipset
			device.Confidence = bridge.Confidence
		}
	}

	description := strings.ToUpper(port.Product + " " + port.Name)
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(description, strings.ToUpper(keyword)) {
			device.Confidence = max(device.Confidence, 0.7)
			break
		}
	}

	return device, device.Confidence > 0
}

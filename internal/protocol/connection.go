// internal/protocol/connection.go
package protocol

import "time"

// DefaultBaudRate is the mBot firmware serial speed
const DefaultBaudRate = 115200

// Known vendor characteristics that accept writes, in preference order.
// ffe3 is the Makeblock BLE module; the others appear on newer boards.
const (
	CharacteristicMakeblockWrite = "0000ffe3-0000-1000-8000-00805f9b34fb"
	CharacteristicFFF2           = "0000fff2-0000-1000-8000-00805f9b34fb"
	CharacteristicMakeblockV2    = "00006487-3c17-d293-8e48-14fe2e4da212"
)

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port         string        `json:"port"`
	BaudRate     int           `json:"baud_rate"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	SettleDelay  time.Duration `json:"settle_delay"`
	PortKeywords []string      `json:"port_keywords"`
}

// BLEConfig represents Bluetooth Low Energy connection configuration
type BLEConfig struct {
	Address             string   `json:"address"`
	NameFilters         []string `json:"name_filters"`
	WriteCharacteristic string   `json:"write_characteristic"`
}

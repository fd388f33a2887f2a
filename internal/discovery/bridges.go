// internal/discovery/bridges.go
package discovery

// Bridge is a USB-to-serial chip found on mBot boards and clones
type Bridge struct {
	Vendor     string
	Chipset    string
	Confidence float64
}

// mBot ships with a CH340; the rest show up on clones and Arduino-based rebuilds.
var bridgeVendors = map[uint16]Bridge{
	0x1A86: {Vendor: "QinHeng Electronics", Chipset: "CH340/CH341", Confidence: 0.9},
	0x10C4: {Vendor: "Silicon Labs", Chipset: "CP210x", Confidence: 0.6},
	0x0403: {Vendor: "FTDI", Chipset: "FT232", Confidence: 0.6},
	0x2341: {Vendor: "Arduino", Chipset: "ATmega16U2", Confidence: 0.5},
}

// LookupBridge identifies a USB-serial bridge by vendor id
func LookupBridge(vendorID uint16) (Bridge, bool) {
	b, ok := bridgeVendors[vendorID]
	return b, ok
}

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchAdvertisement_NameFilters(t *testing.T) {
	cfg := &BLEConfig{NameFilters: []string{"makeblock", "mbot"}}

	assert.True(t, matchAdvertisement(cfg, "AA:BB", "Makeblock_LE"))
	assert.True(t, matchAdvertisement(cfg, "AA:BB", "MBOT-1234"))
	assert.False(t, matchAdvertisement(cfg, "AA:BB", "JBL Flip"))
	assert.False(t, matchAdvertisement(cfg, "AA:BB", ""))
}

func TestMatchAdvertisement_ExplicitAddress(t *testing.T) {
	cfg := &BLEConfig{Address: "aa:bb:cc:dd:ee:ff", NameFilters: []string{"mbot"}}

	assert.True(t, matchAdvertisement(cfg, "AA:BB:CC:DD:EE:FF", ""))
	// the address pins the robot, a matching name elsewhere is ignored
	assert.False(t, matchAdvertisement(cfg, "11:22:33:44:55:66", "mbot"))
}

func TestPickWriteCharacteristic(t *testing.T) {
	discovered := []string{
		"00002a00-0000-1000-8000-00805f9b34fb",
		CharacteristicFFF2,
		CharacteristicMakeblockWrite,
	}

	i := pickWriteCharacteristic(discovered, writeCandidates(&BLEConfig{}))
	assert.Equal(t, 2, i, "ffe3 wins over fff2")

	i = pickWriteCharacteristic(discovered, writeCandidates(&BLEConfig{WriteCharacteristic: "00002A00-0000-1000-8000-00805F9B34FB"}))
	assert.Equal(t, 0, i, "configured characteristic wins")

	i = pickWriteCharacteristic([]string{"00002a00-0000-1000-8000-00805f9b34fb"}, writeCandidates(&BLEConfig{}))
	assert.Equal(t, -1, i)
}

// internal/link/sequence_test.go
package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_StartsAtOneAndWraps(t *testing.T) {
	var s sequence
	assert.Equal(t, uint8(1), s.next())

	for i := 2; i <= maxIndex; i++ {
		assert.Equal(t, uint8(i), s.next())
	}
	assert.Equal(t, uint8(1), s.next(), "254 wraps to 1, 0 and 255 are never handed out")
}

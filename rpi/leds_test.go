package rpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLevel(t *testing.T) {
	assert.Equal(t, 0.0, clampLevel(-0.5))
	assert.Equal(t, 0.0, clampLevel(0))
	assert.Equal(t, 0.25, clampLevel(0.25))
	assert.Equal(t, 1.0, clampLevel(1))
	assert.Equal(t, 1.0, clampLevel(1.7))
}

func TestLedDuty(t *testing.T) {
	assert.Equal(t, uint32(0), ledDuty(0))
	assert.Equal(t, uint32(ledCycle/2), ledDuty(0.5))
	assert.Equal(t, uint32(ledCycle), ledDuty(1))

	// Out-of-range levels are clamped, never wrapped.
	assert.Equal(t, uint32(0), ledDuty(-3))
	assert.Equal(t, uint32(ledCycle), ledDuty(2))
}

package rpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdhaus.net/crowctl/platform"
)

func TestPressDetector_ShortPress(t *testing.T) {
	d := newPressDetector(time.Second)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, d.sample(true, now))
	assert.Nil(t, d.sample(true, now.Add(50*time.Millisecond)), "holding produces nothing")

	press := d.sample(false, now.Add(200*time.Millisecond))
	require.NotNil(t, press)
	assert.Equal(t, platform.PressShort, press.Kind)
	assert.Equal(t, 200*time.Millisecond, press.Duration)
}

func TestPressDetector_LongPress(t *testing.T) {
	d := newPressDetector(time.Second)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, d.sample(true, now))
	press := d.sample(false, now.Add(1500*time.Millisecond))
	require.NotNil(t, press)
	assert.Equal(t, platform.PressLong, press.Kind)
}

func TestPressDetector_BounceIsIgnored(t *testing.T) {
	d := newPressDetector(time.Second)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, d.sample(true, now))
	assert.Nil(t, d.sample(false, now.Add(5*time.Millisecond)), "sub-debounce blips are dropped")

	// A real press afterwards still works.
	assert.Nil(t, d.sample(true, now.Add(time.Second)))
	press := d.sample(false, now.Add(time.Second+300*time.Millisecond))
	require.NotNil(t, press)
	assert.Equal(t, platform.PressShort, press.Kind)
}

func TestPressDetector_IdleProducesNothing(t *testing.T) {
	d := newPressDetector(time.Second)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		assert.Nil(t, d.sample(false, now.Add(time.Duration(i)*10*time.Millisecond)))
	}
}

package mode

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdhaus.net/crowctl/hardware"
)

func TestMode_Lifecycle(t *testing.T) {
	rig := newTestRig()
	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, m.State())

	require.NoError(t, m.Init())
	assert.Equal(t, Running, m.State())
	assert.Equal(t, time.Hour, m.nextInterval, "default action interval is 60 minutes")
	assert.Equal(t, 30*time.Second, m.statusInterval)

	m.Cleanup()
	assert.Equal(t, Terminated, m.State())
}

func TestMode_TimedActionTrigger(t *testing.T) {
	rig := newTestRig()
	rig.conf.Behavior.IntervalMinutes = 1 // 60s

	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	start := rig.clock.Now()

	// At t=59s nothing has fired yet.
	rig.clock.Step(59 * time.Second)
	m.Tick(rig.clock.Now())
	assert.Equal(t, start, m.lastActionTime)
	assert.Equal(t, 0, m.queue.Len())

	// At t=61s exactly one action fires and lastActionTime moves to 61.
	rig.clock.Step(2 * time.Second)
	m.Tick(rig.clock.Now())
	assert.Equal(t, start.Add(61*time.Second), m.lastActionTime)
	assert.Greater(t, m.queue.Len(), 0, "the action sequence is scheduled, not executed inline")

	// The very next tick does not fire again.
	before := m.lastActionTime
	rig.clock.Step(10 * time.Millisecond)
	m.Tick(rig.clock.Now())
	assert.Equal(t, before, m.lastActionTime)
}

func TestMode_DefaultActionSequenceOrder(t *testing.T) {
	rig := newTestRig()
	rig.conf.Behavior.IntervalMinutes = 1

	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	rig.clock.Step(61 * time.Second)
	m.Tick(rig.clock.Now())

	// Drain the whole sequence tick by tick.
	rig.tickThrough(m, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, rig.leds.fadeIns)
	assert.Equal(t, 1, rig.leds.fadeOuts)
	assert.Equal(t, []float64{rig.conf.Servo.TopPosition, rig.conf.Servo.BottomPosition}, rig.servo.moves)
	assert.Equal(t, 1, rig.servo.rests)
	assert.Equal(t, 2, rig.amp.randoms)
	// Volume set at start, restored at the end.
	require.Len(t, rig.amp.volumes, 2)
	assert.Equal(t, *rig.conf.Audio.Volume, rig.amp.volumes[0])
	assert.Equal(t, *rig.conf.Audio.Volume, rig.amp.volumes[1])

	// Fade-out comes after the servo rested.
	assert.Equal(t, "rest", rig.servo.calls[len(rig.servo.calls)-1])
}

func TestMode_QuietConditionLowersVolume(t *testing.T) {
	rig := newTestRig()
	rig.conf.Behavior.IntervalMinutes = 1
	rig.light.level = 2000 // dim: between the two thresholds

	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	rig.clock.Step(61 * time.Second)
	m.Tick(rig.clock.Now())
	rig.tickThrough(m, 3*time.Second, 10*time.Millisecond)

	require.NotEmpty(t, rig.amp.volumes)
	assert.Equal(t, rig.conf.Audio.QuietVolume, rig.amp.volumes[0])
}

func TestMode_NightActionFlashesOnly(t *testing.T) {
	rig := newTestRig()
	rig.conf.Behavior.IntervalMinutes = 1
	rig.light.level = 100 // dark

	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	rig.clock.Step(61 * time.Second)
	m.Tick(rig.clock.Now())
	rig.tickThrough(m, time.Second, 10*time.Millisecond)

	assert.Equal(t, []int{2}, rig.leds.flashes, "night flash count defaults to 2")
	assert.Empty(t, rig.servo.moves, "no servo work at night")
	assert.Zero(t, rig.amp.randoms, "no audio at night")
}

func TestMode_BatteryWarningPreemptsDarkness(t *testing.T) {
	rig := newTestRig()
	rig.conf.Behavior.IntervalMinutes = 1
	rig.light.level = 100     // dark
	rig.battery.voltage = 3.0 // critical

	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	rig.clock.Step(61 * time.Second)
	m.Tick(rig.clock.Now())
	rig.tickThrough(m, time.Second, 10*time.Millisecond)

	assert.Equal(t, []int{5}, rig.leds.flashes, "battery warning flash, not the night flash")
	assert.Empty(t, rig.servo.moves)
	assert.Zero(t, rig.amp.randoms, "battery warning skips all audio work")
}

func TestMode_ButtonPressTriggersImmediateAction(t *testing.T) {
	rig := newTestRig()

	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	m.HandleButtonPress()
	assert.Greater(t, m.queue.Len(), 0, "short press schedules the action sequence")
}

func TestMode_HookErrorStaysInsideTick(t *testing.T) {
	rig := newTestRig()
	rig.conf.Behavior.IntervalMinutes = 1

	m := New("explosive", rig.deps, Hooks{
		Action: func(m *Mode, cond hardware.Condition) error {
			panic("wiring loose")
		},
	})
	require.NoError(t, m.Init())

	rig.clock.Step(61 * time.Second)
	assert.NotPanics(t, func() { m.Tick(rig.clock.Now()) })
	assert.Equal(t, Running, m.State(), "a failing hook must not kill the mode")
	assert.Equal(t, []int{5}, rig.leds.flashes, "failure answered with the error flash")
}

func TestMode_UpdateHookRunsOnStatusInterval(t *testing.T) {
	rig := newTestRig()
	calls := 0

	m := New("counting", rig.deps, Hooks{
		Update: func(m *Mode) (bool, error) {
			calls++
			return true, nil
		},
	})
	require.NoError(t, m.Init())

	rig.clock.Step(29 * time.Second)
	m.Tick(rig.clock.Now())
	assert.Equal(t, 0, calls)

	rig.clock.Step(2 * time.Second)
	m.Tick(rig.clock.Now())
	assert.Equal(t, 1, calls)
}

func TestMode_UpdateHookCanStopMode(t *testing.T) {
	rig := newTestRig()

	m := New("oneshot", rig.deps, Hooks{
		Update: func(m *Mode) (bool, error) { return false, nil },
	})
	require.NoError(t, m.Init())

	rig.clock.Step(31 * time.Second)
	m.Tick(rig.clock.Now())
	assert.Equal(t, Terminated, m.State())
}

func TestMode_UpdateHookError(t *testing.T) {
	rig := newTestRig()

	m := New("flaky", rig.deps, Hooks{
		Update: func(m *Mode) (bool, error) {
			return true, errors.New("sensor glitch")
		},
	})
	require.NoError(t, m.Init())

	rig.clock.Step(31 * time.Second)
	m.Tick(rig.clock.Now())
	assert.Equal(t, Running, m.State(), "update errors do not terminate the mode")
	assert.Equal(t, []int{5}, rig.leds.flashes)
}

func TestMode_CleanupCancelsAndRests(t *testing.T) {
	rig := newTestRig()

	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	m.HandleButtonPress() // queue up a sequence
	require.Greater(t, m.queue.Len(), 0)

	m.Cleanup()
	assert.Equal(t, 0, m.queue.Len())
	assert.Equal(t, Terminated, m.State())

	// Neutral rest: lights off, audio stopped, servo centered, volume
	// back at baseline.
	assert.Contains(t, rig.leds.brightness, 0.0)
	assert.Equal(t, 1, rig.amp.stops)
	assert.Equal(t, 1, rig.servo.rests)
	require.NotEmpty(t, rig.amp.volumes)
	assert.Equal(t, *rig.conf.Audio.Volume, rig.amp.volumes[len(rig.amp.volumes)-1])

	// Pending actions never run after cleanup.
	rig.tickThrough(m, 5*time.Second, 100*time.Millisecond)
	assert.Empty(t, rig.servo.moves)
}

func TestMode_TerminatedModeIgnoresTicks(t *testing.T) {
	rig := newTestRig()

	m, err := NewDefaultMode(rig.deps)
	require.NoError(t, err)
	require.NoError(t, m.Init())
	m.Cleanup()

	rig.clock.Step(2 * time.Hour)
	m.Tick(rig.clock.Now())
	assert.Empty(t, rig.servo.moves)
	m.HandleButtonPress()
	assert.Equal(t, 0, m.queue.Len())
}

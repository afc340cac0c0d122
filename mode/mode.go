// Package mode implements the behavioral core of the bird: the mode
// state machine, the timed condition-check/action dispatch, and the
// manager cycling between modes on long button presses.
//
// Modes are composed, not inherited: a Mode owns the shared lifecycle
// and timing and a Hooks struct supplies the overridable behavior.
// Concrete modes (clock, random, debug, battery) close over their own
// state when building their hooks.
package mode

import (
	"fmt"
	"log/slog"
	"time"

	"birdhaus.net/crowctl/config"
	"birdhaus.net/crowctl/hardware"
	"birdhaus.net/crowctl/schedule"
	"birdhaus.net/crowctl/util"
)

// State is the lifecycle state of a mode.
type State int

const (
	Uninitialized State = iota
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Deps bundles what every mode needs to run. The hardware handles are
// owned by the App and lent to whichever mode is active.
type Deps struct {
	Bird  *hardware.Bird
	Conf  *config.Config
	Clock util.Clock
}

// Hooks are the override points of a mode. Any nil hook falls back to
// the default bird behavior.
type Hooks struct {
	// Init runs once during Mode.Init, after timing is set up.
	Init func(m *Mode) error
	// Update runs every status interval. Returning false terminates
	// the mode.
	Update func(m *Mode) (bool, error)
	// ButtonPress handles a short press. Long presses never reach a
	// mode - mode switching is owned by the manager so a misbehaving
	// mode cannot shadow it.
	ButtonPress func(m *Mode) error
	// Action performs the main behavior. cond is CondNormal or
	// CondQuiet; the other conditions dispatch to the hooks below.
	Action func(m *Mode, cond hardware.Condition) error
	// NightAction runs instead of Action when it is too dark.
	NightAction func(m *Mode) error
	// BatteryWarning runs when the battery is critical. It must stay
	// minimal and skip all motor/audio work.
	BatteryWarning func(m *Mode) error
	// NextInterval supplies the delay until the next timed action.
	NextInterval func(m *Mode) time.Duration
	// Cleanup runs during Mode.Cleanup, before the hardware is rested.
	Cleanup func(m *Mode)
}

// Mode is the state of one behavioral variant. Exactly one mode is
// active at a time; all methods run on the tick loop goroutine.
type Mode struct {
	name  string
	state State

	bird  *hardware.Bird
	conf  *config.Config
	clock util.Clock
	queue *schedule.Queue

	startTime      time.Time
	lastActionTime time.Time
	lastStatusTime time.Time
	actionInterval time.Duration
	statusInterval time.Duration
	nextInterval   time.Duration

	hooks Hooks
}

// New assembles a mode from deps and hooks. Nil hooks get the default
// bird behavior. The mode starts Uninitialized; call Init to run it.
func New(name string, deps Deps, hooks Hooks) *Mode {
	m := &Mode{
		name:  name,
		bird:  deps.Bird,
		conf:  deps.Conf,
		clock: deps.Clock,
		hooks: hooks,
	}
	if m.hooks.Update == nil {
		m.hooks.Update = defaultUpdate
	}
	if m.hooks.ButtonPress == nil {
		m.hooks.ButtonPress = defaultButtonPress
	}
	if m.hooks.Action == nil {
		m.hooks.Action = defaultAction
	}
	if m.hooks.NightAction == nil {
		m.hooks.NightAction = defaultNightAction
	}
	if m.hooks.BatteryWarning == nil {
		m.hooks.BatteryWarning = defaultBatteryWarning
	}
	if m.hooks.NextInterval == nil {
		m.hooks.NextInterval = func(m *Mode) time.Duration { return m.actionInterval }
	}
	return m
}

// Init resets all timestamps to now, reads the timing parameters from
// config and runs the mode-specific init hook. It transitions the mode
// from Uninitialized (or Terminated, on re-activation) to Running.
func (m *Mode) Init() error {
	now := m.clock.Now()
	m.startTime = now
	m.lastActionTime = now
	m.lastStatusTime = now
	m.actionInterval = m.conf.ActionInterval()
	m.statusInterval = m.conf.Behavior.StatusInterval
	m.queue = schedule.NewQueue(m.conf.Queue.MaxPending, m.clock)

	if m.hooks.Init != nil {
		if err := m.hooks.Init(m); err != nil {
			return fmt.Errorf("mode %s init: %w", m.name, err)
		}
	}
	m.nextInterval = m.hooks.NextInterval(m)
	m.state = Running
	slog.Info("Mode initialized", "mode", m.name,
		"action_interval", m.nextInterval, "status_interval", m.statusInterval)
	return nil
}

// Tick advances the mode by one loop iteration. It drains due scheduled
// actions, fires the timed action when its interval has elapsed and the
// update hook when the status interval has elapsed. Nothing in here
// blocks; all physical actuation goes through the queue.
func (m *Mode) Tick(now time.Time) {
	if m.state != Running {
		return
	}

	m.queue.DrainDue(now)

	if now.Sub(m.lastActionTime) >= m.nextInterval {
		slog.Debug("Action time", "mode", m.name, "elapsed", now.Sub(m.lastActionTime))
		m.checkConditionsAndAct()
		m.lastActionTime = now
		m.nextInterval = m.hooks.NextInterval(m)
	}

	if now.Sub(m.lastStatusTime) >= m.statusInterval {
		m.lastStatusTime = now
		cont, err := m.runUpdate()
		if err != nil {
			slog.Error("Mode update failed", "mode", m.name, "error", err)
			m.indicateError()
		} else if !cont {
			slog.Info("Mode completed normally", "mode", m.name)
			m.Cleanup()
		}
	}
}

// HandleButtonPress routes a short press to the mode hook. Errors stay
// inside the tick boundary: logged, answered with the error flash.
func (m *Mode) HandleButtonPress() {
	if m.state != Running {
		return
	}
	slog.Info("Button press", "mode", m.name)
	if err := guard("button press", func() error { return m.hooks.ButtonPress(m) }); err != nil {
		slog.Error("Button handler failed", "mode", m.name, "error", err)
		m.indicateError()
	}
}

// checkConditionsAndAct classifies the environment and dispatches to
// exactly one action variant. Critical battery pre-empts everything,
// then darkness, then normal/quiet.
func (m *Mode) checkConditionsAndAct() {
	cond := m.bird.Conditions.Evaluate()
	slog.Info("Condition check", "mode", m.name, "condition", cond)

	var err error
	switch cond {
	case hardware.CondCriticalBattery:
		err = guard("battery warning", func() error { return m.hooks.BatteryWarning(m) })
	case hardware.CondDark:
		err = guard("night action", func() error { return m.hooks.NightAction(m) })
	default:
		err = guard("action", func() error { return m.hooks.Action(m, cond) })
	}
	if err != nil {
		slog.Error("Action dispatch failed", "mode", m.name, "error", err)
		m.indicateError()
	}
}

// Cleanup cancels all pending scheduled actions, runs the mode-specific
// cleanup hook and forces the hardware back to the neutral resting
// configuration. The mode ends up Terminated.
func (m *Mode) Cleanup() {
	cancelled := 0
	if m.queue != nil {
		cancelled = m.queue.CancelAll()
	}
	if m.hooks.Cleanup != nil {
		if err := guard("cleanup", func() error { m.hooks.Cleanup(m); return nil }); err != nil {
			slog.Warn("Mode cleanup hook failed", "mode", m.name, "error", err)
		}
	}
	m.bird.Rest()
	if err := m.bird.Amp.SetVolume(*m.conf.Audio.Volume); err != nil {
		slog.Warn("Restoring volume failed", "error", err)
	}
	m.state = Terminated
	slog.Info("Mode cleaned up", "mode", m.name, "cancelled_actions", cancelled)
}

// Name returns the mode name.
func (m *Mode) Name() string { return m.name }

// SetActionInterval overrides the timed-action interval. Used by modes
// whose trigger cadence differs from the global behavior interval, e.g.
// the clock chime. Effective from the next interval computation.
func (m *Mode) SetActionInterval(d time.Duration) {
	m.actionInterval = d
	m.nextInterval = m.hooks.NextInterval(m)
}

// State returns the lifecycle state.
func (m *Mode) State() State { return m.state }

// Queue returns the mode's delayed-action queue. Nil before Init.
func (m *Mode) Queue() *schedule.Queue { return m.queue }

// Runtime returns how long the mode has been running.
func (m *Mode) Runtime() time.Duration { return m.clock.Since(m.startTime) }

// UntilNextAction returns the time left until the next timed action.
func (m *Mode) UntilNextAction() time.Duration {
	remaining := m.nextInterval - m.clock.Since(m.lastActionTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (m *Mode) runUpdate() (cont bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			cont, err = true, fmt.Errorf("panic in update: %v", r)
		}
	}()
	return m.hooks.Update(m)
}

// indicateError gives the only user-visible failure signal the bird
// has: the distinct error flash pattern.
func (m *Mode) indicateError() {
	if err := m.bird.Leds.Flash(m.conf.Behavior.ErrorFlashCount); err != nil {
		slog.Warn("Error indication failed", "error", err)
	}
}

// guard runs a hook and converts panics into errors so nothing escapes
// the tick boundary.
func guard(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", what, r)
		}
	}()
	return fn()
}

// Default hook implementations - the classic bird behavior.

// defaultAction schedules the fixed light-rotate-caw sequence. The
// whole multi-second performance is expressed as offset actions so the
// tick loop stays responsive to the button throughout.
func defaultAction(m *Mode, cond hardware.Condition) error {
	bird := m.bird
	step := m.conf.Behavior.StepDelay

	volume := *m.conf.Audio.Volume
	if cond == hardware.CondQuiet {
		volume = m.conf.Audio.QuietVolume
	}

	type stage struct {
		offset time.Duration
		label  string
		fn     func() error
	}
	stages := []stage{
		{0, "set-volume", func() error { return bird.Amp.SetVolume(volume) }},
		{0, "fade-in", bird.Leds.FadeIn},
		{0, "move-top-caw", func() error {
			if err := bird.Servo.MoveTo(m.conf.Servo.TopPosition); err != nil {
				return err
			}
			return bird.Amp.PlayRandom()
		}},
		{step, "move-bottom-caw", func() error {
			if err := bird.Servo.MoveTo(m.conf.Servo.BottomPosition); err != nil {
				return err
			}
			return bird.Amp.PlayRandom()
		}},
		{2 * step, "rest", bird.Servo.Rest},
		{3 * step, "fade-out", bird.Leds.FadeOut},
		{3 * step, "restore-volume", func() error { return bird.Amp.SetVolume(*m.conf.Audio.Volume) }},
	}
	for _, s := range stages {
		if _, err := m.queue.Schedule(s.offset, s.label, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// defaultNightAction keeps the feedback silent: a couple of eye flashes
// and nothing else.
func defaultNightAction(m *Mode) error {
	flashes := m.conf.Behavior.NightFlashCount
	_, err := m.queue.Schedule(0, "night-flash", func() error {
		return m.bird.Leds.Flash(flashes)
	})
	return err
}

// defaultBatteryWarning is the minimal non-destructive signal: flashes
// only, no servo, no audio, to conserve what power is left.
func defaultBatteryWarning(m *Mode) error {
	_, err := m.queue.Schedule(0, "battery-warning-flash", func() error {
		return m.bird.Leds.Flash(5)
	})
	return err
}

func defaultUpdate(m *Mode) (bool, error) {
	slog.Info("Mode status", "mode", m.name,
		"runtime", m.Runtime().Round(time.Second),
		"next_action_in", m.UntilNextAction().Round(time.Second),
		"pending_actions", m.queue.Len())
	return true, nil
}

// defaultButtonPress performs an immediate action.
func defaultButtonPress(m *Mode) error {
	m.checkConditionsAndAct()
	return nil
}

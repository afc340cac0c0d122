package mode

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"birdhaus.net/crowctl/hardware"
)

// clockState is the per-activation state of the clock mode. It is
// created fresh in the constructor, never shared at package level, so a
// mode switch always starts over at 12.
type clockState struct {
	hour int // 1..12
	rng  *rand.Rand
}

// NewClockMode builds the hourly-chime mode. The bird chimes the set
// hour on every trigger; a short press advances the hour (wrapping
// 12 to 1), a long press still cycles modes globally.
func NewClockMode(deps Deps) (*Mode, error) {
	state := &clockState{
		hour: 12,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	hooks := Hooks{
		Init: func(m *Mode) error {
			state.hour = 12
			interval := time.Duration(m.conf.Clock.ChimeIntervalMinutes) * time.Minute
			m.SetActionInterval(interval)
			// Confirm the starting hour so the owner knows where the
			// bird thinks it stands.
			return flashHourConfirmation(m, state.hour)
		},
		ButtonPress: func(m *Mode) error {
			state.hour = advanceHour(state.hour)
			slog.Info("Hour advanced", "hour", state.hour)
			if err := flashHourConfirmation(m, state.hour); err != nil {
				return err
			}
			if m.conf.Clock.ButtonImmediateChime {
				return performChime(m, state, m.bird.Conditions.Evaluate())
			}
			return nil
		},
		Action: func(m *Mode, cond hardware.Condition) error {
			return performChime(m, state, cond)
		},
		NightAction: func(m *Mode) error {
			return performChime(m, state, hardware.CondDark)
		},
		Update: func(m *Mode) (bool, error) {
			slog.Info("Clock status", "hour", state.hour,
				"next_chime_in", m.UntilNextAction().Round(time.Second))
			return true, nil
		},
	}
	return New("clock", deps, hooks), nil
}

// advanceHour cycles 1..12.
func advanceHour(hour int) int {
	hour++
	if hour > 12 {
		hour = 1
	}
	return hour
}

// flashHourConfirmation flashes the eyes once per hour count.
func flashHourConfirmation(m *Mode, hour int) error {
	_, err := m.queue.Schedule(0, "hour-confirm", func() error {
		return m.bird.Leds.Flash(hour)
	})
	return err
}

// performChime schedules the chime for the currently set hour. Clip
// selection happens up front (pure bin-packing over the configured
// chime weights); the pulses are then queued with relative offsets so
// the tick loop stays responsive over the whole sequence. In the dark
// the chime is audio-only at reduced presence; the battery-warning
// branch never reaches here.
func performChime(m *Mode, state *clockState, cond hardware.Condition) error {
	target := state.hour
	conf := m.conf
	bird := m.bird
	full := cond != hardware.CondDark
	gap := conf.Clock.PulseGap

	clips := SelectChimeClips(conf.Clock.Clips, target, conf.Clock.FallbackPolicy, state.rng)
	pulses := len(clips)
	if pulses == 0 {
		// No clips configured: one random clip per caw.
		pulses = target
	}
	slog.Info("Chiming", "hour", target, "pulses", pulses, "full", full)

	if _, err := m.queue.Schedule(0, "chime-volume", func() error {
		return bird.Amp.SetVolume(*conf.Clock.ChimeVolume)
	}); err != nil {
		return err
	}
	if full {
		if _, err := m.queue.Schedule(0, "chime-fade-in", bird.Leds.FadeIn); err != nil {
			return err
		}
	}

	for i := 0; i < pulses; i++ {
		// Fresh bindings per pulse; the closures must not share the
		// loop variable.
		pulse := i
		var clip string
		if len(clips) > 0 {
			clip = clips[pulse]
		}
		offset := time.Duration(pulse) * gap
		label := fmt.Sprintf("chime-pulse-%d", pulse+1)
		if _, err := m.queue.Schedule(offset, label, func() error {
			if full {
				position := conf.Servo.TopPosition
				if pulse%2 == 1 {
					position = conf.Servo.BottomPosition
				}
				if err := bird.Servo.MoveTo(position); err != nil {
					return err
				}
			}
			if clip == "" {
				return bird.Amp.PlayRandom()
			}
			return bird.Amp.Play(clip)
		}); err != nil {
			return err
		}
	}

	end := time.Duration(pulses) * gap
	if full {
		if _, err := m.queue.Schedule(end, "chime-rest", bird.Servo.Rest); err != nil {
			return err
		}
		if _, err := m.queue.Schedule(end+gap/2, "chime-fade-out", bird.Leds.FadeOut); err != nil {
			return err
		}
	}
	if _, err := m.queue.Schedule(end+gap/2, "chime-volume-restore", func() error {
		return bird.Amp.SetVolume(*conf.Audio.Volume)
	}); err != nil {
		return err
	}
	return nil
}

package rpi

import (
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"birdhaus.net/crowctl/config"
)

// Eye LED PWM: cycle length 1024 gives 10 bit brightness resolution at
// a flicker-free output frequency.
const (
	ledCycle = 1024
	ledFreq  = 100 * ledCycle

	flashInterval = 150 * time.Millisecond
)

// Leds drives the PWM-dimmed eye LEDs. Fades and flashes run on their
// own goroutine so the caller never blocks on an animation; starting a
// new animation cancels the one still running.
type Leds struct {
	pin  rpio.Pin
	conf config.LedsConfig

	mu    sync.Mutex
	level float64
	seq   int
}

func newLeds(pin int, conf config.LedsConfig) *Leds {
	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	p.Freq(ledFreq)
	l := &Leds{pin: p, conf: conf}
	l.setLocked(0)
	return l
}

// SetBrightness sets the eye brightness immediately, 0.0 to 1.0, and
// cancels any running animation.
func (l *Leds) SetBrightness(level float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.setLocked(level)
	return nil
}

// FadeIn ramps the eyes up to the configured maximum brightness.
func (l *Leds) FadeIn() error {
	l.animate(func(seq int) {
		for l.stepTowards(seq, l.conf.MaxBrightness) {
			time.Sleep(l.conf.FadeDelay)
		}
	})
	return nil
}

// FadeOut ramps the eyes down to dark.
func (l *Leds) FadeOut() error {
	l.animate(func(seq int) {
		for l.stepTowards(seq, 0) {
			time.Sleep(l.conf.FadeDelay)
		}
	})
	return nil
}

// Flash blinks the eyes the given number of times and leaves them dark.
func (l *Leds) Flash(times int) error {
	l.animate(func(seq int) {
		for i := 0; i < times; i++ {
			if !l.setIfCurrent(seq, l.conf.MaxBrightness) {
				return
			}
			time.Sleep(flashInterval)
			if !l.setIfCurrent(seq, 0) {
				return
			}
			time.Sleep(flashInterval)
		}
	})
	return nil
}

// animate claims a new animation sequence number and runs fn on its own
// goroutine. A later animation or SetBrightness bumps the sequence and
// fn's remaining steps become no-ops.
func (l *Leds) animate(fn func(seq int)) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()
	go fn(seq)
}

// stepTowards moves one fade step towards target. It reports whether
// the animation should continue.
func (l *Leds) stepTowards(seq int, target float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq != seq {
		return false
	}
	diff := target - l.level
	if diff == 0 {
		return false
	}
	step := l.conf.FadeStep
	if diff < 0 {
		step = -step
	}
	next := l.level + step
	if (step > 0 && next > target) || (step < 0 && next < target) {
		next = target
	}
	l.setLocked(next)
	return next != target
}

func (l *Leds) setIfCurrent(seq int, level float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq != seq {
		return false
	}
	l.setLocked(level)
	return true
}

func (l *Leds) setLocked(level float64) {
	l.level = clampLevel(level)
	l.pin.DutyCycle(ledDuty(l.level), ledCycle)
}

func clampLevel(level float64) float64 { return min(max(level, 0), 1) }

func ledDuty(level float64) uint32 { return uint32(clampLevel(level) * ledCycle) }

// Package hardware defines the capability interfaces the scheduler
// core drives. The rpi package implements them against real GPIO/SPI
// hardware, the tui package against a terminal simulation. The core
// never talks to a driver directly, only through these contracts.
package hardware

import "log/slog"

// Servo is the beak/body actuator. Positions are normalized to [0, 1];
// Rest returns to the configured neutral position.
type Servo interface {
	MoveTo(position float64) error
	Rest() error
}

// Leds drives the eye LEDs. Brightness is normalized to [0, 1].
type Leds interface {
	FadeIn() error
	FadeOut() error
	Flash(times int) error
	SetBrightness(level float64) error
}

// Amplifier plays audio clips. Play and PlayRandom are fire-and-forget:
// they start playback and return immediately so the tick loop never
// blocks on a clip. Stop cuts any clip that is still playing.
type Amplifier interface {
	Play(clip string) error
	PlayRandom() error
	SetVolume(level float64) error
	Stop() error
}

// LightSensor reports the ambient light level as a raw ADC reading.
type LightSensor interface {
	Read() (int, error)
}

// Battery reports the supply voltage.
type Battery interface {
	Voltage() (float64, error)
}

// Bird bundles the hardware handles lent to whichever mode is active.
// Light and Power may be nil when the build has no such sensor fitted;
// the condition evaluator handles the fallbacks.
type Bird struct {
	Servo      Servo
	Leds       Leds
	Amp        Amplifier
	Light      LightSensor
	Power      Battery
	Conditions *Evaluator
}

// Rest forces the bird into the neutral resting configuration: lights
// off, audio stopped, servo centered. Errors are logged, not returned -
// rest is a best-effort recovery path and every handle gets its chance.
func (b *Bird) Rest() {
	if err := b.Leds.SetBrightness(0); err != nil {
		slog.Warn("Rest: turning off LEDs failed", "error", err)
	}
	if err := b.Amp.Stop(); err != nil {
		slog.Warn("Rest: stopping audio failed", "error", err)
	}
	if err := b.Servo.Rest(); err != nil {
		slog.Warn("Rest: centering servo failed", "error", err)
	}
}

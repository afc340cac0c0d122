package rpi

import (
	"log/slog"

	"github.com/stianeikeland/go-rpio/v4"

	"birdhaus.net/crowctl/config"
)

// Standard hobby servo timing: 50Hz period, pulse width 1ms..2ms. With
// a cycle length of 2000 one duty unit is 10us, so position 0..1 maps
// to duty 100..200.
const (
	servoCycle   = 2000
	servoFreq    = 50 * servoCycle
	servoDutyMin = 100
	servoDutyMax = 200
)

// Servo drives the beak servo over hardware PWM.
type Servo struct {
	pin  rpio.Pin
	conf config.ServoConfig
}

func newServo(pin int, conf config.ServoConfig) *Servo {
	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	p.Freq(servoFreq)
	s := &Servo{pin: p, conf: conf}
	s.apply(conf.RestPosition)
	return s
}

// MoveTo positions the servo, 0.0 is bottom, 1.0 is top. Setting the
// duty cycle is instant; the physical travel time is paced by the
// caller's scheduling.
func (s *Servo) MoveTo(position float64) error {
	s.apply(position)
	return nil
}

// Rest returns the servo to the neutral position.
func (s *Servo) Rest() error {
	return s.MoveTo(s.conf.RestPosition)
}

func (s *Servo) apply(position float64) {
	duty := servoDuty(position)
	slog.Debug("Servo move", "position", position, "duty", duty)
	s.pin.DutyCycle(duty, servoCycle)
}

// servoDuty maps a 0..1 position to the PWM duty length, clamping
// out-of-range positions.
func servoDuty(position float64) uint32 {
	position = min(max(position, 0), 1)
	return uint32(servoDutyMin + position*(servoDutyMax-servoDutyMin))
}

// halt stops the PWM signal so the servo stops holding its position.
func (s *Servo) halt() {
	s.pin.DutyCycle(0, servoCycle)
}

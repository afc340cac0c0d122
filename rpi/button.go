package rpi

import (
	"time"

	"birdhaus.net/crowctl/platform"
)

// Presses shorter than this are treated as contact bounce.
const debounceMin = 50 * time.Millisecond

// pressDetector turns a stream of sampled button levels into completed
// press events. It is pure state so the polling loop stays trivially
// testable without GPIO.
type pressDetector struct {
	longThreshold time.Duration
	held          bool
	pressStart    time.Time
}

func newPressDetector(longThreshold time.Duration) *pressDetector {
	return &pressDetector{longThreshold: longThreshold}
}

// sample consumes one button level reading, true while the button is
// held down. A completed press is returned on release, nil otherwise.
func (d *pressDetector) sample(pressed bool, now time.Time) *platform.Press {
	switch {
	case pressed && !d.held:
		d.held = true
		d.pressStart = now
	case !pressed && d.held:
		d.held = false
		held := now.Sub(d.pressStart)
		if held < debounceMin {
			return nil
		}
		return platform.NewPress(platform.Classify(held, d.longThreshold), held, now)
	}
	return nil
}

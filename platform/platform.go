// Package platform abstracts the physical bird from the terminal
// simulation. Both implementations assemble the same hardware
// capability set and deliver button presses on a channel; the rest of
// the application never knows which one it is talking to.
package platform

import (
	"time"

	"birdhaus.net/crowctl/hardware"
)

// Platform is the interface the application drives the bird through.
type Platform interface {
	// Start initializes the platform (opens GPIO/SPI, or starts the TUI).
	Start() error

	// Stop cleans up all platform resources.
	Stop()

	// Bird returns the assembled hardware capability set. Only valid
	// after Start has returned successfully.
	Bird() *hardware.Bird

	// ButtonEvents returns the channel button presses are delivered on.
	ButtonEvents() <-chan *Press

	// Ready is closed once the platform is fully up. The TUI uses this
	// to signal that log output can be redirected to its log pane.
	Ready() <-chan bool
}

// PressKind distinguishes the two button gestures the bird knows.
type PressKind int

const (
	// PressShort is the mode-specific interaction.
	PressShort PressKind = iota
	// PressLong cycles to the next available mode.
	PressLong
)

func (k PressKind) String() string {
	if k == PressLong {
		return "long"
	}
	return "short"
}

// Press represents one completed button press.
type Press struct {
	Kind      PressKind
	Duration  time.Duration
	Timestamp time.Time
}

// NewPress creates a new Press instance.
func NewPress(kind PressKind, duration time.Duration, timestamp time.Time) *Press {
	inst := Press{
		Kind:      kind,
		Duration:  duration,
		Timestamp: timestamp,
	}
	return &inst
}

// Classify maps a hold duration to the press kind.
func Classify(held time.Duration, longThreshold time.Duration) PressKind {
	if held >= longThreshold {
		return PressLong
	}
	return PressShort
}

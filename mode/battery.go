package mode

import (
	"log/slog"

	"birdhaus.net/crowctl/hardware"
)

// NewBatteryMode is the low-power monitoring variant: on every trigger
// it reads and logs the battery state and gives a single dim blink as a
// sign of life. No servo, no audio - the point is to spend as little
// power as possible while still tracking system health.
func NewBatteryMode(deps Deps) (*Mode, error) {
	hooks := Hooks{
		Action: func(m *Mode, cond hardware.Condition) error {
			return reportBattery(m)
		},
		NightAction: func(m *Mode) error {
			return reportBattery(m)
		},
		ButtonPress: func(m *Mode) error {
			return reportBattery(m)
		},
	}
	return New("battery", deps, hooks), nil
}

func reportBattery(m *Mode) error {
	if m.bird.Power == nil {
		slog.Info("Battery monitoring not available")
	} else if voltage, err := m.bird.Power.Voltage(); err != nil {
		slog.Warn("Battery read failed", "error", err)
	} else {
		slog.Info("Battery status", "voltage", voltage,
			"critical", voltage <= m.conf.Battery.CriticalVoltage)
	}

	// A very dim blink keeps the power cost of the sign of life low.
	if _, err := m.queue.Schedule(0, "battery-blink", func() error {
		return m.bird.Leds.SetBrightness(0.1)
	}); err != nil {
		return err
	}
	_, err := m.queue.Schedule(m.conf.Behavior.StepDelay/2, "battery-blink-off", func() error {
		return m.bird.Leds.SetBrightness(0)
	})
	return err
}

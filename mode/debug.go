package mode

import (
	"fmt"
	"log/slog"
	"time"
)

// NewDebugMode is the component test harness: timed actions run on a
// short interval and every short press steps through a fixed list of
// hardware tests instead of performing the bird action.
func NewDebugMode(deps Deps) (*Mode, error) {
	state := &debugState{}

	hooks := Hooks{
		Init: func(m *Mode) error {
			state.testIndex = 0
			m.SetActionInterval(time.Duration(m.conf.Debug.IntervalSeconds) * time.Second)
			slog.Info("Debug mode ready - press button to run tests")
			return nil
		},
		ButtonPress: func(m *Mode) error {
			return state.runNextTest(m)
		},
		Update: func(m *Mode) (bool, error) {
			slog.Info("Debug status",
				"next_test", state.testIndex,
				"pending_actions", m.queue.Len(),
				"battery_ok", m.bird.Conditions.BatteryOK(),
				"light", m.bird.Conditions.LightCondition())
			return true, nil
		},
	}
	return New("debug", deps, hooks), nil
}

type debugState struct {
	testIndex int
}

type componentTest struct {
	name string
	run  func(m *Mode) error
}

func debugTests() []componentTest {
	return []componentTest{
		{"led", func(m *Mode) error {
			_, err := m.queue.Schedule(0, "test-led", func() error {
				return m.bird.Leds.Flash(3)
			})
			return err
		}},
		{"servo", func(m *Mode) error {
			step := m.conf.Behavior.StepDelay
			if _, err := m.queue.Schedule(0, "test-servo-top", func() error {
				return m.bird.Servo.MoveTo(m.conf.Servo.TopPosition)
			}); err != nil {
				return err
			}
			if _, err := m.queue.Schedule(step, "test-servo-bottom", func() error {
				return m.bird.Servo.MoveTo(m.conf.Servo.BottomPosition)
			}); err != nil {
				return err
			}
			_, err := m.queue.Schedule(2*step, "test-servo-rest", m.bird.Servo.Rest)
			return err
		}},
		{"audio", func(m *Mode) error {
			_, err := m.queue.Schedule(0, "test-audio", m.bird.Amp.PlayRandom)
			return err
		}},
		{"sensors", func(m *Mode) error {
			slog.Info("Sensor test",
				"light", m.bird.Conditions.LightCondition(),
				"battery_ok", m.bird.Conditions.BatteryOK())
			return nil
		}},
		{"full-action", func(m *Mode) error {
			m.checkConditionsAndAct()
			return nil
		}},
	}
}

func (s *debugState) runNextTest(m *Mode) error {
	tests := debugTests()
	if s.testIndex >= len(tests) {
		s.testIndex = 0
		slog.Info("Restarting test sequence")
	}
	test := tests[s.testIndex]
	s.testIndex++
	slog.Info("Running component test", "test", test.name,
		"position", fmt.Sprintf("%d/%d", s.testIndex, len(tests)))
	return test.run(m)
}

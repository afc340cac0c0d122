package mode

import (
	"log/slog"
	"math/rand"
	"time"
)

// NewRandomMode behaves like the default mode but resamples every
// action interval independently as base * uniform(1-v, 1+v). With the
// default variance of 0.25 and a 60 minute base, actions land randomly
// between 45 and 75 minutes apart.
func NewRandomMode(deps Deps) (*Mode, error) {
	state := &randomState{
		variance: 0.25,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	hooks := Hooks{
		Init: func(m *Mode) error {
			state.variance = validatedVariance(*m.conf.Random.IntervalVariance)
			slog.Info("Random mode ready",
				"base_interval", m.conf.ActionInterval(),
				"variance", state.variance)
			return nil
		},
		NextInterval: func(m *Mode) time.Duration {
			next := state.sample(m.actionInterval)
			slog.Debug("Randomized interval", "base", m.actionInterval, "next", next)
			return next
		},
	}
	return New("random", deps, hooks), nil
}

type randomState struct {
	variance float64
	rng      *rand.Rand
}

// sample draws uniformly from [base*(1-v), base*(1+v)].
func (s *randomState) sample(base time.Duration) time.Duration {
	span := 2 * s.variance * float64(base)
	low := float64(base) * (1 - s.variance)
	return time.Duration(low + s.rng.Float64()*span)
}

// validatedVariance rejects values outside [0, 1] and substitutes the
// default of 0.25.
func validatedVariance(v float64) float64 {
	if v < 0 || v > 1 {
		slog.Warn("Invalid interval variance, using default", "variance", v, "default", 0.25)
		return 0.25
	}
	return v
}

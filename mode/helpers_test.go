package mode

import (
	"time"

	"birdhaus.net/crowctl/config"
	"birdhaus.net/crowctl/hardware"
	"birdhaus.net/crowctl/util"
)

// Call-recording fakes for the hardware capability interfaces. The
// tick loop is single-threaded, so no locking is needed here either.

type fakeServo struct {
	moves []float64
	rests int
	calls []string
}

func (f *fakeServo) MoveTo(position float64) error {
	f.moves = append(f.moves, position)
	f.calls = append(f.calls, "move")
	return nil
}

func (f *fakeServo) Rest() error {
	f.rests++
	f.calls = append(f.calls, "rest")
	return nil
}

type fakeLeds struct {
	fadeIns    int
	fadeOuts   int
	flashes    []int
	brightness []float64
	calls      []string
}

func (f *fakeLeds) FadeIn() error {
	f.fadeIns++
	f.calls = append(f.calls, "fade-in")
	return nil
}

func (f *fakeLeds) FadeOut() error {
	f.fadeOuts++
	f.calls = append(f.calls, "fade-out")
	return nil
}

func (f *fakeLeds) Flash(times int) error {
	f.flashes = append(f.flashes, times)
	f.calls = append(f.calls, "flash")
	return nil
}

func (f *fakeLeds) SetBrightness(level float64) error {
	f.brightness = append(f.brightness, level)
	f.calls = append(f.calls, "brightness")
	return nil
}

type fakeAmp struct {
	played  []string
	randoms int
	volumes []float64
	stops   int
}

func (f *fakeAmp) Play(clip string) error {
	f.played = append(f.played, clip)
	return nil
}

func (f *fakeAmp) PlayRandom() error {
	f.randoms++
	return nil
}

func (f *fakeAmp) SetVolume(level float64) error {
	f.volumes = append(f.volumes, level)
	return nil
}

func (f *fakeAmp) Stop() error {
	f.stops++
	return nil
}

type fakeLight struct {
	level int
}

func (f *fakeLight) Read() (int, error) { return f.level, nil }

type fakeBattery struct {
	voltage float64
}

func (f *fakeBattery) Voltage() (float64, error) { return f.voltage, nil }

// testRig bundles everything a mode test needs to drive the core.
type testRig struct {
	deps    Deps
	conf    *config.Config
	clock   *util.SteppedClock
	servo   *fakeServo
	leds    *fakeLeds
	amp     *fakeAmp
	light   *fakeLight
	battery *fakeBattery
}

func newTestRig(mutate ...func(*config.Config)) *testRig {
	conf := &config.Config{}
	conf.ApplyDefaults()
	conf.AvailableModes = []string{"default", "clock", "random"}
	for _, fn := range mutate {
		fn(conf)
	}

	clock := util.NewSteppedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	servo := &fakeServo{}
	leds := &fakeLeds{}
	amp := &fakeAmp{}
	light := &fakeLight{level: 5000}      // normal light
	battery := &fakeBattery{voltage: 4.0} // healthy

	bird := &hardware.Bird{
		Servo: servo,
		Leds:  leds,
		Amp:   amp,
		Light: light,
		Power: battery,
	}
	bird.Conditions = hardware.NewEvaluator(light, battery, conf, clock)

	return &testRig{
		deps:    Deps{Bird: bird, Conf: conf, Clock: clock},
		conf:    conf,
		clock:   clock,
		servo:   servo,
		leds:    leds,
		amp:     amp,
		light:   light,
		battery: battery,
	}
}

// tickThrough advances the clock in small steps up to d, ticking the
// mode at every step so scheduled actions drain in order.
func (r *testRig) tickThrough(m *Mode, d time.Duration, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		r.clock.Step(step)
		m.Tick(r.clock.Now())
	}
}

package tui

import (
	"sync"
	"time"

	"birdhaus.net/crowctl/config"
	"birdhaus.net/crowctl/util"
)

// BirdState is one snapshot of the simulated bird, rendered by the TUI.
type BirdState struct {
	Brightness float64
	ServoPos   float64
	Volume     float64
	Clip       string
	LightLevel int
	Voltage    float64
}

// simState is the shared state behind all simulated drivers. Every
// mutation publishes a snapshot through the AtomicEvent, so a slow
// redraw never stalls the tick loop.
type simState struct {
	mu      sync.Mutex
	state   BirdState
	changed *util.AtomicEvent[BirdState]
	seq     int
}

func newSimState(conf *config.Config) *simState {
	s := &simState{changed: util.NewAtomicEvent[BirdState]()}
	s.state = BirdState{
		ServoPos:   conf.Servo.RestPosition,
		Volume:     *conf.Audio.Volume,
		LightLevel: conf.Sensors.QuietLightThreshold + 2000,
		Voltage:    4.0,
	}
	s.changed.Send(s.state)
	return s
}

func (s *simState) update(fn func(*BirdState)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	s.mu.Unlock()
	s.changed.Send(snapshot)
}

// claim starts a new animation and returns its sequence number. An
// animation step only applies while its number is still current.
func (s *simState) claim() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *simState) updateIfCurrent(seq int, fn func(*BirdState)) bool {
	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		return false
	}
	fn(&s.state)
	snapshot := s.state
	s.mu.Unlock()
	s.changed.Send(snapshot)
	return true
}

// Simulated drivers for the hardware capability interfaces.

type simServo struct {
	state *simState
	rest  float64
}

func (s *simServo) MoveTo(position float64) error {
	position = min(max(position, 0), 1)
	s.state.update(func(b *BirdState) { b.ServoPos = position })
	return nil
}

func (s *simServo) Rest() error {
	s.state.update(func(b *BirdState) { b.ServoPos = s.rest })
	return nil
}

type simLeds struct {
	state *simState
	conf  config.LedsConfig
}

func (l *simLeds) SetBrightness(level float64) error {
	l.state.claim()
	l.state.update(func(b *BirdState) { b.Brightness = min(max(level, 0), 1) })
	return nil
}

func (l *simLeds) FadeIn() error {
	l.fadeTo(l.conf.MaxBrightness)
	return nil
}

func (l *simLeds) FadeOut() error {
	l.fadeTo(0)
	return nil
}

func (l *simLeds) fadeTo(target float64) {
	seq := l.state.claim()
	go func() {
		for {
			done := false
			ok := l.state.updateIfCurrent(seq, func(b *BirdState) {
				step := l.conf.FadeStep
				if target < b.Brightness {
					step = -step
				}
				next := b.Brightness + step
				if (step > 0 && next >= target) || (step < 0 && next <= target) {
					next = target
					done = true
				}
				b.Brightness = next
			})
			if !ok || done {
				return
			}
			time.Sleep(l.conf.FadeDelay)
		}
	}()
}

func (l *simLeds) Flash(times int) error {
	seq := l.state.claim()
	go func() {
		for i := 0; i < times; i++ {
			if !l.state.updateIfCurrent(seq, func(b *BirdState) { b.Brightness = l.conf.MaxBrightness }) {
				return
			}
			time.Sleep(150 * time.Millisecond)
			if !l.state.updateIfCurrent(seq, func(b *BirdState) { b.Brightness = 0 }) {
				return
			}
			time.Sleep(150 * time.Millisecond)
		}
	}()
	return nil
}

type simAmp struct {
	state *simState
}

func (a *simAmp) Play(clip string) error {
	a.state.update(func(b *BirdState) { b.Clip = clip })
	a.clearLater(clip)
	return nil
}

func (a *simAmp) PlayRandom() error {
	return a.Play("random caw")
}

func (a *simAmp) SetVolume(level float64) error {
	a.state.update(func(b *BirdState) { b.Volume = min(max(level, 0), 1) })
	return nil
}

func (a *simAmp) Stop() error {
	a.state.update(func(b *BirdState) { b.Clip = "" })
	return nil
}

// clearLater ends the pretend playback after a clip-length pause.
func (a *simAmp) clearLater(clip string) {
	go func() {
		time.Sleep(1200 * time.Millisecond)
		a.state.update(func(b *BirdState) {
			if b.Clip == clip {
				b.Clip = ""
			}
		})
	}()
}

type simLight struct {
	state *simState
}

func (l *simLight) Read() (int, error) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	return l.state.state.LightLevel, nil
}

type simBattery struct {
	state *simState
}

func (b *simBattery) Voltage() (float64, error) {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()
	return b.state.state.Voltage, nil
}

//go:build cgo

package audio

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"birdhaus.net/crowctl/config"
)

var (
	paMutex       sync.Mutex
	paInitialized bool
)

const framesPerBuffer = 1024

// Player plays the bird's WAV clips through PortAudio. All playback is
// fire and forget: Play and PlayRandom return as soon as the streaming
// goroutine is launched, so the caller's loop never blocks on audio.
type Player struct {
	mu       sync.Mutex
	clips    map[string]*Clip
	names    []string
	volume   float64
	rng      *rand.Rand
	playStop chan struct{}
	playWg   sync.WaitGroup
}

// NewPlayer loads all clips from the configured audio directory and
// initializes PortAudio.
func NewPlayer(conf config.AudioConfig) (*Player, error) {
	clips, loadErrs, err := loadClipDir(conf.Directory)
	if err != nil {
		return nil, err
	}
	for _, msg := range loadErrs {
		slog.Warn("Skipping audio clip", "error", msg)
	}

	paMutex.Lock()
	defer paMutex.Unlock()
	if !paInitialized {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
		}
		paInitialized = true
		slog.Info("PortAudio initialized")
	}

	names := make([]string, 0, len(clips))
	for name := range clips {
		names = append(names, name)
	}
	slog.Info("Audio clips loaded", "directory", conf.Directory, "count", len(names))

	return &Player{
		clips:  clips,
		names:  names,
		volume: *conf.Volume,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Play starts playback of a named clip, cutting off whatever was
// playing before.
func (p *Player) Play(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	clip, ok := p.clips[name]
	if !ok {
		return fmt.Errorf("unknown audio clip %q", name)
	}
	p.startLocked(clip)
	return nil
}

// PlayRandom starts playback of a randomly chosen clip.
func (p *Player) PlayRandom() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.names) == 0 {
		return fmt.Errorf("no audio clips loaded")
	}
	p.startLocked(p.clips[p.names[p.rng.Intn(len(p.names))]])
	return nil
}

// SetVolume sets the playback volume, clamped to 0..1. Takes effect
// immediately, also for a clip already playing.
func (p *Player) SetVolume(level float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = min(max(level, 0), 1)
	return nil
}

// Stop cuts off the current playback, if any.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

// Close stops playback and terminates PortAudio.
func (p *Player) Close() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
	p.playWg.Wait()

	paMutex.Lock()
	defer paMutex.Unlock()
	if paInitialized {
		if err := portaudio.Terminate(); err != nil {
			slog.Error("Failed to terminate portaudio", "error", err)
		} else {
			paInitialized = false
			slog.Info("PortAudio terminated")
		}
	}
}

func (p *Player) startLocked(clip *Clip) {
	p.stopLocked()
	stop := make(chan struct{})
	p.playStop = stop
	p.playWg.Add(1)
	go p.stream(clip, stop)
}

func (p *Player) stopLocked() {
	if p.playStop != nil {
		close(p.playStop)
		p.playStop = nil
	}
}

func (p *Player) currentVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// stream feeds one clip to a blocking PortAudio stream until the clip
// ends or stop is closed.
func (p *Player) stream(clip *Clip, stop <-chan struct{}) {
	defer p.playWg.Done()

	buffer := make([]int16, framesPerBuffer*clip.Channels)
	stream, err := portaudio.OpenDefaultStream(0, clip.Channels, float64(clip.SampleRate), framesPerBuffer, buffer)
	if err != nil {
		slog.Error("Failed to open audio stream", "clip", clip.Name, "error", err)
		return
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		slog.Error("Failed to start audio stream", "clip", clip.Name, "error", err)
		return
	}
	defer stream.Stop()

	slog.Debug("Playing clip", "clip", clip.Name, "frames", clip.frames())
	for offset := 0; offset < len(clip.Samples); offset += len(buffer) {
		select {
		case <-stop:
			return
		default:
		}

		volume := p.currentVolume()
		for i := range buffer {
			if offset+i < len(clip.Samples) {
				buffer[i] = int16(float64(clip.Samples[offset+i]) * volume)
			} else {
				buffer[i] = 0
			}
		}
		if err := stream.Write(); err != nil {
			// Output underflow is harmless, anything else ends playback.
			if err != portaudio.OutputUnderflowed {
				slog.Warn("Audio write failed", "clip", clip.Name, "error", err)
				return
			}
		}
	}
}

//go:build !cgo

package audio

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"birdhaus.net/crowctl/config"
)

// Player is a stub implementation for environments where CGO is
// disabled. It still loads and validates the clip directory so config
// problems surface, but playback only logs.
type Player struct {
	mu     sync.Mutex
	names  []string
	volume float64
	rng    *rand.Rand
}

// NewPlayer returns a stub player that logs instead of playing.
func NewPlayer(conf config.AudioConfig) (*Player, error) {
	slog.Warn("Audio support is disabled in this build (requires CGO)")

	clips, loadErrs, err := loadClipDir(conf.Directory)
	if err != nil {
		return nil, err
	}
	for _, msg := range loadErrs {
		slog.Warn("Skipping audio clip", "error", msg)
	}
	names := make([]string, 0, len(clips))
	for name := range clips {
		names = append(names, name)
	}

	return &Player{
		names:  names,
		volume: *conf.Volume,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (p *Player) Play(name string) error {
	slog.Info("Would play clip", "clip", name)
	return nil
}

func (p *Player) PlayRandom() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.names) == 0 {
		return fmt.Errorf("no audio clips loaded")
	}
	slog.Info("Would play clip", "clip", p.names[p.rng.Intn(len(p.names))])
	return nil
}

func (p *Player) SetVolume(level float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = min(max(level, 0), 1)
	return nil
}

func (p *Player) Stop() error { return nil }

func (p *Player) Close() {}

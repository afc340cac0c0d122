package mode

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// DefaultModeName is the mode every configuration can fall back to. Its
// constructor must never fail.
const DefaultModeName = "default"

// ErrDefaultMode marks the fatal condition of the default mode itself
// being unconstructible. There is no safe fallback left; the caller
// should terminate with a clear diagnostic instead of looping broken.
var ErrDefaultMode = errors.New("mode: default mode failed to load")

// Constructor builds a fresh mode instance. Modes are constructed anew
// on every activation so no state leaks across mode switches.
type Constructor func(deps Deps) (*Mode, error)

// Registry returns the static name-to-constructor mapping of the closed
// set of modes. Resolution happens at start time; there is no dynamic
// loading.
func Registry() map[string]Constructor {
	return map[string]Constructor{
		DefaultModeName: NewDefaultMode,
		"clock":         NewClockMode,
		"random":        NewRandomMode,
		"debug":         NewDebugMode,
		"battery":       NewBatteryMode,
	}
}

// NewDefaultMode is the plain bird behavior: all hooks at their
// defaults.
func NewDefaultMode(deps Deps) (*Mode, error) {
	return New(DefaultModeName, deps, Hooks{}), nil
}

// Manager owns the mode registry, tracks the active mode and cycles
// between the configured modes on the global long-press signal.
type Manager struct {
	deps        Deps
	registry    map[string]Constructor
	available   []string
	currentName string
	current     *Mode
}

// NewManager validates the configured mode list against the registry
// and loads the initial mode. Unknown names in AvailableModes are
// dropped with a log line; an empty result falls back to the default
// mode only.
func NewManager(deps Deps, registry map[string]Constructor) (*Manager, error) {
	available := make([]string, 0, len(deps.Conf.AvailableModes))
	for _, name := range deps.Conf.AvailableModes {
		if _, ok := registry[name]; !ok {
			slog.Warn("Ignoring unknown mode in AvailableModes", "mode", name)
			continue
		}
		available = append(available, name)
	}
	if len(available) == 0 {
		slog.Warn("No usable modes configured, falling back to default only")
		available = []string{DefaultModeName}
	}
	slog.Info("Available modes", "modes", available)

	mgr := &Manager{
		deps:      deps,
		registry:  registry,
		available: available,
	}
	if err := mgr.LoadMode(deps.Conf.Mode); err != nil {
		return nil, err
	}
	return mgr, nil
}

// LoadMode switches to the named mode: the outgoing mode is cleaned up
// (cleanup problems are swallowed), the incoming mode is constructed.
// An unknown name or a failing constructor falls back to the default
// mode with a logged substitution. The caller must Init the new mode;
// LoadMode deliberately calls nothing further. Failure to construct the
// default mode itself is fatal and reported as ErrDefaultMode.
func (mgr *Manager) LoadMode(name string) error {
	if !slices.Contains(mgr.available, name) {
		slog.Warn("Requested mode not available, substituting default",
			"requested", name, "default", DefaultModeName)
		name = DefaultModeName
	}

	if mgr.current != nil {
		if err := guard("mode cleanup", func() error { mgr.current.Cleanup(); return nil }); err != nil {
			slog.Warn("Outgoing mode cleanup failed", "mode", mgr.currentName, "error", err)
		}
	}

	instance, err := mgr.construct(name)
	if err != nil {
		if name == DefaultModeName {
			return fmt.Errorf("%w: %v", ErrDefaultMode, err)
		}
		slog.Error("Failed to construct mode, substituting default", "mode", name, "error", err)
		name = DefaultModeName
		if instance, err = mgr.construct(name); err != nil {
			return fmt.Errorf("%w: %v", ErrDefaultMode, err)
		}
	}

	mgr.current = instance
	mgr.currentName = name
	slog.Info("Mode loaded", "mode", name)
	mgr.indicateMode(name)
	return nil
}

// CycleMode advances to the next configured mode circularly. Wired to
// the global long press.
func (mgr *Manager) CycleMode() error {
	index := slices.Index(mgr.available, mgr.currentName)
	if index < 0 {
		index = 0
	}
	next := mgr.available[(index+1)%len(mgr.available)]
	slog.Info("Mode switching", "from", mgr.currentName, "to", next)
	return mgr.LoadMode(next)
}

// Active returns the current mode instance.
func (mgr *Manager) Active() *Mode { return mgr.current }

// ActiveName returns the name of the current mode.
func (mgr *Manager) ActiveName() string { return mgr.currentName }

// Available returns the ordered mode cycle.
func (mgr *Manager) Available() []string {
	return slices.Clone(mgr.available)
}

func (mgr *Manager) construct(name string) (*Mode, error) {
	ctor, ok := mgr.registry[name]
	if !ok {
		return nil, fmt.Errorf("no constructor registered for mode %q", name)
	}
	return ctor(mgr.deps)
}

// indicateMode flashes the eyes once per position in the mode list so
// the active mode can be told apart without a display.
func (mgr *Manager) indicateMode(name string) {
	position := slices.Index(mgr.available, name) + 1
	if position < 1 {
		position = 1
	}
	if err := mgr.deps.Bird.Leds.Flash(position); err != nil {
		slog.Warn("Mode indication flash failed", "error", err)
	}
}

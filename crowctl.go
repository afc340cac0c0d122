// crowctl drives an animatronic crow: a servo beak, PWM eye LEDs, a
// speaker and a button, either on real Raspberry Pi hardware or in a
// terminal simulation. Behavior is organized into switchable modes; a
// long button press cycles through them.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"

	"birdhaus.net/crowctl/config"
	"birdhaus.net/crowctl/logging"
	"birdhaus.net/crowctl/mode"
	"birdhaus.net/crowctl/platform"
	"birdhaus.net/crowctl/rpi"
	"birdhaus.net/crowctl/tui"
	"birdhaus.net/crowctl/util"
)

func main() {
	fs := flag.NewFlagSet("crowctl", flag.ExitOnError)
	var (
		cfile    = fs.String("config", "config.yml", "path to the configuration file")
		realHW   = fs.Bool("real", false, "drive the real hardware instead of the simulation TUI")
		logLevel = fs.String("loglevel", "", "override the configured log level")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("CROWCTL")); err != nil {
		fmt.Fprintf(os.Stderr, "crowctl: %v\n", err)
		os.Exit(1)
	}

	// A SIGHUP, a TUI reload key or a config file change all restart the
	// whole stack with a fresh configuration.
	for run(*cfile, *realHW, *logLevel) {
	}
}

// run brings up one complete instance and drives it until shutdown or
// restart. It reports whether the caller should start over.
func run(cfile string, realHW bool, logLevel string) bool {
	conf, err := config.ReadConfig(cfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crowctl: %v\n", err)
		return false
	}
	conf.RealHW = realHW
	if logLevel != "" {
		conf.Logging.Level = logLevel
	}

	// Without real hardware the TUI owns the terminal, so logs are held
	// back until its log pane is up.
	if err := logging.Init(logging.Options{
		Level:    conf.Logging.Level,
		Format:   conf.Logging.Format,
		File:     conf.Logging.File,
		Buffered: !conf.RealHW,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "crowctl: can't set up logging: %v\n", err)
		return false
	}
	defer logging.Close()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(ossignal)

	plt := newPlatform(conf, ossignal)
	if err := plt.Start(); err != nil {
		slog.Error("Platform start failed", "error", err)
		return false
	}
	defer plt.Stop()
	<-plt.Ready()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	updates, err := config.Watch(cfile, stopWatch)
	if err != nil {
		slog.Warn("Config hot reload unavailable", "error", err)
	}

	if conf.Web.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/config", config.Handler(cfile))
		web := &http.Server{Addr: conf.Web.Addr, Handler: mux}
		go func() {
			slog.Info("Config web API listening", "addr", conf.Web.Addr)
			if err := web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Web server failed", "error", err)
			}
		}()
		defer web.Close()
	}

	clock := &util.RealClock{}
	manager, err := mode.NewManager(mode.Deps{
		Bird:  plt.Bird(),
		Conf:  conf,
		Clock: clock,
	}, mode.Registry())
	if err != nil {
		slog.Error("Mode setup failed", "error", err)
		return false
	}
	if err := manager.Active().Init(); err != nil {
		slog.Error("Mode init failed", "mode", manager.ActiveName(), "error", err)
		return false
	}

	ticker := time.NewTicker(conf.Hardware.LoopDelay)
	defer ticker.Stop()

	for {
		select {
		case sig := <-ossignal:
			manager.Active().Cleanup()
			if sig == syscall.SIGHUP {
				slog.Info("Restart requested")
				return true
			}
			slog.Info("Shutting down", "signal", sig)
			return false

		case _, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			slog.Info("Restarting with updated configuration")
			manager.Active().Cleanup()
			return true

		case press := <-plt.ButtonEvents():
			if err := handlePress(manager, press); err != nil {
				slog.Error("Unrecoverable mode failure", "error", err)
				manager.Active().Cleanup()
				return false
			}

		case <-ticker.C:
			active := manager.Active()
			active.Tick(clock.Now())
			if active.State() == mode.Terminated {
				if err := restartDefault(manager); err != nil {
					slog.Error("Unrecoverable mode failure", "error", err)
					return false
				}
			}
		}
	}
}

// newPlatform selects the hardware backend from the configuration.
func newPlatform(conf *config.Config, ossignal chan os.Signal) platform.Platform {
	if conf.RealHW {
		return rpi.NewPlatform(conf)
	}
	return tui.NewPlatform(conf, ossignal)
}

// handlePress routes button gestures: a long press cycles to the next
// mode, a short press goes to the active mode. Only a broken default
// mode is returned as an error; everything else is handled downstream.
func handlePress(manager *mode.Manager, press *platform.Press) error {
	slog.Debug("Button event", "kind", press.Kind, "duration", press.Duration)
	if press.Kind == platform.PressLong {
		if err := manager.CycleMode(); err != nil {
			return err
		}
		if err := manager.Active().Init(); err != nil {
			slog.Error("Mode init failed, falling back to default",
				"mode", manager.ActiveName(), "error", err)
			if err := manager.LoadMode(mode.DefaultModeName); err != nil {
				return err
			}
			return manager.Active().Init()
		}
		return nil
	}
	manager.Active().HandleButtonPress()
	return nil
}

// restartDefault recovers after a mode terminated itself, e.g. an
// update hook that decided it is done.
func restartDefault(manager *mode.Manager) error {
	slog.Info("Active mode terminated, loading default mode")
	if err := manager.LoadMode(mode.DefaultModeName); err != nil {
		return err
	}
	return manager.Active().Init()
}

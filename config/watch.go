package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file for changes and delivers freshly
// parsed configurations on the returned channel. Editors and the web
// handler tend to produce bursts of write events, so changes are
// debounced before re-reading. The watcher goroutine exits when stop is
// closed.
func Watch(cfile string, stop <-chan struct{}) (<-chan *Config, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: many editors replace the file
	// on save, which would drop an inode-based watch.
	if err := watcher.Add(filepath.Dir(cfile)); err != nil {
		watcher.Close()
		return nil, err
	}

	updates := make(chan *Config, 1)
	go func() {
		defer watcher.Close()
		defer close(updates)

		var debounce *time.Timer
		var debounceC <-chan time.Time

		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(cfile) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(250 * time.Millisecond)
					debounceC = debounce.C
				} else {
					debounce.Reset(250 * time.Millisecond)
				}
			case <-debounceC:
				conf, err := ReadConfig(cfile)
				if err != nil {
					slog.Error("Ignoring invalid config change", "file", cfile, "error", err)
					continue
				}
				slog.Info("Config file changed, reloading", "file", cfile)
				select {
				case updates <- conf:
				default:
					// An unconsumed reload is superseded by this one.
					select {
					case <-updates:
					default:
					}
					updates <- conf
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)
			}
		}
	}()
	return updates, nil
}

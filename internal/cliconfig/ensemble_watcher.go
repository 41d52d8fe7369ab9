package cliconfig

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// EnsembleWatcher monitors the config file via fsnotify and reports
// changes to the server list, so long-running commands can log a drifted
// ensemble without a restart. Edits are debounced because editors fire
// several events per save.
type EnsembleWatcher struct {
	path     string
	onChange func([]string)
	log      zerolog.Logger

	mu       sync.Mutex
	last     []string
	debounce *time.Timer
}

// NewEnsembleWatcher watches path and calls onChange with the new server
// list whenever it differs from the previous one.
func NewEnsembleWatcher(path string, current []string, onChange func([]string), log zerolog.Logger) *EnsembleWatcher {
	return &EnsembleWatcher{
		path:     path,
		onChange: onChange,
		log:      log,
		last:     current,
	}
}

// Run blocks until ctx is cancelled. A watcher that cannot be created or
// attached logs the problem and returns; the command keeps running with
// its startup configuration.
func (w *EnsembleWatcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn().Err(err).Msg("config watcher unavailable")
		return
	}
	defer watcher.Close()

	// Watch the directory: editors typically replace the file, which
	// drops a watch held on the file itself.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("cannot watch config file")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *EnsembleWatcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *EnsembleWatcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("reloading config failed")
		return
	}
	if len(fc.Servers) == 0 {
		return
	}

	w.mu.Lock()
	changed := !reflect.DeepEqual(fc.Servers, w.last)
	if changed {
		w.last = fc.Servers
	}
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(fc.Servers)
	}
}

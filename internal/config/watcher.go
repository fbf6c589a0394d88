package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hylla/nudger/internal/app"
	"github.com/hylla/nudger/internal/domain"
)

// reloadDebounce absorbs editors that emit several events per save.
const reloadDebounce = 150 * time.Millisecond

// Watcher serves nudge settings from the config file and reloads them when the file changes.
// A reload that fails to parse keeps the last good config.
type Watcher struct {
	path     string
	defaults Config
	log      app.Logger

	mu       sync.RWMutex
	cfg      Config
	onChange []func(Config)
}

var _ app.SettingsProvider = (*Watcher)(nil)

// Logger is the structured logger used by the watcher.
type Logger = app.Logger

func NewWatcher(path string, defaults, initial Config, log Logger) *Watcher {
	return &Watcher{path: path, defaults: defaults, cfg: initial, log: log}
}

// OnChange registers fn to run after every reload that changes the [nudges] section.
func (w *Watcher) OnChange(fn func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// NudgeSettings returns the current thresholds.
func (w *Watcher) NudgeSettings(context.Context) (domain.NudgeSettings, error) {
	return w.Current().NudgeSettings(), nil
}

// Reload re-reads the file and reports whether the [nudges] section changed.
func (w *Watcher) Reload() (bool, error) {
	next, err := Load(w.path, w.defaults)
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	changed := next.Nudges != w.cfg.Nudges
	w.cfg = next
	callbacks := append([]func(Config){}, w.onChange...)
	w.mu.Unlock()

	if changed {
		for _, fn := range callbacks {
			fn(next)
		}
	}
	return changed, nil
}

// Watch reloads on file events until ctx ends.
func (w *Watcher) Watch(ctx context.Context) error {
	if strings.TrimSpace(w.path) == "" {
		return errors.New("config path is required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	// watch the directory so atomic rename-on-save is still observed
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}
	w.logDebug("config watcher started", "path", w.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			changed, err := w.Reload()
			if err != nil {
				w.logWarn("config reload failed; keeping previous settings", "path", w.path, "err", err)
				return
			}
			w.logDebug("config reloaded", "path", w.path, "nudges_changed", changed)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logWarn("config watcher error", "err", err)
		}
	}
}

func (w *Watcher) logDebug(msg string, keyvals ...any) {
	if w.log != nil {
		w.log.Debug(msg, keyvals...)
	}
}

func (w *Watcher) logWarn(msg string, keyvals ...any) {
	if w.log != nil {
		w.log.Warn(msg, keyvals...)
	}
}

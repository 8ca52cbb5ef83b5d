package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// projectSubdirs hold one artifact per file and are watched too.
var projectSubdirs = []string{"tables", "seeds", "sources"}

// Holder provides thread-safe access to configuration with hot reload support.
// A reload is triggered by edits to the config file and to any YAML file of
// the project, so listeners can re-validate.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	project  string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	onError  []func(error)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder creates a new config holder and loads the initial configuration
// with LoadWithFallback.
func NewHolder(path, project string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := LoadWithFallback(path, project)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var absPath string
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if absPath, err = filepath.Abs(path); err != nil {
				return nil, fmt.Errorf("absolute path: %w", err)
			}
		}
	}

	h := &Holder{
		config:  cfg,
		path:    absPath,
		project: project,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	return h, nil
}

// Get returns the current configuration (thread-safe).
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload reloads the configuration from disk.
// Returns error if loading fails (keeps old config).
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	newCfg, err := LoadWithFallback(h.path, h.project)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		err = fmt.Errorf("reload config: %w", err)

		h.mu.RLock()
		listeners := append(([]func(error))(nil), h.onError...)
		h.mu.RUnlock()
		for _, fn := range listeners {
			fn(err)
		}
		return err
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	listeners := append(([]func(*Config))(nil), h.onChange...)
	h.mu.Unlock()

	h.logChanges(oldCfg, newCfg)

	for _, fn := range listeners {
		fn(newCfg)
	}

	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// OnChange registers a callback to be called when config changes.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnReloadError registers a callback to be called when a reload fails.
func (h *Holder) OnReloadError(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, fn)
}

// WatchFile starts watching the config file and the project for changes.
// Changes trigger automatic reload.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch directories (more reliable for editors that do atomic saves)
	for _, dir := range h.watchDirs() {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}

	go h.watchLoop()

	h.logger.Info().
		Str("path", h.path).
		Str("project", h.Get().Project).
		Msg("watching config and project for changes")
	return nil
}

func (h *Holder) watchDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if seen[dir] {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	if h.path != "" {
		add(filepath.Dir(h.path))
	}

	projectDir := h.Get().ProjectDir()
	add(projectDir)
	for _, sub := range projectSubdirs {
		add(filepath.Join(projectDir, sub))
	}
	return dirs
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

// relevant reports whether a change to name should trigger a reload.
func (h *Holder) relevant(name string) bool {
	if h.path != "" && filepath.Clean(name) == h.path {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (h *Holder) watchLoop() {
	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			if !h.relevant(event.Name) {
				continue
			}

			// React to write or create (atomic save = create), and removals
			// of artifact files
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("watched file changed")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Project != new.Project {
		h.logger.Info().
			Str("old", old.Project).
			Str("new", new.Project).
			Msg("project changed")
	}

	if len(old.Generators) != len(new.Generators) {
		h.logger.Info().
			Int("old", len(old.Generators)).
			Int("new", len(new.Generators)).
			Msg("generators count changed")
	}

	if len(old.Paths) != len(new.Paths) {
		h.logger.Info().
			Int("old", len(old.Paths)).
			Int("new", len(new.Paths)).
			Msg("path aliases count changed")
	}
}

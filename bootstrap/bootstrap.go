// Package bootstrap wires all dependencies for a limbo run.
// The tool configuration comes from limbo.yaml (see package config); plugins
// supply connection kinds and generators.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/limbo/adapters/clock"
	"github.com/artpar/limbo/adapters/metrics"
	"github.com/artpar/limbo/config"
	"github.com/artpar/limbo/core/connection"
	"github.com/artpar/limbo/core/plugin"
	"github.com/artpar/limbo/core/registry"
	"github.com/artpar/limbo/core/schema"
	"github.com/artpar/limbo/core/scope"
)

// App holds the wired components.
type App struct {
	Logger   zerolog.Logger
	Plugins  *plugin.Manager
	Registry *registry.Registry
	Metrics  *metrics.Collector

	clock      clock.Clock
	mu         sync.RWMutex
	cfg        *config.Config
	generators []string
	version    string
	out        io.Writer
}

// Options provides optional configuration for application initialization.
type Options struct {
	// Version is the tool version checked against a project's requires.
	Version string

	// Plugins are registered after the builtin plugin.
	Plugins []plugin.Plugin

	// Registry receives connection kinds. Defaults to a new registry.
	Registry *registry.Registry

	// Metrics defaults to a collector on the default Prometheus registry.
	Metrics *metrics.Collector

	// LogOutput defaults to stderr.
	LogOutput io.Writer

	// Clock times validation passes and connection checks. Defaults to the real clock.
	Clock clock.Clock
}

// CheckResult is the outcome of connecting to one declared connection.
type CheckResult struct {
	Name     string
	Type     string
	Duration time.Duration
	Err      error
}

// New creates the application from a loaded configuration.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := NewLogger(cfg.Logging, out)

	logger.Debug().Str("project", cfg.Project).Msg("initializing limbo")

	a := &App{
		Logger:   logger,
		Plugins:  plugin.NewManager(logger),
		Registry: opts.Registry,
		Metrics:  opts.Metrics,
		clock:    opts.Clock,
		cfg:      cfg,
		version:  opts.Version,
		out:      out,
	}
	if a.Registry == nil {
		a.Registry = registry.New()
	}
	if a.Metrics == nil {
		a.Metrics = metrics.New()
	}
	if a.clock == nil {
		a.clock = clock.Real{}
	}

	if err := a.initPlugins(opts.Plugins); err != nil {
		return nil, fmt.Errorf("init plugins: %w", err)
	}

	return a, nil
}

func (a *App) initPlugins(extra []plugin.Plugin) error {
	if err := a.Plugins.Register(plugin.Builtin{}); err != nil {
		return err
	}
	for _, p := range extra {
		if err := a.Plugins.Register(p); err != nil {
			return err
		}
	}

	generators, err := a.Plugins.Load(a.Registry)
	if err != nil {
		return err
	}
	a.generators = generators
	return nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Reconfigure swaps the active configuration, typically from a
// config.Holder change listener. The logger follows the new level and
// format.
func (a *App) Reconfigure(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.Logger = NewLogger(cfg.Logging, a.out)
	a.mu.Unlock()
}

// Scope builds the base Context for one validation pass: plugin and
// configured generators plus the configured path aliases. Connections are
// added by the project parser.
func (a *App) Scope() *scope.Context {
	cfg := a.Config()

	generators := slices.Concat(a.generators, cfg.Generators)
	return scope.New(
		scope.WithGenerators(generators...),
		scope.WithPaths(cfg.Paths),
	)
}

// Validate parses and validates the configured project. The pass is
// recorded in metrics and, when configured, the metrics textfile is
// rewritten.
func (a *App) Validate(ctx context.Context) (*schema.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := a.Config()
	logger := a.logger()
	sc := a.Scope()

	log := logger.With().
		Str("pass", sc.ID()).
		Str("project", cfg.Project).
		Logger()
	log.Debug().Msg("validating project")

	opts := []schema.ParseOption{schema.WithToolVersion(a.version)}

	start := a.clock.Now()
	var (
		project *schema.Project
		err     error
	)
	if cfg.ProjectIsDir {
		project, err = schema.ParseDir(cfg.Project, sc, a.Registry, opts...)
	} else {
		project, err = schema.ParseFile(cfg.Project, sc, a.Registry, opts...)
	}
	elapsed := a.clock.Since(start)

	a.Metrics.RecordValidation(err, elapsed)
	if err == nil {
		a.Metrics.ObserveProject(project)
	}
	a.writeTextfile(cfg)

	if err != nil {
		log.Warn().Err(err).Dur("duration", elapsed).Msg("project is invalid")
		return nil, err
	}

	log.Info().
		Int("connections", len(project.Connections)).
		Int("tables", len(project.Tables)).
		Int("seeds", len(project.Seeds)).
		Int("sources", len(project.Sources)).
		Dur("duration", elapsed).
		Msg("project is valid")
	return project, nil
}

// CheckConnections connects to every connection declared by project and
// closes each handle again. One result is returned per connection, in
// declaration order.
func (a *App) CheckConnections(ctx context.Context, project *schema.Project) []CheckResult {
	logger := a.logger()
	results := make([]CheckResult, 0, len(project.Connections))

	for _, conn := range project.Connections {
		res := a.checkConnection(ctx, conn)
		a.Metrics.RecordConnectionCheck(res.Type, res.Err, res.Duration)

		if res.Err != nil {
			logger.Warn().Err(res.Err).
				Str("connection", res.Name).
				Str("type", res.Type).
				Msg("connection check failed")
		} else {
			logger.Info().
				Str("connection", res.Name).
				Str("type", res.Type).
				Dur("duration", res.Duration).
				Msg("connection ok")
		}
		results = append(results, res)
	}

	a.writeTextfile(a.Config())
	return results
}

func (a *App) checkConnection(ctx context.Context, conn connection.Connection) CheckResult {
	res := CheckResult{Name: conn.ConnectionName(), Type: conn.Type()}

	start := a.clock.Now()
	db, err := conn.Connect(ctx)
	res.Duration = a.clock.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Err = db.Close()
	return res
}

func (a *App) writeTextfile(cfg *config.Config) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger := a.logger()
		logger.Error().Err(err).Str("path", cfg.Metrics.Textfile).Msg("failed to write metrics")
	}
}

func (a *App) logger() zerolog.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Logger
}

// NewLogger builds a logger from the logging configuration. Unknown levels
// fall back to info; any format other than "console" is JSON.
func NewLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Package plugin runs the explicit registration phase that populates the
// connection registry and the generator catalogue before any validation.
//
// A plugin is any value with a Name. It opts into hooks by implementing
// ConnectionProvider and/or GeneratorProvider:
//
//	type MyPlugin struct{}
//
//	func (MyPlugin) Name() string { return "my_plugin" }
//
//	func (MyPlugin) Connections() []registry.Kind {
//		return []registry.Kind{{Type: "duckdb", New: duckdb.New}}
//	}
//
// Load calls every hook once; later calls are no-ops.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/artpar/limbo/core/registry"
)

// Plugin is a named extension.
type Plugin interface {
	Name() string
}

// ConnectionProvider contributes connection kinds.
type ConnectionProvider interface {
	Connections() []registry.Kind
}

// GeneratorProvider contributes generator identifiers.
type GeneratorProvider interface {
	Generators() []string
}

// Manager holds registered plugins and runs their hooks.
type Manager struct {
	mu      sync.Mutex
	plugins []Plugin
	names   map[string]struct{}

	loaded     bool
	generators []string

	logger zerolog.Logger
}

// NewManager creates a manager with no plugins.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		names:  make(map[string]struct{}),
		logger: logger,
	}
}

// Register adds a plugin. Names must be unique. Plugins registered after
// Load are not loaded.
func (m *Manager) Register(p Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin %T has no name", p)
	}
	if _, exists := m.names[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}
	if m.loaded {
		return fmt.Errorf("plugin %q registered after plugins were loaded", name)
	}

	m.plugins = append(m.plugins, p)
	m.names[name] = struct{}{}
	return nil
}

// Unregister removes a plugin by name.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.names[name]; !exists {
		return false
	}
	delete(m.names, name)

	for i, p := range m.plugins {
		if p.Name() == name {
			m.plugins = append(m.plugins[:i], m.plugins[i+1:]...)
			break
		}
	}
	return true
}

// IsRegistered reports whether a plugin with this name is registered.
func (m *Manager) IsRegistered(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.names[name]
	return ok
}

// Plugins returns the registered plugins in registration order.
func (m *Manager) Plugins() []Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Plugin(nil), m.plugins...)
}

// Names returns plugin names in registration order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		names = append(names, p.Name())
	}
	return names
}

// Load runs every plugin's hooks in registration order, registering
// connection kinds into reg. It returns the collected generator
// identifiers, sorted and de-duplicated. Subsequent calls return the same
// identifiers without touching reg. A failed Load unregisters the kinds it
// added, so it can be retried once the conflict is resolved.
func (m *Manager) Load(reg *registry.Registry) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return append([]string(nil), m.generators...), nil
	}

	seen := make(map[string]struct{})
	var registered []string
	for _, p := range m.plugins {
		if cp, ok := p.(ConnectionProvider); ok {
			for _, kind := range cp.Connections() {
				if err := reg.Register(kind); err != nil {
					// leave the registry as it was so Load can be retried
					for _, typ := range registered {
						_ = reg.Unregister(typ)
					}
					return nil, fmt.Errorf("plugin %q: %w", p.Name(), err)
				}
				registered = append(registered, kind.Type)
				m.logger.Debug().
					Str("plugin", p.Name()).
					Str("type", kind.Type).
					Msg("registered connection type")
			}
		}

		if gp, ok := p.(GeneratorProvider); ok {
			gens := gp.Generators()
			for _, g := range gens {
				seen[g] = struct{}{}
			}
			m.logger.Debug().
				Str("plugin", p.Name()).
				Int("count", len(gens)).
				Msg("registered generators")
		}
	}

	m.generators = make([]string, 0, len(seen))
	for g := range seen {
		m.generators = append(m.generators, g)
	}
	sort.Strings(m.generators)
	m.loaded = true

	m.logger.Info().
		Int("plugins", len(m.plugins)).
		Int("connection_types", len(reg.Types())).
		Int("generators", len(m.generators)).
		Msg("plugins loaded")

	return append([]string(nil), m.generators...), nil
}

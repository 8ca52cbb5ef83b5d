// Package scope holds the read-only Context threaded through validation.
//
// A Context is built once per validation pass by the caller and passed
// explicitly to every validator that needs it. It carries three namespaces:
//
//	generators   identifiers columns may name as their generator
//	paths        alias -> directory, used by ${path:alias} expressions
//	connections  name -> declared connection, used by sources
//
// Lookups are exact and case-sensitive. A Context is never mutated after
// construction; WithConnections returns a copy.
package scope

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/artpar/limbo/core/connection"
)

// ErrContextMissing is returned by validators that need a Context and got nil.
var ErrContextMissing = errors.New("context is missing")

// ErrReferenceResolverMissing is returned by ResolveReference when no
// resolver was configured.
var ErrReferenceResolverMissing = errors.New("reference resolution is not available in this context")

// ReferenceResolver dereferences dotted "entity.field" references. The
// execution engine supplies it.
type ReferenceResolver interface {
	ResolveReference(ref string) (any, error)
}

// ReferenceResolverFunc adapts a function to ReferenceResolver.
type ReferenceResolverFunc func(ref string) (any, error)

// ResolveReference calls f.
func (f ReferenceResolverFunc) ResolveReference(ref string) (any, error) {
	return f(ref)
}

// Context is an immutable snapshot of the validation namespaces.
type Context struct {
	id          string
	generators  map[string]struct{}
	paths       map[string]string
	connections map[string]connection.Connection
	resolver    ReferenceResolver
}

// Option configures a Context.
type Option func(*Context)

// WithGenerators adds generator identifiers.
func WithGenerators(names ...string) Option {
	return func(c *Context) {
		for _, n := range names {
			c.generators[n] = struct{}{}
		}
	}
}

// WithPaths adds path roots. Later entries win.
func WithPaths(paths map[string]string) Option {
	return func(c *Context) {
		for alias, p := range paths {
			c.paths[alias] = p
		}
	}
}

// WithPath adds a single path root.
func WithPath(alias, path string) Option {
	return func(c *Context) {
		c.paths[alias] = path
	}
}

// WithConnection adds a connection under its declared name.
func WithConnection(conn connection.Connection) Option {
	return func(c *Context) {
		c.connections[conn.ConnectionName()] = conn
	}
}

// WithResolver sets the reference resolver.
func WithResolver(r ReferenceResolver) Option {
	return func(c *Context) {
		c.resolver = r
	}
}

// WithID overrides the generated pass ID.
func WithID(id string) Option {
	return func(c *Context) {
		c.id = id
	}
}

// New builds a Context.
func New(opts ...Option) *Context {
	c := &Context{
		id:          uuid.NewString(),
		generators:  make(map[string]struct{}),
		paths:       make(map[string]string),
		connections: make(map[string]connection.Connection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID identifies the validation pass, for log correlation.
func (c *Context) ID() string {
	return c.id
}

// HasGenerator reports whether name is a known generator.
func (c *Context) HasGenerator(name string) bool {
	_, ok := c.generators[name]
	return ok
}

// CheckGenerator returns a NotFoundError for unknown generators.
func (c *Context) CheckGenerator(name string) error {
	if c.HasGenerator(name) {
		return nil
	}
	return &NotFoundError{Kind: KindGenerator, Name: name, Available: sortedKeys(c.generators)}
}

// Generators returns the known generator identifiers, sorted.
func (c *Context) Generators() []string {
	return sortedKeys(c.generators)
}

// Path returns the directory registered under alias.
func (c *Context) Path(alias string) (string, error) {
	p, ok := c.paths[alias]
	if !ok {
		return "", &NotFoundError{Kind: KindPath, Name: alias, Available: sortedKeys(c.paths)}
	}
	return p, nil
}

// Paths returns a copy of the path roots.
func (c *Context) Paths() map[string]string {
	out := make(map[string]string, len(c.paths))
	for k, v := range c.paths {
		out[k] = v
	}
	return out
}

// GetConnection returns the named connection. The error lists the
// connections that are available.
func (c *Context) GetConnection(name string) (connection.Connection, error) {
	conn, ok := c.connections[name]
	if !ok {
		return nil, &NotFoundError{Kind: KindConnection, Name: name, Available: sortedKeys(c.connections)}
	}
	return conn, nil
}

// Connections returns the connections sorted by name.
func (c *Context) Connections() []connection.Connection {
	names := sortedKeys(c.connections)
	out := make([]connection.Connection, 0, len(names))
	for _, n := range names {
		out = append(out, c.connections[n])
	}
	return out
}

// ResolveReference forwards ref unchanged to the configured resolver.
func (c *Context) ResolveReference(ref string) (any, error) {
	if c.resolver == nil {
		return nil, fmt.Errorf("resolve %q: %w", ref, ErrReferenceResolverMissing)
	}
	return c.resolver.ResolveReference(ref)
}

// WithConnections returns a copy of c with conns added. A name that is
// already present, or repeated in conns, is an error.
func (c *Context) WithConnections(conns ...connection.Connection) (*Context, error) {
	next := &Context{
		id:          c.id,
		generators:  c.generators,
		paths:       c.paths,
		connections: make(map[string]connection.Connection, len(c.connections)+len(conns)),
		resolver:    c.resolver,
	}
	for name, conn := range c.connections {
		next.connections[name] = conn
	}

	for _, conn := range conns {
		name := conn.ConnectionName()
		if _, exists := next.connections[name]; exists {
			return nil, fmt.Errorf("connection %q is declared more than once", name)
		}
		next.connections[name] = conn
	}

	return next, nil
}

// Require returns ErrContextMissing when c is nil.
func Require(c *Context) error {
	if c == nil {
		return ErrContextMissing
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup kinds reported by NotFoundError.
const (
	KindGenerator  = "generator"
	KindPath       = "path"
	KindConnection = "connection"
)

// NotFoundError reports an identifier missing from one of the namespaces.
type NotFoundError struct {
	Kind      string
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("%s %q not found, available %ss: %s", e.Kind, e.Name, e.Kind, available)
}

// Package registry manages connection kinds and validates raw connection
// records against them.
//
// Each kind is identified by a unique discriminator (the record's "type"
// field). Validation dispatches on that field through a cached snapshot of
// the registered kinds; the snapshot is rebuilt after every change.
// Registration must finish before validation starts.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/artpar/limbo/core/connection"
	"github.com/artpar/limbo/core/interpolate"
)

// Kind describes a connection kind.
type Kind struct {
	// Type is the discriminator value. It must be fixed and non-empty.
	Type string

	// New returns a zero value of the kind, ready for decoding.
	New func() connection.Connection
}

// Registry maps discriminators to connection kinds.
type Registry struct {
	mu sync.RWMutex

	kinds map[string]Kind

	// cached dispatcher, nil when stale
	snapshot *dispatcher

	validate *validator.Validate
	lookup   interpolate.LookupFunc
}

type dispatcher struct {
	kinds map[string]Kind
	names []string
}

// Default is the process-wide registry populated by plugins.
var Default = New()

// New creates an empty registry that interpolates ${env:...} from the
// process environment.
func New() *Registry {
	return NewWithLookup(nil)
}

// NewWithLookup creates an empty registry that interpolates ${env:...}
// through lookup. A nil lookup reads the process environment.
func NewWithLookup(lookup interpolate.LookupFunc) *Registry {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(yamlFieldName)

	return &Registry{
		kinds:    make(map[string]Kind),
		validate: v,
		lookup:   lookup,
	}
}

// Register adds a connection kind. The discriminator must be non-empty,
// must match what the kind's zero value reports, and must not already be
// registered.
func (r *Registry) Register(kind Kind) error {
	if kind.New == nil {
		return &RegistrationError{Type: kind.Type, Reason: "missing constructor"}
	}

	proto := kind.New()
	name := typeName(proto)
	if kind.Type == "" || proto.Type() == "" {
		return &RegistrationError{Type: name, Reason: "missing type default"}
	}
	if proto.Type() != kind.Type {
		return &RegistrationError{
			Type:   kind.Type,
			Reason: fmt.Sprintf("%s reports type %q", name, proto.Type()),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[kind.Type]; exists {
		return &RegistrationError{Type: kind.Type, Reason: "already registered"}
	}

	r.kinds[kind.Type] = kind
	r.snapshot = nil

	return nil
}

// Unregister removes a connection kind.
func (r *Registry) Unregister(typ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[typ]; !exists {
		return fmt.Errorf("connection type %q not registered", typ)
	}

	delete(r.kinds, typ)
	r.snapshot = nil

	return nil
}

// Clear removes every kind. Intended for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds = make(map[string]Kind)
	r.snapshot = nil
}

// Get returns a registered kind by discriminator.
func (r *Registry) Get(typ string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[typ]
	return kind, ok
}

// Types returns the registered discriminators in sorted order.
func (r *Registry) Types() []string {
	return r.dispatch().names
}

// dispatch returns the cached dispatcher, building it if stale.
func (r *Registry) dispatch() *dispatcher {
	r.mu.RLock()
	d := r.snapshot
	r.mu.RUnlock()
	if d != nil {
		return d
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot != nil {
		return r.snapshot
	}

	d = &dispatcher{
		kinds: make(map[string]Kind, len(r.kinds)),
		names: make([]string, 0, len(r.kinds)),
	}
	for name, kind := range r.kinds {
		d.kinds[name] = kind
		d.names = append(d.names, name)
	}
	sort.Strings(d.names)

	r.snapshot = d
	return d
}

// Validate turns one raw record into a typed connection. The record must be
// a mapping with a string "type" field naming a registered kind. String
// fields are env-interpolated before decoding. A *yaml.Node record is left
// untouched.
func (r *Registry) Validate(raw any) (connection.Connection, error) {
	d := r.dispatch()

	var node yaml.Node
	if n, ok := raw.(*yaml.Node); ok {
		node = copyNode(n)
	} else if err := node.Encode(raw); err != nil {
		return nil, fmt.Errorf("encode connection: %w", err)
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = *node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("connection must be a mapping, got %s", describeNode(&node))
	}

	typ, ok := mappingString(&node, "type")
	if !ok {
		return nil, fmt.Errorf("connection is missing a string %q field", "type")
	}

	kind, ok := d.kinds[typ]
	if !ok {
		available := "none"
		if len(d.names) > 0 {
			available = strings.Join(d.names, ", ")
		}
		return nil, &UnknownTypeError{Type: typ, Available: available}
	}

	if err := interpolate.Node(&node, r.lookup); err != nil {
		return nil, err
	}

	conn := kind.New()
	if err := node.Decode(conn); err != nil {
		return nil, fmt.Errorf("decode %s connection: %w", typ, err)
	}

	if err := r.validate.Struct(conn); err != nil {
		return nil, fieldErrors(typ, err)
	}

	return conn, nil
}

// ValidateList validates records in order. The first failure is returned
// with its index.
func (r *Registry) ValidateList(raw []any) ([]connection.Connection, error) {
	conns := make([]connection.Connection, 0, len(raw))
	for i, item := range raw {
		conn, err := r.Validate(item)
		if err != nil {
			return nil, fmt.Errorf("connections[%d]: %w", i, err)
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// copyNode deep-copies n so interpolation never writes through to the
// caller's tree. Alias targets are shared; interpolation does not follow them.
func copyNode(n *yaml.Node) yaml.Node {
	c := *n
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			cc := copyNode(child)
			c.Content[i] = &cc
		}
	}
	return c
}

func mappingString(n *yaml.Node, key string) (string, bool) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value != key {
			continue
		}
		v := n.Content[i+1]
		if v.Kind != yaml.ScalarNode || v.ShortTag() != "!!str" {
			return "", false
		}
		return v.Value, true
	}
	return "", false
}

func describeNode(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return n.ShortTag()
	case yaml.AliasNode:
		return "alias"
	default:
		return "empty value"
	}
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func yamlFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// RegistrationError is returned when a kind cannot be registered.
type RegistrationError struct {
	Type   string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register connection type %q: %s", e.Type, e.Reason)
}

// UnknownTypeError is returned for a record whose discriminator is not
// registered.
type UnknownTypeError struct {
	Type      string
	Available string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown connection type %q, available types: %s", e.Type, e.Available)
}

// FieldError reports struct validation failures for one connection record.
type FieldError struct {
	Type   string
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s connection: %s", e.Type, strings.Join(e.Fields, "; "))
}

func fieldErrors(typ string, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate %s connection: %w", typ, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields = append(fields, fmt.Sprintf("%s: %s", fieldPath(fe), msg))
	}
	return &FieldError{Type: typ, Fields: fields}
}

// fieldPath drops the struct name and the inline Base segment.
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, p := range parts {
		if p == "Base" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

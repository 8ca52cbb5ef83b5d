// Package formatter provides a pluggable output formatting system.
// Formatters render CLI output as an aligned table, JSON or YAML.
package formatter

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/artpar/limbo/core/schema"
)

// ErrNotTabular is returned by formatters that can only render lists.
var ErrNotTabular = errors.New("output cannot be rendered as a table")

// Formatter converts structured data to a specific output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// FormatList formats records, showing the given columns in order.
	FormatList(w io.Writer, columns []string, records []map[string]any, opts FormatOptions) error

	// FormatDocument formats a whole document such as a project.
	FormatDocument(w io.Writer, doc any, opts FormatOptions) error

	// FormatError formats an error. Validation errors become one record
	// per field.
	FormatError(w io.Writer, err error) error
}

// FormatOptions configures formatting behavior.
type FormatOptions struct {
	// NoHeader disables header row for tabular formats.
	NoHeader bool

	// Compact minimizes whitespace (for json).
	Compact bool

	// MaxWidth truncates long values (0 = no limit).
	MaxWidth int
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "table",
	}
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}

	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]
	return f, ok
}

// Lookup is Get with an error naming the available formatters.
func (r *Registry) Lookup(name string) (Formatter, error) {
	if f, ok := r.Get(name); ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown output format %q (available: %v)", name, r.List())
}

// Default returns the default formatter.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.formatters[r.defaultFmt]
}

// SetDefault sets the default formatter.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[name]; !exists {
		return fmt.Errorf("formatter %q not registered", name)
	}

	r.defaultFmt = name
	return nil
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter to the default registry.
func Register(f Formatter) error {
	return DefaultRegistry.Register(f)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// Lookup returns a formatter from the default registry or an error.
func Lookup(name string) (Formatter, error) {
	return DefaultRegistry.Lookup(name)
}

// List returns all formatter names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}

// ErrorColumns are the columns of ErrorRecords.
var ErrorColumns = []string{"field", "file", "error"}

// ErrorRecords flattens err into records with ErrorColumns.
func ErrorRecords(err error) []map[string]any {
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		return []map[string]any{{"field": "", "file": "", "error": err.Error()}}
	}

	records := make([]map[string]any, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		records = append(records, map[string]any{
			"field": fe.Field,
			"file":  fe.File,
			"error": fe.Err.Error(),
		})
	}
	return records
}

// plain converts doc to maps, slices and scalars through its YAML form, so
// every format sees the same field names and custom marshalers.
func plain(doc any) (any, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// project keeps only columns, in order.
func project(columns []string, records []map[string]any) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, record := range records {
		row := make(map[string]any, len(columns))
		for _, col := range columns {
			row[col] = record[col]
		}
		out[i] = row
	}
	return out
}

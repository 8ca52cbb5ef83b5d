// Package paths resolves filesystem path expressions found in YAML values.
//
// A value is either a plain relative path, which must exist, or a single
// ${path:alias[.attr]*} bracket followed by an optional suffix:
//
//	seeds/users.csv               relative, existence-checked
//	${path:this}/seeds/users.csv  joined onto the "this" root
//	${path:this.parent}/shared    attributes walk the root first
//
// Resolution is eager: the result is a concrete path, never a deferred value.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/artpar/limbo/core/scope"
	"github.com/artpar/limbo/core/value"
)

// Factory resolves path expressions against a Context.
type Factory struct {
	scope *scope.Context
	fs    billy.Basic
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFilesystem sets the filesystem used for existence checks of plain
// paths. The default is the native OS filesystem.
func WithFilesystem(fs billy.Basic) FactoryOption {
	return func(f *Factory) {
		f.fs = fs
	}
}

// NewFactory creates a Factory. sc must not be nil.
func NewFactory(sc *scope.Context, opts ...FactoryOption) (*Factory, error) {
	if err := scope.Require(sc); err != nil {
		return nil, err
	}

	f := &Factory{scope: sc}
	for _, opt := range opts {
		opt(f)
	}
	if f.fs == nil {
		f.fs = osfs.Default
	}
	return f, nil
}

// Resolve turns a raw YAML value into a path.
func (f *Factory) Resolve(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", &TypeError{Value: raw}
	}

	b, found, err := value.SingleBracket(s)
	if err != nil {
		return "", err
	}
	if !found {
		return f.literal(s)
	}

	if b.Prefix != "path" {
		return "", &value.UnsupportedPrefixError{Prefix: b.Prefix}
	}

	base, err := f.walk(b.Content)
	if err != nil {
		return "", err
	}

	suffix := strings.Trim(b.Strip(s), "/ ")
	if suffix == "" {
		return base, nil
	}
	return filepath.Join(base, suffix), nil
}

// literal enforces the relative-and-existing policy for plain paths.
func (f *Factory) literal(s string) (string, error) {
	if filepath.IsAbs(s) {
		return "", &PolicyError{Path: s, Reason: "path is absolute, must be relative to the project root"}
	}

	if _, err := f.fs.Stat(s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &PolicyError{Path: s, Reason: "not found"}
		}
		return "", fmt.Errorf("stat %s: %w", s, err)
	}

	return filepath.Clean(s), nil
}

// walk resolves "alias.attr.attr" against the path roots.
func (f *Factory) walk(content string) (string, error) {
	parts := strings.Split(content, ".")

	current, err := f.scope.Path(parts[0])
	if err != nil {
		return "", err
	}

	for _, attr := range parts[1:] {
		next, err := Attr(current, attr)
		if err != nil {
			return "", err
		}
		current = next
	}

	return current, nil
}

// Attr applies a path attribute:
//
//	parent  directory containing p
//	name    final element
//	stem    final element without its extension
//	suffix  extension of the final element, including the dot
func Attr(p, attr string) (string, error) {
	switch attr {
	case "parent":
		return filepath.Dir(p), nil
	case "name":
		return filepath.Base(p), nil
	case "stem":
		base := filepath.Base(p)
		return strings.TrimSuffix(base, filepath.Ext(base)), nil
	case "suffix":
		return filepath.Ext(p), nil
	default:
		return "", &AttributeError{Path: p, Attr: attr}
	}
}

// TypeError is returned for non-string path values.
type TypeError struct {
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("path must be a string, got %T", e.Value)
}

// PolicyError is returned when a plain path is absolute or does not exist.
type PolicyError struct {
	Path   string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("path %s: %s", e.Path, e.Reason)
}

// AttributeError is returned for an unknown path attribute.
type AttributeError struct {
	Path string
	Attr string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("path %s has no attribute %q (supported: parent, name, stem, suffix)", e.Path, e.Attr)
}

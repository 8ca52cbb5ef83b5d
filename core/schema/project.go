package schema

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/artpar/limbo/core/connection"
	"github.com/artpar/limbo/core/scope"
)

// DevVersion is the version reported by unreleased builds. It satisfies
// every requires constraint.
const DevVersion = "dev"

// Project is a parsed and validated project.
type Project struct {
	// Requires is a semver constraint on the limbo version, e.g. ">= 0.4".
	Requires string `yaml:"requires,omitempty"`

	// Vars are free-form values for generators. They are not interpreted.
	Vars map[string]any `yaml:"vars,omitempty"`

	Connections []connection.Connection `yaml:"connections,omitempty" validate:"-"`
	Tables      []Table                 `yaml:"tables" validate:"dive"`
	Seeds       []Seed                  `yaml:"seeds" validate:"dive"`
	Sources     []Source                `yaml:"sources" validate:"dive"`

	scope *scope.Context
}

// Scope returns the Context the project was validated against: the caller's
// Context plus the project's connections.
func (p *Project) Scope() *scope.Context {
	return p.scope
}

// Table returns a table by name.
func (p *Project) Table(name string) (Table, bool) {
	for _, t := range p.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Seed returns a seed by name.
func (p *Project) Seed(name string) (Seed, bool) {
	for _, s := range p.Seeds {
		if s.Name == name {
			return s, true
		}
	}
	return Seed{}, false
}

// Source returns a source by name.
func (p *Project) Source(name string) (Source, bool) {
	for _, s := range p.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// CheckRequires reports whether version satisfies the constraint. An empty
// constraint and DevVersion always pass.
func CheckRequires(constraint, version string) error {
	if constraint == "" || version == "" || version == DevVersion {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid limbo version %q: %w", version, err)
	}

	if ok, errs := c.Validate(v); !ok {
		if len(errs) > 0 {
			return fmt.Errorf("limbo %s does not satisfy %q: %w", v, constraint, errs[0])
		}
		return fmt.Errorf("limbo %s does not satisfy %q", v, constraint)
	}

	return nil
}

package schema

import (
	"github.com/artpar/limbo/core/connection"
	"github.com/artpar/limbo/core/scope"
	"github.com/artpar/limbo/core/value"
)

// Artifact holds the fields shared by tables, seeds and sources.
type Artifact struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description,omitempty"`
}

// Column is a column of a seed or source.
type Column struct {
	Name        string         `yaml:"name" validate:"required"`
	Description string         `yaml:"description,omitempty"`
	DataType    value.DataType `yaml:"data_type" validate:"required"`
}

// ReferenceType names the kind of artifact a table references.
type ReferenceType string

const (
	ReferenceTable  ReferenceType = "table"
	ReferenceSeed   ReferenceType = "seed"
	ReferenceSource ReferenceType = "source"
)

// Relationship is the cardinality of a table reference.
type Relationship string

const (
	OneToOne   Relationship = "one_to_one"
	OneToMany  Relationship = "one_to_many"
	ManyToOne  Relationship = "many_to_one"
	ManyToMany Relationship = "many_to_many"
)

// Table is an artifact whose rows are generated.
type Table struct {
	Artifact   `yaml:",inline"`
	Config     TableConfig      `yaml:"config"`
	Columns    []TableColumn    `yaml:"columns" validate:"min=1,dive"`
	References []TableReference `yaml:"references,omitempty" validate:"dive"`
}

// TableConfig controls generation of a table.
type TableConfig struct {
	Rows    int      `yaml:"rows,omitempty" validate:"gte=0"`
	Enabled *bool    `yaml:"enabled,omitempty"`
	Tags    []string `yaml:"tags,omitempty" validate:"dive,required"`
}

// IsEnabled reports whether the table takes part in generation. Tables are
// enabled unless configured otherwise.
func (c TableConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TableColumn is a generated column.
type TableColumn struct {
	Column    `yaml:",inline"`
	Generator string                  `yaml:"generator" validate:"required"`
	Options   map[string]value.Option `yaml:"options,omitempty"`
}

// TableReference links a table to another artifact.
type TableReference struct {
	Type         ReferenceType `yaml:"type" validate:"required,oneof=table seed source"`
	Name         string        `yaml:"name" validate:"required"`
	Relationship Relationship  `yaml:"relationship" validate:"required,oneof=one_to_one one_to_many many_to_one many_to_many"`
}

// Seed is an artifact loaded from a file.
type Seed struct {
	Artifact `yaml:",inline"`
	Columns  []Column `yaml:"columns" validate:"min=1,dive"`
	SeedFile SeedFile `yaml:"seed_file"`
}

// Source is an artifact read through a declared connection.
type Source struct {
	Artifact `yaml:",inline"`
	Config   SourceConfig `yaml:"config"`
	Columns  []Column     `yaml:"columns" validate:"min=1,dive"`
}

// SourceConfig names where a source lives.
type SourceConfig struct {
	Connection string `yaml:"connection" validate:"required"`
	SchemaName string `yaml:"schema_name,omitempty"`
	TableName  string `yaml:"table_name,omitempty"`
}

// Connection returns the declared connection the source reads from.
func (s Source) Connection(sc *scope.Context) (connection.Connection, error) {
	if err := scope.Require(sc); err != nil {
		return nil, err
	}
	return sc.GetConnection(s.Config.Connection)
}

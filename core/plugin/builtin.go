package plugin

import (
	"github.com/artpar/limbo/adapters/postgres"
	"github.com/artpar/limbo/adapters/sqlite"
	"github.com/artpar/limbo/core/registry"
)

// BuiltinName is the name of the plugin that ships with limbo.
const BuiltinName = "limbo_builtin"

// Builtin provides the connection kinds and generators that ship with limbo.
type Builtin struct{}

// Name returns BuiltinName.
func (Builtin) Name() string {
	return BuiltinName
}

// Connections returns the sqlite and postgres kinds.
func (Builtin) Connections() []registry.Kind {
	return []registry.Kind{
		{Type: sqlite.Type, New: sqlite.New},
		{Type: postgres.Type, New: postgres.New},
	}
}

// Generators returns the built-in generator identifiers.
func (Builtin) Generators() []string {
	return []string{
		"pii.full_name",
		"pii.email",
		"pii.password",
		"primary_key.incrementing_id",
		"foreign_key.key",
		"datetime.random",
	}
}

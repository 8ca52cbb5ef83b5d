package registry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/limbo/core/connection"
	"github.com/artpar/limbo/core/interpolate"
)

type warehouseConn struct {
	connection.Base `yaml:",inline"`
	Host            string            `yaml:"host" validate:"required"`
	Port            int               `yaml:"port" validate:"omitempty,gt=0,lt=65536"`
	Password        connection.Secret `yaml:"password"`
}

func (c *warehouseConn) Type() string { return "warehouse" }

func (c *warehouseConn) Connect(ctx context.Context) (*sql.DB, error) {
	return nil, errors.New("not implemented in tests")
}

type lakeConn struct {
	connection.Base `yaml:",inline"`
	Bucket          string `yaml:"bucket" validate:"required"`
}

func (c *lakeConn) Type() string { return "lake" }

func (c *lakeConn) Connect(ctx context.Context) (*sql.DB, error) {
	return nil, errors.New("not implemented in tests")
}

type untypedConn struct {
	connection.Base `yaml:",inline"`
}

func (c *untypedConn) Type() string { return "" }

func (c *untypedConn) Connect(ctx context.Context) (*sql.DB, error) { return nil, nil }

var (
	warehouseKind = Kind{Type: "warehouse", New: func() connection.Connection { return &warehouseConn{} }}
	lakeKind      = Kind{Type: "lake", New: func() connection.Connection { return &lakeConn{} }}
)

func newTestRegistry(t *testing.T, env map[string]string) *Registry {
	t.Helper()

	r := NewWithLookup(interpolate.MapLookup(env, nil))
	for _, k := range []Kind{warehouseKind, lakeKind} {
		require.NoError(t, r.Register(k), "Register(%s)", k.Type)
	}
	return r
}

func TestNew(t *testing.T) {
	r := New()
	require.NotNil(t, r)
	assert.NotNil(t, r.kinds, "kinds map not initialized")
	assert.Empty(t, r.Types())
}

func TestRegistry_Register(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(warehouseKind))

	kind, ok := r.Get("warehouse")
	require.True(t, ok, "Get() should find registered kind")
	assert.Equal(t, "warehouse", kind.Type)
}

func TestRegistry_Register_MissingDefault(t *testing.T) {
	r := New()

	err := r.Register(Kind{Type: "", New: func() connection.Connection { return &untypedConn{} }})

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Contains(t, err.Error(), "missing type default")
	assert.Contains(t, err.Error(), "untypedConn")
}

func TestRegistry_Register_MismatchedType(t *testing.T) {
	r := New()
	assert.Error(t, r.Register(Kind{Type: "lake", New: warehouseKind.New}),
		"a kind whose value reports another type must be rejected")
}

func TestRegistry_Register_MissingConstructor(t *testing.T) {
	r := New()
	assert.Error(t, r.Register(Kind{Type: "lake"}))
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(warehouseKind))

	err := r.Register(warehouseKind)
	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "already registered", regErr.Reason)
}

func TestRegistry_CacheInvalidation(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(warehouseKind))
	require.Len(t, r.Types(), 1)

	// lake records fail until the kind is registered
	rec := map[string]any{"type": "lake", "name": "l", "bucket": "b"}
	_, err := r.Validate(rec)
	require.Error(t, err)

	require.NoError(t, r.Register(lakeKind))
	assert.Equal(t, []string{"lake", "warehouse"}, r.Types())
	_, err = r.Validate(rec)
	assert.NoError(t, err)

	require.NoError(t, r.Unregister("lake"))
	_, err = r.Validate(rec)
	assert.Error(t, err, "Validate() should fail after Unregister")

	r.Clear()
	assert.Empty(t, r.Types())
}

func TestRegistry_Unregister_Unknown(t *testing.T) {
	assert.Error(t, New().Unregister("nope"))
}

func TestRegistry_Validate(t *testing.T) {
	r := newTestRegistry(t, map[string]string{"DB_PASS": "s3cret"})

	conn, err := r.Validate(map[string]any{
		"type":     "warehouse",
		"name":     "main_db",
		"host":     "localhost",
		"port":     5432,
		"password": "${env:DB_PASS}",
	})
	require.NoError(t, err)

	wc, ok := conn.(*warehouseConn)
	require.True(t, ok, "Validate() returned %T", conn)
	assert.Equal(t, "main_db", wc.ConnectionName())
	assert.Equal(t, 5432, wc.Port)
	assert.Equal(t, "s3cret", wc.Password.Reveal())
	assert.Equal(t, wc.Kind, wc.Type())
}

func TestRegistry_Validate_InterpolatedPort(t *testing.T) {
	r := newTestRegistry(t, nil)

	conn, err := r.Validate(map[string]any{
		"type": "warehouse",
		"name": "w",
		"host": "${env:HOST:-db.internal}",
		"port": "${env:PORT:-6543}",
	})
	require.NoError(t, err)

	wc := conn.(*warehouseConn)
	assert.Equal(t, "db.internal", wc.Host)
	assert.Equal(t, 6543, wc.Port)
}

func TestRegistry_Validate_MissingEnv(t *testing.T) {
	r := newTestRegistry(t, nil)

	_, err := r.Validate(map[string]any{
		"type": "warehouse",
		"name": "w",
		"host": "${env:HOST}",
	})

	var missing *interpolate.MissingEnvError
	assert.ErrorAs(t, err, &missing)
}

func TestRegistry_Validate_Errors(t *testing.T) {
	r := newTestRegistry(t, nil)

	tests := []struct {
		name    string
		raw     any
		wantMsg string
	}{
		{"not a mapping", []any{"a"}, "must be a mapping"},
		{"scalar", "warehouse", "must be a mapping"},
		{"missing type", map[string]any{"name": "x"}, `"type"`},
		{"non-string type", map[string]any{"type": 3, "name": "x"}, `"type"`},
		{"unknown type", map[string]any{"type": "mongo", "name": "x"}, "available types: lake, warehouse"},
		{"missing required", map[string]any{"type": "warehouse", "name": "x"}, "host: required"},
		{"missing name", map[string]any{"type": "lake", "bucket": "b"}, "name: required"},
		{"bad port", map[string]any{"type": "warehouse", "name": "x", "host": "h", "port": 70000}, "port: lt=65536"},
		{"wrong field type", map[string]any{"type": "warehouse", "name": "x", "host": "h", "port": "abc"}, "decode warehouse connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Validate(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRegistry_Validate_UnknownTypeNone(t *testing.T) {
	_, err := New().Validate(map[string]any{"type": "sqlite", "name": "x"})

	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "none", unknown.Available)
}

func TestRegistry_Validate_YAMLNode(t *testing.T) {
	r := newTestRegistry(t, nil)

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("type: lake\nname: archive\nbucket: s3://archive\n"), &doc))

	conn, err := r.Validate(&doc)
	require.NoError(t, err)
	assert.Equal(t, "s3://archive", conn.(*lakeConn).Bucket)
}

func TestRegistry_Validate_YAMLNodeUntouched(t *testing.T) {
	r := newTestRegistry(t, map[string]string{"BUCKET": "s3://resolved"})

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("type: lake\nname: archive\nbucket: ${env:BUCKET}\n"), &doc))

	conn, err := r.Validate(&doc)
	require.NoError(t, err)
	assert.Equal(t, "s3://resolved", conn.(*lakeConn).Bucket)

	out, err := yaml.Marshal(&doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "${env:BUCKET}", "caller's node was rewritten")
	assert.NotContains(t, string(out), "s3://resolved")
}

func TestRegistry_ValidateList_PreservesOrder(t *testing.T) {
	r := newTestRegistry(t, nil)

	conns, err := r.ValidateList([]any{
		map[string]any{"type": "lake", "name": "first", "bucket": "a"},
		map[string]any{"type": "warehouse", "name": "second", "host": "h"},
		map[string]any{"type": "lake", "name": "third", "bucket": "c"},
	})
	require.NoError(t, err)

	var names []string
	for _, c := range conns {
		names = append(names, c.ConnectionName())
	}
	assert.Equal(t, "first,second,third", strings.Join(names, ","))
}

func TestRegistry_ValidateList_IndexedError(t *testing.T) {
	r := newTestRegistry(t, nil)

	_, err := r.ValidateList([]any{
		map[string]any{"type": "lake", "name": "ok", "bucket": "a"},
		map[string]any{"type": "lake", "name": "broken"},
	})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "connections[1]: "), err.Error())
}

func TestRegistry_ValidateList_Empty(t *testing.T) {
	conns, err := newTestRegistry(t, nil).ValidateList(nil)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

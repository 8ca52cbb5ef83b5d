// Package connection defines the contract every connection kind satisfies.
//
// A connection kind is a plain struct decoded from a project's connections
// list. Its discriminator is fixed by the kind (Type never depends on the
// decoded data) and it knows how to open a live handle from its validated
// parameters. Concrete kinds live under adapters/ and are registered with
// core/registry by a plugin.
package connection

import (
	"context"
	"database/sql"
	"fmt"
)

// Connection is a validated, declared connection.
type Connection interface {
	// Type returns the fixed discriminator of the kind, e.g. "sqlite".
	Type() string

	// ConnectionName returns the user-facing name sources refer to.
	ConnectionName() string

	// Connect opens a live handle or fails with a descriptive error.
	Connect(ctx context.Context) (*sql.DB, error)
}

// Base holds the fields shared by every connection kind. Kinds embed it
// inline.
type Base struct {
	Kind string `yaml:"type" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

// ConnectionName returns the declared name.
func (b Base) ConnectionName() string {
	return b.Name
}

// ConnectError wraps a failure to open or reach a connection.
type ConnectError struct {
	Name string
	Type string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s connection %q: %v", e.Type, e.Name, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Open opens driverName with dsn and pings it. Failures are wrapped in a
// ConnectError naming conn.
func Open(ctx context.Context, conn Connection, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &ConnectError{Name: conn.ConnectionName(), Type: conn.Type(), Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectError{Name: conn.ConnectionName(), Type: conn.Type(), Err: err}
	}

	return db, nil
}

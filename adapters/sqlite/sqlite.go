// Package sqlite provides the "sqlite" connection kind.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/limbo/core/connection"
)

// Type is the discriminator of the sqlite connection kind.
const Type = "sqlite"

const driverName = "sqlite3"

// defaultParams are applied unless overridden in options.
var defaultParams = map[string]string{
	"_journal_mode": "WAL",
	"_busy_timeout": "5000",
}

// Connection is a SQLite database file, or ":memory:".
//
//	connections:
//	  - type: sqlite
//	    name: local
//	    database: ${env:LIMBO_DB:-limbo.db}
//	    pragmas: [ "PRAGMA foreign_keys = ON" ]
type Connection struct {
	connection.Base `yaml:",inline"`

	Database string            `yaml:"database" validate:"required"`
	Options  map[string]string `yaml:"options,omitempty"`
	Pragmas  []string          `yaml:"pragmas,omitempty" validate:"dive,startswith=PRAGMA"`
}

// New returns an empty sqlite connection for decoding.
func New() connection.Connection {
	return &Connection{}
}

// Type returns "sqlite".
func (c *Connection) Type() string {
	return Type
}

// DSN returns the go-sqlite3 data source name. In-memory databases get no
// default parameters.
func (c *Connection) DSN() string {
	params := make(map[string]string, len(defaultParams)+len(c.Options))
	if c.Database != ":memory:" {
		for k, v := range defaultParams {
			params[k] = v
		}
	}
	for k, v := range c.Options {
		params[k] = v
	}
	if len(params) == 0 {
		return c.Database
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var q []string
	for _, k := range keys {
		q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	return c.Database + "?" + strings.Join(q, "&")
}

// Connect opens the database and applies the configured pragmas. Pragmas
// are per connection, so a database with pragmas is limited to a single
// pooled connection.
func (c *Connection) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := connection.Open(ctx, c, driverName, c.DSN())
	if err != nil {
		return nil, err
	}
	if len(c.Pragmas) > 0 {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range c.Pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, &connection.ConnectError{
				Name: c.Name,
				Type: Type,
				Err:  fmt.Errorf("set pragma: %w", err),
			}
		}
	}

	return db, nil
}

// Package postgres provides the "postgres" connection kind backed by pgx.
package postgres

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"sort"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/artpar/limbo/core/connection"
)

// Type is the discriminator of the postgres connection kind.
const Type = "postgres"

const driverName = "pgx"

// Connection describes a PostgreSQL server.
//
//	connections:
//	  - type: postgres
//	    name: warehouse
//	    host: ${env:PGHOST:-localhost}
//	    port: ${env:PGPORT:-5432}
//	    user: ${env:PGUSER}
//	    password: ${env:PGPASSWORD}
//	    database: analytics
type Connection struct {
	connection.Base `yaml:",inline"`

	Host           string            `yaml:"host" validate:"required"`
	Port           int               `yaml:"port,omitempty" validate:"omitempty,gt=0,lt=65536"`
	User           string            `yaml:"user" validate:"required"`
	Password       connection.Secret `yaml:"password,omitempty"`
	Database       string            `yaml:"database" validate:"required"`
	SSLMode        string            `yaml:"sslmode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	ConnectionArgs map[string]string `yaml:"connection_args,omitempty"`
}

// New returns an empty postgres connection for decoding.
func New() connection.Connection {
	return &Connection{}
}

// Type returns "postgres".
func (c *Connection) Type() string {
	return Type
}

// URL builds the connection URL. The password is included; use Redacted
// for anything that is logged.
func (c *Connection) URL() string {
	return c.url(c.Password.Reveal())
}

// Redacted returns URL with the password masked.
func (c *Connection) Redacted() string {
	return c.url(c.Password.String())
}

func (c *Connection) url(password string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Host,
		Path:   "/" + c.Database,
	}
	if c.Port != 0 {
		u.Host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	if password != "" {
		u.User = url.UserPassword(c.User, password)
	} else {
		u.User = url.User(c.User)
	}

	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	keys := make([]string, 0, len(c.ConnectionArgs))
	for k := range c.ConnectionArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, c.ConnectionArgs[k])
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Connect opens a pgx-backed *sql.DB and pings the server.
func (c *Connection) Connect(ctx context.Context) (*sql.DB, error) {
	return connection.Open(ctx, c, driverName, c.URL())
}

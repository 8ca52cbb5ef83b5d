package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/limbo/adapters/sqlite"
	"github.com/artpar/limbo/core/connection"
)

func TestConnection_Type(t *testing.T) {
	assert.Equal(t, sqlite.Type, sqlite.New().Type())
}

func TestConnection_DSN(t *testing.T) {
	tests := []struct {
		name string
		conn sqlite.Connection
		want string
	}{
		{
			name: "file with defaults",
			conn: sqlite.Connection{Database: "limbo.db"},
			want: "limbo.db?_busy_timeout=5000&_journal_mode=WAL",
		},
		{
			name: "override default",
			conn: sqlite.Connection{Database: "limbo.db", Options: map[string]string{"_journal_mode": "DELETE"}},
			want: "limbo.db?_busy_timeout=5000&_journal_mode=DELETE",
		},
		{
			name: "memory",
			conn: sqlite.Connection{Database: ":memory:"},
			want: ":memory:",
		},
		{
			name: "memory with options",
			conn: sqlite.Connection{Database: ":memory:", Options: map[string]string{"cache": "shared"}},
			want: ":memory:?cache=shared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.conn.DSN())
		})
	}
}

func TestConnection_Connect(t *testing.T) {
	c := &sqlite.Connection{
		Base:     connection.Base{Kind: sqlite.Type, Name: "local"},
		Database: filepath.Join(t.TempDir(), "test.db"),
		Pragmas:  []string{"PRAGMA foreign_keys = ON"},
	}

	db, err := c.Connect(context.Background())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections, "pragmas must apply to every pooled connection")

	for i := 0; i < 3; i++ {
		var on int
		require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&on))
		assert.Equal(t, 1, on)
	}
}

func TestConnection_Connect_NoPragmasKeepsPool(t *testing.T) {
	c := &sqlite.Connection{
		Base:     connection.Base{Kind: sqlite.Type, Name: "local"},
		Database: filepath.Join(t.TempDir(), "test.db"),
	}

	db, err := c.Connect(context.Background())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 0, db.Stats().MaxOpenConnections, "pool is unbounded without pragmas")
}

func TestConnection_Connect_BadPragma(t *testing.T) {
	c := &sqlite.Connection{
		Base:     connection.Base{Kind: sqlite.Type, Name: "local"},
		Database: ":memory:",
		Pragmas:  []string{"PRAGMA this is not sql"},
	}

	_, err := c.Connect(context.Background())

	var connectErr *connection.ConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, "local", connectErr.Name)
}

func TestConnection_Connect_MissingDirectory(t *testing.T) {
	c := &sqlite.Connection{
		Base:     connection.Base{Kind: sqlite.Type, Name: "broken"},
		Database: filepath.Join(t.TempDir(), "missing", "dir", "x.db"),
	}

	_, err := c.Connect(context.Background())
	assert.Error(t, err, "Connect() should fail when the directory does not exist")
}

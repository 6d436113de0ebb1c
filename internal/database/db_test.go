package database

import (
	"io/fs"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/meatshop-backoffice/internal/config"
	"github.com/iliyamo/meatshop-backoffice/internal/database/migrations"
)

func TestDSN(t *testing.T) {
	cfg := config.Config{DBUser: "shop", DBPass: "p@ss", DBHost: "db", DBPort: "3306", DBName: "meatshop"}

	parsed, err := mysql.ParseDSN(DSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "shop", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "meatshop", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "UTC", parsed.Loc.String())
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_create_users.sql", "00002_create_refresh_tokens.sql"}, entries)
}

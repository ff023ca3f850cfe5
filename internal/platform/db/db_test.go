package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
version: "1.0.0"
mode: release
database:
  host: db.local
  port: 3307
  user: lib
  password: from-file
  dbname: biblioteca
auth:
  jwt_secret: file-secret
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfig_FileValues(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, "db.local", cfg.DB.Host)
	assert.Equal(t, 3307, cfg.DB.Port)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	// defaults
	assert.Equal(t, ":8443", cfg.Server.Addr)
	assert.Equal(t, 24, cfg.Auth.TokenTTLHour)
	assert.Equal(t, 10, cfg.Server.ShutdownTimeout)
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("DB_PORT", "3310")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.DB.Password)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 3310, cfg.DB.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	dsn := DatabaseConfig{Host: "h", Port: 3306, Username: "u", Password: "p", DBName: "d"}.DSN()

	assert.Contains(t, dsn, "u:p@tcp(h:3306)/d")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "loc=UTC")
}

func TestMySQLErrorNumber(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &mysql.MySQLError{Number: ErrDuplicateEntry, Message: "dup"})

	n, ok := MySQLErrorNumber(wrapped)
	require.True(t, ok)
	assert.Equal(t, uint16(ErrDuplicateEntry), n)

	_, ok = MySQLErrorNumber(errors.New("plain"))
	assert.False(t, ok)
}

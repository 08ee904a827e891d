package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, found, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  host: db.internal
  port: 6543
  max_conns: 12
server:
  addr: ":9090"
  read_timeout: 5s
  allowed_origins:
    - https://crm.example.com
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("CRM_DATABASE_PASSWORD", "s3cret")
	t.Setenv("CRM_SERVER_ADDR", ":7070")

	cfg, found, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, int32(12), cfg.Database.MaxConns)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://crm.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, Default().Database.DBName, cfg.Database.DBName)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database: [unclosed"), 0o600))

	_, _, err := Load(dir)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  sqlite_path: /tmp/ledger.db
lock:
  backend: local
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/ledger.db", cfg.Database.SQLitePath)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Business.PaymentExpiry())
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "ledger_events", cfg.Kafka.Topic.LedgerEvents)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)
	t.Setenv("APP_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: oracle
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 20, cfg.Business.HistoryPageSize)
	assert.Equal(t, 5*time.Minute, cfg.Business.ReconcileInterval)
	assert.Equal(t, "redis", cfg.Lock.Backend)
}

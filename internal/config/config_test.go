package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 32.0, cfg.Ledger.KFactor)
	assert.Equal(t, 1000, cfg.Ledger.DefaultRating)
	assert.Equal(t, "per_team", cfg.Ledger.Rounding)
	assert.Equal(t, 2*time.Second, cfg.Ledger.StarterWindow)
	assert.Equal(t, 3, cfg.Ledger.MinOpponentGames)
	assert.Equal(t, "discord", cfg.Notify.OriginSource)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_LEDGER_DRIVER", "postgres")
	t.Setenv("TEST_LEDGER_BOARD", "board-1")

	cfg, err := Load(writeConfig(t, `
storage:
  driver: ${TEST_LEDGER_DRIVER}
ledger:
  default_leaderboard_id: ${TEST_LEDGER_BOARD}
  rounding: largest_remainder
  starter_window: 500ms
`))
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "board-1", cfg.Ledger.DefaultLeaderboardID)
	assert.Equal(t, "largest_remainder", cfg.Ledger.Rounding)
	assert.Equal(t, 500*time.Millisecond, cfg.Ledger.StarterWindow)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "driver", body: "storage:\n  driver: mongo\n"},
		{name: "rounding", body: "ledger:\n  rounding: banker\n"},
		{name: "k factor", body: "ledger:\n  k_factor: -4\n"},
		{name: "yaml", body: "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", (&PostgresConfig{
		User: "u", Password: "p", Host: "localhost", Port: 5432, Database: "db",
	}).ConnectionString())
}

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", noEnv)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Redis.CartTTL)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, slog.LevelInfo, cfg.level())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
log:
  level: debug
store:
  driver: sqlite
  dsn: /tmp/till.db
redis:
  cart_ttl: 2h
loyalty:
  earn_points: 1
  earn_per: 100
`), 0o600))

	env := map[string]string{
		"TILL_HTTP_ADDR":     ":9100",
		"TILL_KAFKA_BROKERS": "k1:9092,k2:9092",
	}
	cfg, err := loadConfig(path, func(k string) string { return env[k] })
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/till.db", cfg.Store.DSN)
	assert.Equal(t, 2*time.Hour, cfg.Redis.CartTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(100), cfg.Loyalty.EarnPer)
	assert.Equal(t, slog.LevelDebug, cfg.level())
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Unknown driver", map[string]string{"TILL_STORE_DRIVER": "oracle"}},
		{"Sqlite without dsn", map[string]string{"TILL_STORE_DRIVER": "sqlite"}},
		{"Booking without from", map[string]string{"TILL_BOOKING_API_KEY": "re_x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig("", func(k string) string { return tt.env[k] })
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), noEnv)
	assert.Error(t, err)
}

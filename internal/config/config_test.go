package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordertrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  db_path: /var/lib/ordertrail/log.db
masters:
  dir: ""
  pebble: /var/lib/ordertrail/masters
log:
  level: debug
  format: json
kafka:
  brokers: a:9092,b:9092
`), 0o644))

	t.Setenv("ORDERTRAIL_ADDR", "127.0.0.1:9000")
	t.Setenv("ORDERTRAIL_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ordertrail/log.db", cfg.Store.DBPath)
	assert.Equal(t, "", cfg.Masters.Dir)
	assert.Equal(t, "/var/lib/ordertrail/masters", cfg.Masters.Pebble)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "a:9092,b:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "ordertrail.changelog", cfg.Kafka.Topic, "default topic survives a partial kafka block")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unterminated"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		want string
	}{
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"brokers without topic", func(c *Config) { c.Kafka.Brokers = "a:9092"; c.Kafka.Topic = "" }, "kafka.topic"},
		{"no masters", func(c *Config) { c.Masters = MastersConfig{} }, "no master source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echoworld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
simulation:
  seed: 42
  population: 8
  cycle_interval: 250ms
  retire_parents: true
storage:
  db_path: /tmp/ew.db
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, 8, cfg.Simulation.Population)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.CycleInterval)
	assert.True(t, cfg.Simulation.RetireParents)
	assert.Equal(t, "/tmp/ew.db", cfg.Storage.DBPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Simulation.MaxFusions, "unset keys keep defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echoworld.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  population: 8\n"), 0o644))

	t.Setenv("ECHOWORLD_POPULATION", "50")
	t.Setenv("ECHOWORLD_ADMIN_KEY", "secret")
	t.Setenv("ECHOWORLD_CYCLE_INTERVAL", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Simulation.Population)
	assert.Equal(t, "secret", cfg.API.AdminKey)
	assert.Equal(t, 3*time.Second, cfg.Simulation.CycleInterval)
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("ECHOWORLD_POPULATION", "many")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation: [oops"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative population", func(c *Config) { c.Simulation.Population = -1 }},
		{"zero interval", func(c *Config) { c.Simulation.CycleInterval = 0 }},
		{"negative speed", func(c *Config) { c.Simulation.Speed = -1 }},
		{"no db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"port range", func(c *Config) { c.API.Port = 70000 }},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"warden interval", func(c *Config) { c.Warden.Interval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "echoworld.yaml")
	cfg := Default()
	cfg.Simulation.Seed = 7
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Simulation.Seed)
}

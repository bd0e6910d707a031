// Package config loads echoworld settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all echoworld settings.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
	Entropy    EntropyConfig    `yaml:"entropy"`
	Warden     WardenConfig     `yaml:"warden"`
}

// SimulationConfig controls population and cycle behaviour.
type SimulationConfig struct {
	Seed             int64         `yaml:"seed" env:"ECHOWORLD_SEED"` // 0 = random
	Population       int           `yaml:"population" env:"ECHOWORLD_POPULATION"`
	CycleInterval    time.Duration `yaml:"cycle_interval" env:"ECHOWORLD_CYCLE_INTERVAL"`
	Speed            float64       `yaml:"speed" env:"ECHOWORLD_SPEED"`
	MaxCycles        uint64        `yaml:"max_cycles" env:"ECHOWORLD_MAX_CYCLES"` // 0 = run until stopped
	MaxQuarantine    int           `yaml:"max_quarantine_per_cycle" env:"ECHOWORLD_MAX_QUARANTINE"`
	MaxFusions       int           `yaml:"max_fusions_per_cycle" env:"ECHOWORLD_MAX_FUSIONS"`
	ReleaseAfter     int           `yaml:"release_after" env:"ECHOWORLD_RELEASE_AFTER"`
	ArenaEncounters  int           `yaml:"arena_encounters" env:"ECHOWORLD_ARENA_ENCOUNTERS"`
	CascadeInterval  uint64        `yaml:"cascade_interval" env:"ECHOWORLD_CASCADE_INTERVAL"`
	CascadeDepth     int           `yaml:"cascade_depth" env:"ECHOWORLD_CASCADE_DEPTH"`
	RetireParents    bool          `yaml:"retire_parents" env:"ECHOWORLD_RETIRE_PARENTS"`
	AutoSaveInterval uint64        `yaml:"autosave_interval" env:"ECHOWORLD_AUTOSAVE_INTERVAL"`
}

// StorageConfig locates the database.
type StorageConfig struct {
	DBPath string `yaml:"db_path" env:"ECHOWORLD_DB_PATH"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Port     int    `yaml:"port" env:"ECHOWORLD_API_PORT"`
	AdminKey string `yaml:"admin_key" env:"ECHOWORLD_ADMIN_KEY"` // empty disables admin endpoints
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"ECHOWORLD_LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"ECHOWORLD_LOG_FORMAT"` // text, json
}

// EntropyConfig selects the random source.
type EntropyConfig struct {
	RandomOrgKey string `yaml:"random_org_key" env:"RANDOM_ORG_API_KEY"`
}

// WardenConfig controls the tend loop that heals entities over the API.
type WardenConfig struct {
	APIURL     string        `yaml:"api_url" env:"ECHOWORLD_WARDEN_API_URL"`
	Interval   time.Duration `yaml:"interval" env:"ECHOWORLD_WARDEN_INTERVAL"`
	MaxActions int           `yaml:"max_actions" env:"ECHOWORLD_WARDEN_MAX_ACTIONS"`
	MemoryPath string        `yaml:"memory_path" env:"ECHOWORLD_WARDEN_MEMORY"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Population:       24,
			CycleInterval:    2 * time.Second,
			Speed:            1.0,
			MaxQuarantine:    20,
			MaxFusions:       5,
			ReleaseAfter:     5,
			ArenaEncounters:  3,
			CascadeInterval:  25,
			CascadeDepth:     1,
			AutoSaveInterval: 10,
		},
		Storage: StorageConfig{
			DBPath: "data/echoworld.db",
		},
		API: APIConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Warden: WardenConfig{
			APIURL:     "http://localhost:8080",
			Interval:   time.Minute,
			MaxActions: 3,
			MemoryPath: "data/warden_memory.json",
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
			// Defaults only.
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv loads overrides from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var validLevels = []string{"debug", "info", "warn", "error"}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	s := c.Simulation
	switch {
	case s.Population < 0:
		return fmt.Errorf("%w: population must be >= 0, got %d", ErrInvalid, s.Population)
	case s.CycleInterval <= 0:
		return fmt.Errorf("%w: cycle_interval must be positive", ErrInvalid)
	case s.Speed < 0:
		return fmt.Errorf("%w: speed must be >= 0", ErrInvalid)
	case s.MaxQuarantine < 0 || s.MaxFusions < 0 || s.ReleaseAfter < 0:
		return fmt.Errorf("%w: per-cycle limits must be >= 0", ErrInvalid)
	case s.ArenaEncounters < 0 || s.CascadeDepth < 0:
		return fmt.Errorf("%w: arena_encounters and cascade_depth must be >= 0", ErrInvalid)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("%w: storage.db_path is required", ErrInvalid)
	}
	if c.Warden.Interval <= 0 || c.Warden.MaxActions < 0 {
		return fmt.Errorf("%w: warden interval must be positive and max_actions >= 0", ErrInvalid)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("%w: api.port out of range: %d", ErrInvalid, c.API.Port)
	}

	level := strings.ToLower(c.Logging.Level)
	valid := false
	for _, l := range validLevels {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: log level %q (valid: %v)", ErrInvalid, c.Logging.Level, validLevels)
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		return fmt.Errorf("%w: log format %q (valid: text, json)", ErrInvalid, c.Logging.Format)
	}
	return nil
}

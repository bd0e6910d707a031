package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/echoworld/internal/config"
	"github.com/talgya/echoworld/internal/engine"
	"github.com/talgya/echoworld/internal/entropy"
	"github.com/talgya/echoworld/internal/field"
	"github.com/talgya/echoworld/internal/persistence"
)

var (
	cfgPath string
	dbPath  string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "echoworld",
	Short:        "Symbolic entity simulation",
	Long:         "Echoworld evolves a population of memory-bearing entities: drift, quarantine, healing, dreams, fusion and quests.",
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			c.Storage.DBPath = dbPath
		}
		if err := c.Validate(); err != nil {
			return err
		}

		logger, err := newLogger(os.Stderr, c.Logging)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "echoworld.yaml", "Config file (missing file = defaults)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: storage.db_path or $ECHOWORLD_DB_PATH)")
}

func openDB() (*persistence.DB, error) {
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Storage.DBPath, err)
	}
	slog.Debug("database opened", "path", cfg.Storage.DBPath)
	return db, nil
}

// resolveSeed prefers the configured seed, then the stored one. A fresh
// random seed is stored so the resonance field survives restarts.
func resolveSeed(db *persistence.DB) (int64, error) {
	if cfg.Simulation.Seed != 0 {
		return cfg.Simulation.Seed, nil
	}

	stored, err := db.GetMeta(persistence.MetaSeed)
	switch {
	case err == nil:
		seed, perr := strconv.ParseInt(stored, 10, 64)
		if perr == nil {
			return seed, nil
		}
		slog.Warn("ignoring malformed stored seed", "value", stored)
	case !errors.Is(err, persistence.ErrNotFound):
		return 0, err
	}

	seed := time.Now().UnixNano()
	if err := db.SaveMeta(persistence.MetaSeed, strconv.FormatInt(seed, 10)); err != nil {
		return 0, err
	}
	return seed, nil
}

// newSource returns the random.org pool when a key is configured, otherwise
// a seeded source.
func newSource(seed int64) entropy.Source {
	if key := cfg.Entropy.RandomOrgKey; key != "" {
		slog.Info("entropy: random.org pool enabled")
		return entropy.NewPool(key)
	}
	return entropy.NewSeeded(seed)
}

func simOptions(rng entropy.Source, seed int64) engine.Options {
	s := cfg.Simulation
	return engine.Options{
		Rng:                   rng,
		Field:                 field.New(field.DefaultConfig(seed)),
		MaxQuarantinePerCycle: s.MaxQuarantine,
		MaxFusionsPerCycle:    s.MaxFusions,
		ReleaseAfter:          s.ReleaseAfter,
		ArenaEncounters:       s.ArenaEncounters,
		CascadeInterval:       s.CascadeInterval,
		CascadeDepth:          s.CascadeDepth,
		RetireParents:         s.RetireParents,
	}
}

// loadSim opens the stored population as a simulation.
func loadSim(db *persistence.DB) (*engine.Simulation, error) {
	seed, err := resolveSeed(db)
	if err != nil {
		return nil, err
	}
	return db.LoadState(simOptions(newSource(seed), seed))
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/echoworld/internal/api"
	"github.com/talgya/echoworld/internal/engine"
	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/persistence"
)

func init() {
	run := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation loop",
		Long:  "Load the stored population (spawning a fresh one if the store is empty) and advance cycles until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cycles, _ := cmd.Flags().GetUint64("cycles")
			serve, _ := cmd.Flags().GetBool("serve")
			return runWorld(cmd, cycles, serve)
		},
	}
	run.Flags().Uint64("cycles", 0, "Stop after this many cycles (default: simulation.max_cycles)")
	run.Flags().Bool("serve", false, "Also serve the HTTP API")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.API.Port = port
			}
			cycles, _ := cmd.Flags().GetUint64("cycles")
			return runWorld(cmd, cycles, true)
		},
	}
	serve.Flags().IntP("port", "p", 0, "API port (default: api.port)")
	serve.Flags().Uint64("cycles", 0, "Stop after this many cycles (default: simulation.max_cycles)")

	rootCmd.AddCommand(run, serve)
}

func runWorld(cmd *cobra.Command, cycles uint64, serve bool) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sim, fresh, err := loadOrSpawn(db)
	if err != nil {
		return err
	}

	eng := engine.NewEngine()
	eng.Cycle = sim.LastCycle()
	eng.Speed = cfg.Simulation.Speed
	eng.Interval = cfg.Simulation.CycleInterval
	eng.MaxCycles = cfg.Simulation.MaxCycles
	if cycles > 0 {
		eng.MaxCycles = cycles
	}
	eng.AutoSaveInterval = cfg.Simulation.AutoSaveInterval

	eng.OnCycle = func(cycle uint64) {
		sim.RunCycle(cycle)
	}
	eng.OnSave = func(cycle uint64) {
		if err := db.SaveState(sim); err != nil {
			slog.Error("auto-save failed", "cycle", cycle, "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if serve {
		if cfg.API.AdminKey == "" {
			slog.Warn("ECHOWORLD_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		srv := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Port:     cfg.API.Port,
			AdminKey: cfg.API.AdminKey,
		}
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP shutdown failed", "error", err)
			}
		}()
		fmt.Fprintf(out, "API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}

	stats := sim.Stats()
	fmt.Fprintf(out, "Echoworld is alive: %s entities (%d quarantined).\n",
		humanize.Comma(int64(stats.Population)), stats.Quarantined)
	if !fresh {
		fmt.Fprintf(out, "Resuming from cycle %s\n", humanize.Comma(int64(eng.Cycle)))
	}
	fmt.Fprintln(out, "Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	stats = sim.Stats()
	fmt.Fprintf(out, "Simulation stopped at cycle %s. %d blooms, %d fusions, %d rituals. Population saved.\n",
		humanize.Comma(int64(eng.Cycle)), stats.Blooms, stats.Fusions, stats.Rituals)
	return nil
}

// loadOrSpawn restores the stored population, or spawns and saves a new one
// when the store is empty.
func loadOrSpawn(db *persistence.DB) (*engine.Simulation, bool, error) {
	counts, err := db.CountByStatus()
	if err != nil {
		return nil, false, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}

	if total > 0 {
		slog.Info("found saved population, loading...", "entities", total)
		sim, err := loadSim(db)
		return sim, false, err
	}

	seed, err := resolveSeed(db)
	if err != nil {
		return nil, false, err
	}
	opts := simOptions(newSource(seed), seed)

	slog.Info("no saved population, spawning", "count", cfg.Simulation.Population, "seed", seed)
	pop := entity.NewSpawner(opts.Rng).SpawnPopulation(cfg.Simulation.Population)
	sim := engine.NewSimulation(pop, opts)
	if err := db.SaveState(sim); err != nil {
		return nil, false, fmt.Errorf("initial save: %w", err)
	}
	return sim, true, nil
}

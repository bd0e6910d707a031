package main

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/echoworld/internal/api"
	"github.com/talgya/echoworld/internal/config"
	"github.com/talgya/echoworld/internal/engine"
	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/entropy"
	"github.com/talgya/echoworld/internal/persistence"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// base returns the global flags pointing at a fresh store in a temp dir.
func base(t *testing.T) (dir string, flags []string) {
	t.Helper()
	dir = t.TempDir()
	return dir, []string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--db", filepath.Join(dir, "world.db"),
	}
}

func with(flags []string, args ...string) []string {
	return append(append([]string{}, flags...), args...)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	logger.Info("hello", "cycle", 3)
	assert.Contains(t, buf.String(), `"cycle":3`)

	_, err = newLogger(&buf, config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestFormatEmotionSorted(t *testing.T) {
	got := formatEmotion(map[string]float64{"joy": 0.5, "awe": 0.25})
	assert.Equal(t, "awe=0.25 joy=0.50", got)
}

func TestSpawnListShowExportImport(t *testing.T) {
	dir, flags := base(t)

	out, err := execute(t, with(flags, "spawn", "mystic", "--count", "2")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "spawned "), l)
		assert.True(t, strings.HasSuffix(l, "(mystic)"), l)
	}
	id := strings.Fields(lines[0])[1]

	out, err = execute(t, with(flags, "list", "--status", "active")...)
	require.NoError(t, err)
	assert.Contains(t, out, "ARCHETYPE")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "2 entities")

	out, err = execute(t, with(flags, "show", id, "--json=false")...)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "status:   active")

	exportPath := filepath.Join(dir, "export.json")
	out, err = execute(t, with(flags, "export", exportPath, "--profile", "summary")...)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 2 entities")

	f, err := os.Open(exportPath)
	require.NoError(t, err)
	snap, err := persistence.ReadSnapshot(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, entity.ProfileSummary, snap.Profile)
	require.Len(t, snap.Entities, 2)
	assert.Nil(t, snap.Entities[0].Crystal)

	otherFlags := []string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--db", filepath.Join(dir, "other.db"),
	}
	out, err = execute(t, with(otherFlags, "import", exportPath)...)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 entities")

	out, err = execute(t, with(otherFlags, "list", "--status", "")...)
	require.NoError(t, err)
	assert.Contains(t, out, id)
}

func TestSpawnUnknownArchetype(t *testing.T) {
	_, flags := base(t)
	_, err := execute(t, with(flags, "spawn", "dragon", "--count", "1")...)
	assert.ErrorIs(t, err, entity.ErrUnknownArchetype)
}

func TestShowMissing(t *testing.T) {
	_, flags := base(t)
	_, err := execute(t, with(flags, "show", "nope", "--json=false")...)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestHeal(t *testing.T) {
	_, flags := base(t)
	out, err := execute(t, with(flags, "spawn", "warrior", "--count", "1")...)
	require.NoError(t, err)
	id := strings.Fields(out)[1]

	_, err = execute(t, with(flags, "heal", id, "banish")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ritual")

	out, err = execute(t, with(flags, "heal", id, "release")...)
	require.NoError(t, err)
	assert.Contains(t, out, "had no effect")
}

func TestRunBoundedCycles(t *testing.T) {
	t.Setenv("ECHOWORLD_CYCLE_INTERVAL", "5ms")
	t.Setenv("ECHOWORLD_POPULATION", "6")
	_, flags := base(t)

	out, err := execute(t, with(flags, "run", "--cycles", "3", "--serve=false")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Echoworld is alive: 6 entities")
	assert.Contains(t, out, "Simulation stopped at cycle 3")

	// A second run resumes from the saved cycle.
	out, err = execute(t, with(flags, "run", "--cycles", "2", "--serve=false")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Resuming from cycle 3")
	assert.Contains(t, out, "Simulation stopped at cycle 5")
}

func TestTendOnce(t *testing.T) {
	e := entity.New("Vesper", entity.ArchMystic, "")
	e.SetDrift(0.9)
	require.True(t, e.Quarantine(engine.ReasonHollow))
	sim := engine.NewSimulation([]*entity.Entity{e}, engine.Options{Rng: entropy.NewSeeded(5)})

	ts := httptest.NewServer((&api.Server{Sim: sim, AdminKey: "k"}).Handler())
	defer ts.Close()

	dir, flags := base(t)
	t.Setenv("ECHOWORLD_ADMIN_KEY", "k")
	t.Setenv("ECHOWORLD_WARDEN_MEMORY", filepath.Join(dir, "warden.json"))

	out, err := execute(t, with(flags, "tend", "--api", ts.URL, "--once")...)
	require.NoError(t, err)
	assert.Contains(t, out, "CRITICAL, 1/1 rituals performed")
	assert.Equal(t, entity.StatusReintegrated, e.Status())
	assert.FileExists(t, filepath.Join(dir, "warden.json"))
}

func TestTendRequiresAdminKey(t *testing.T) {
	_, flags := base(t)
	t.Setenv("ECHOWORLD_ADMIN_KEY", "")
	_, err := execute(t, with(flags, "tend", "--api", "http://127.0.0.1:1", "--once")...)
	assert.ErrorContains(t, err, "ECHOWORLD_ADMIN_KEY")
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/echoworld/internal/engine"
	"github.com/talgya/echoworld/internal/entity"
	"github.com/talgya/echoworld/internal/persistence"
)

func init() {
	spawn := &cobra.Command{
		Use:   "spawn [archetype]",
		Short: "Spawn new entities into the store",
		Long:  "Spawn entities of the given archetype, or of random archetypes when none is named.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSpawn,
	}
	spawn.Flags().IntP("count", "n", 1, "Number of entities to spawn")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored entities",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	list.Flags().StringP("status", "s", "", "Filter by status: active, quarantined or reintegrated")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entity",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	show.Flags().Bool("json", false, "Print the full record as JSON")

	heal := &cobra.Command{
		Use:   "heal <id> <ritual>",
		Short: "Perform a healing ritual",
		Long:  "Perform healing_echo, reweave or release on one stored entity and save the result.",
		Args:  cobra.ExactArgs(2),
		RunE:  runHeal,
	}

	rootCmd.AddCommand(spawn, list, show, heal)
}

func runSpawn(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	if count < 1 {
		return fmt.Errorf("count must be >= 1, got %d", count)
	}
	archetype := ""
	if len(args) == 1 {
		archetype = args[0]
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	seed, err := resolveSeed(db)
	if err != nil {
		return err
	}
	spawner := entity.NewSpawner(newSource(seed))

	out := cmd.OutOrStdout()
	for i := 0; i < count; i++ {
		e, err := spawner.Spawn(archetype)
		if err != nil {
			return err
		}
		if err := db.UpsertEntity(e.ToRecord(entity.ProfileFull)); err != nil {
			return fmt.Errorf("save entity: %w", err)
		}
		fmt.Fprintf(out, "spawned %s %s (%s)\n", e.ID(), e.Name, e.Archetype)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	if status != "" && !entity.Status(status).Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := db.LoadRecords(entity.Status(status))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tARCHETYPE\tSTATUS\tDRIFT\tTIER\tXP\tCREATED")
	for _, rec := range recs {
		e := entity.FromRecord(rec)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.3f\t%s\t%s\t%s\n",
			e.ID(), e.Name, e.Archetype, e.Status(), e.Drift(), e.Tier(),
			humanize.Comma(int64(e.Metadata.Experience)),
			humanize.Time(e.Metadata.CreatedAt),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s entities\n", humanize.Comma(int64(len(recs))))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.GetRecord(args[0])
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("entity %s: %w", args[0], err)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		b, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	printEntity(out, entity.FromRecord(rec))
	return nil
}

func printEntity(w io.Writer, e *entity.Entity) {
	fmt.Fprintf(w, "%s (%s)  %s\n", e.Name, e.Archetype, e.ID())

	status := string(e.Status())
	if e.Metadata.QuarantineReason != "" {
		status += fmt.Sprintf(" (%s, %d cycles)", e.Metadata.QuarantineReason, e.Metadata.QuarantineCycles)
	}
	fmt.Fprintf(w, "  status:   %s\n", status)
	fmt.Fprintf(w, "  drift:    %.3f  ess %.2f  sd %.0f\n", e.Drift(), e.Stats.ESS, e.Stats.SD)
	fmt.Fprintf(w, "  tier:     %s (%s XP)\n", e.Tier(), humanize.Comma(int64(e.Metadata.Experience)))
	fmt.Fprintf(w, "  created:  %s\n", humanize.Time(e.Metadata.CreatedAt))
	if e.Metadata.MergedInto != "" {
		fmt.Fprintf(w, "  merged:   into %s\n", e.Metadata.MergedInto)
	}
	if len(e.Metadata.FusedFrom) > 0 {
		fmt.Fprintf(w, "  fused:    %s (shared %s)\n",
			strings.Join(e.Metadata.FusedFrom, " + "), strings.Join(e.Metadata.SharedMotifs, ", "))
	}
	fmt.Fprintf(w, "  memory:   %s\n", e.CurrentMemory)
	fmt.Fprintf(w, "  motifs:   %d  glyphs: %s\n", len(e.Crystal.Texts()), strings.Join(e.Glyphs(), " "))
	fmt.Fprintf(w, "  dream:    %s (%d cycles)\n", e.Dream.Layer, e.Dream.CyclesIn)
	fmt.Fprintf(w, "  emotion:  %s\n", formatEmotion(e.Emotion.Summary()))

	for _, q := range e.Metadata.ActiveQuests {
		fmt.Fprintf(w, "  quest:    %s %.0f%%\n", q.Type, q.Progress*100)
	}
	items := e.ListInventory()
	fmt.Fprintf(w, "  items:    %d\n", len(items))
	for _, it := range items {
		fmt.Fprintf(w, "    - %s [%s] from %s, %s\n", it.Name, it.Rarity, it.Source, humanize.Time(it.Acquired))
	}
}

func formatEmotion(levels map[string]float64) string {
	channels := make([]string, 0, len(levels))
	for ch := range levels {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	parts := make([]string, len(channels))
	for i, ch := range channels {
		parts[i] = fmt.Sprintf("%s=%.2f", ch, levels[ch])
	}
	return strings.Join(parts, " ")
}

func runHeal(cmd *cobra.Command, args []string) error {
	id, ritual := args[0], args[1]

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sim, err := loadSim(db)
	if err != nil {
		return err
	}

	performed, err := sim.PerformRitual(id, ritual)
	if errors.Is(err, engine.ErrUnknownRitual) {
		return fmt.Errorf("%w (want %s, %s or %s)", err,
			engine.RitualHealingEcho, engine.RitualReweave, engine.RitualRelease)
	}
	if err != nil {
		return err
	}

	rec, err := sim.Record(id, entity.ProfileSummary)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !performed {
		fmt.Fprintf(out, "%s had no effect on %s (status %s, drift %.3f)\n", ritual, rec.Name, rec.Status, rec.DriftLevel)
		return nil
	}

	if err := db.SaveState(sim); err != nil {
		return fmt.Errorf("save after %s: %w", ritual, err)
	}
	fmt.Fprintf(out, "%s performed on %s: status %s, drift %.3f\n", ritual, rec.Name, rec.Status, rec.DriftLevel)
	return nil
}

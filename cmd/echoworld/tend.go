package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/echoworld/internal/warden"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tend",
		Short: "Heal quarantined entities through a running API",
		Long:  "Observe a running echoworld API, pick healing rituals by rule and perform them with the admin key.",
		Args:  cobra.NoArgs,
		RunE:  runTend,
	}
	cmd.Flags().String("api", "", "API base URL (default: warden.api_url)")
	cmd.Flags().Bool("once", false, "Run a single cycle and exit")

	rootCmd.AddCommand(cmd)
}

func runTend(cmd *cobra.Command, args []string) error {
	wc := cfg.Warden
	if u, _ := cmd.Flags().GetString("api"); u != "" {
		wc.APIURL = u
	}
	once, _ := cmd.Flags().GetBool("once")
	if cfg.API.AdminKey == "" {
		return fmt.Errorf("ECHOWORLD_ADMIN_KEY is required to tend")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := warden.New(wc.APIURL, cfg.API.AdminKey, wc.MemoryPath, wc.MaxActions)
	if err := w.WaitForAPI(ctx, 5*time.Minute); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if once {
		rec, err := w.Tend(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "cycle %d: %s, %d/%d rituals performed\n", rec.Cycle, rec.Level, rec.Performed, len(rec.Planned))
		return nil
	}

	fmt.Fprintf(out, "Tending %s every %s... (Ctrl+C to stop)\n", wc.APIURL, wc.Interval)
	w.Run(ctx, wc.Interval)
	fmt.Fprintln(out, "Warden stopped.")
	return nil
}

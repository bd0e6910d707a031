package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/echoworld/internal/entity"
)

func init() {
	export := &cobra.Command{
		Use:   "export <file>",
		Short: "Export the stored population as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	export.Flags().StringP("profile", "p", string(entity.ProfileFull), "Record profile: summary or full")

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Import entities from a JSON export",
		Long:  "Import a snapshot (or a bare array of records). Entities with an existing id are replaced.",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	rootCmd.AddCommand(export, imp)
}

func runExport(cmd *cobra.Command, args []string) error {
	profile, _ := cmd.Flags().GetString("profile")
	p := entity.Profile(profile)
	if p != entity.ProfileSummary && p != entity.ProfileFull {
		return fmt.Errorf("unknown profile %q", profile)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.ExportFile(args[0], p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %s entities to %s\n", humanize.Comma(int64(n)), args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.ImportFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %s entities from %s\n", humanize.Comma(int64(n)), args[0])
	return nil
}

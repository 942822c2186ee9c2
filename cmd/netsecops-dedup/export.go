// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaybodecode/netsecops-dedup/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the resolution trail for downstream publication",
	Long: `Export writes the resolution trail to resolutions.yaml or
resolutions.json in the index directory so the publication assembler can apply
UPDATE and SKIP decisions without touching the database.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("date", "", "restrict to resolutions for one publication date (YYYY-MM-DD)")
	exportCmd.Flags().String("format", "yaml", "output format: yaml or json")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	if date != "" {
		if err := checkDate(date); err != nil {
			return err
		}
	}
	format, _ := cmd.Flags().GetString("format")

	cfg := dedupConfig(cmd)

	st, err := store.Open(cfg.IndexDir)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	switch format {
	case "yaml":
		err = st.ExportYAML(ctx, date)
	case "json":
		err = st.ExportJSON(ctx, date)
	default:
		return fmt.Errorf("unknown format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}

	fmt.Printf("exported resolutions (%s) to %s\n", format, cfg.IndexDir)
	return nil
}

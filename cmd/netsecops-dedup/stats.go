// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jaybodecode/netsecops-dedup/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the resolution trail",
	Long: `Stats reports how many articles resolved to each decision, the average
similarity score per decision, and how many resolutions were automatic versus
AI-assisted. Useful for tuning the borderline and update thresholds.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().String("date", "", "restrict to resolutions for one publication date (YYYY-MM-DD)")
	statsCmd.Flags().Bool("json", false, "output stats as JSON")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	if date != "" {
		if err := checkDate(date); err != nil {
			return err
		}
	}

	cfg := dedupConfig(cmd)

	st, err := store.Open(cfg.IndexDir)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.ResolutionStats(context.Background(), date)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	printStats(stats, date)
	return nil
}

func printStats(stats store.Stats, date string) {
	if date != "" {
		fmt.Printf("Resolutions for %s: %d\n", date, stats.Total)
	} else {
		fmt.Printf("Resolutions: %d\n", stats.Total)
	}
	if stats.Total == 0 {
		return
	}

	fmt.Println("\nBy decision:")
	for _, decision := range sortedKeys(stats.ByDecision) {
		ds := stats.ByDecision[decision]
		fmt.Printf("  %-8s %5d  avg similarity %.4f\n", decision, ds.Count, ds.AvgSimilarity)
	}

	fmt.Println("\nBy method:")
	for _, method := range sortedKeys(stats.ByMethod) {
		fmt.Printf("  %-12s %5d\n", method, stats.ByMethod[method])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

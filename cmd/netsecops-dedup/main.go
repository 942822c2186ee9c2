// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the netsecops-dedup CLI: the duplicate
// detection and resolution pipeline for generated security-news articles.
// Subcommands cover indexing structured signals, checking candidates against
// prior coverage, resolving borderline cases through the comparison service,
// and exporting the resolution trail for publication assembly.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jaybodecode/netsecops-dedup/internal/logging"
	"github.com/jaybodecode/netsecops-dedup/internal/secrets"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the netsecops-dedup CLI.
var rootCmd = &cobra.Command{
	Use:   "netsecops-dedup",
	Short: "Duplicate detection and resolution for generated security news",
	Long: `netsecops-dedup decides, for each candidate article the upstream generator
produces, whether it covers a genuinely new incident, updates a previously
published story, or restates one and should be suppressed.

The pipeline runs in date-windowed batches: index extracts CVE and entity
signals into a local SQLite index, check scores each article against prior
coverage in the lookback window, resolve arbitrates borderline scores through
a natural-language comparison service, and export hands the decision trail to
the publication assembler.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./netsecops-dedup.yaml or ~/.config/netsecops-dedup/config.yaml)")
	rootCmd.PersistentFlags().String("articles-dir", "", "directory of upstream article JSON files (default: articles)")
	rootCmd.PersistentFlags().String("index-dir", "", "directory holding the dedup index database (default: index)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable log output")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("netsecops-dedup")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "netsecops-dedup"))
		}
	}

	viper.SetEnvPrefix("NETSECOPS_DEDUP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildLogger constructs the process logger from the persistent flags.
func buildLogger(cmd *cobra.Command) (zerolog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	pretty, _ := cmd.Flags().GetBool("pretty")
	return logging.New(level, pretty)
}

// dedupConfig assembles the run configuration: defaults, then the config
// file, then flags. Callers validate before any store I/O.
func dedupConfig(cmd *cobra.Command) types.DedupConfig {
	cfg := types.DefaultDedupConfig()

	for key, target := range map[string]*float64{
		"similarity.weights.cve":           &cfg.Similarity.Weights.CVE,
		"similarity.weights.text":          &cfg.Similarity.Weights.Text,
		"similarity.weights.threat_actor":  &cfg.Similarity.Weights.ThreatActor,
		"similarity.weights.malware":       &cfg.Similarity.Weights.Malware,
		"similarity.weights.product":       &cfg.Similarity.Weights.Product,
		"similarity.weights.company":       &cfg.Similarity.Weights.Company,
		"similarity.thresholds.borderline": &cfg.Similarity.Thresholds.Borderline,
		"similarity.thresholds.update":     &cfg.Similarity.Thresholds.Update,
	} {
		if viper.IsSet(key) {
			*target = viper.GetFloat64(key)
		}
	}
	if viper.IsSet("lookback_days") {
		cfg.LookbackDays = viper.GetInt("lookback_days")
	}
	if viper.IsSet("articles_dir") {
		cfg.ArticlesDir = viper.GetString("articles_dir")
	}
	if viper.IsSet("index_dir") {
		cfg.IndexDir = viper.GetString("index_dir")
	}

	if dir, _ := cmd.Flags().GetString("articles-dir"); dir != "" {
		cfg.ArticlesDir = dir
	}
	if dir, _ := cmd.Flags().GetString("index-dir"); dir != "" {
		cfg.IndexDir = dir
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Similarity.Thresholds.Update, _ = cmd.Flags().GetFloat64("threshold")
	}
	if cmd.Flags().Changed("lookback-days") {
		cfg.LookbackDays, _ = cmd.Flags().GetInt("lookback-days")
	}

	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

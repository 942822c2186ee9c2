// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jaybodecode/netsecops-dedup/internal/feed"
	"github.com/jaybodecode/netsecops-dedup/internal/resolve"
	"github.com/jaybodecode/netsecops-dedup/internal/store"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

const defaultModel = "claude-sonnet-4-5-20250929"

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Arbitrate borderline articles through the comparison service",
	Long: `Resolve runs the full dedup path including natural-language
arbitration: borderline similarity scores are submitted to the comparison
service one pair at a time, in candidate order, and the verdict (NEW, UPDATE,
or SKIP) is persisted with its reasoning. A failed service call leaves the
article unresolved for the run so it can be retried.

Requires an Anthropic API key in .secrets/anthropic-api-key or
ANTHROPIC_API_KEY.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("article", "", "resolve one article by id")
	resolveCmd.Flags().String("date", "", "resolve articles published on one date (YYYY-MM-DD)")
	resolveCmd.Flags().Float64("threshold", 0.70, "similarity score at which an article is automatically an UPDATE")
	resolveCmd.Flags().Int("lookback-days", 30, "trailing window searched for duplicate candidates")
	resolveCmd.Flags().Bool("force", false, "delete prior resolutions for the target and reprocess")
	resolveCmd.Flags().String("model", "", "comparison-service model identifier")
	resolveCmd.Flags().Int("max-retries", 3, "retry attempts per comparison-service call")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	sel := selectorFromFlags(cmd)
	if err := sel.validate(); err != nil {
		return err
	}
	if sel.all || sel.from != "" {
		return fmt.Errorf("resolve targets one --article or one --date")
	}
	force, _ := cmd.Flags().GetBool("force")

	cfg := dedupConfig(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	aiCfg, err := aiConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cmd)
	if err != nil {
		return err
	}

	articles, err := loadArticles(feed.New(cfg.ArticlesDir, logger), sel)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Println("No articles matched.")
		return nil
	}

	st, err := store.Open(cfg.IndexDir)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	if force {
		if sel.article != "" {
			deleted, err := st.DeleteResolutionsByArticle(ctx, sel.article)
			if err != nil {
				return err
			}
			if deleted > 0 {
				fmt.Printf("cleared %d resolution(s) for %s\n", deleted, sel.article)
			}
		} else {
			if err := clearResolutions(ctx, st, articles); err != nil {
				return err
			}
		}
	}

	arbiter, err := resolve.NewClaudeArbiter(aiCfg)
	if err != nil {
		return err
	}

	ids := ensureIndexed(ctx, st, articles, logger)

	engine := resolve.NewEngine(st, cfg, arbiter, aiCfg.MaxRetries, logger)
	summary, err := engine.ProcessBatch(ctx, ids, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d article(s) failed resolution", summary.Failed)
	}
	return nil
}

// aiConfig builds the comparison-service settings from flags, config, and
// the secrets directory.
func aiConfig(cmd *cobra.Command) (types.AIConfig, error) {
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("ai.model")
	}
	if model == "" {
		model = defaultModel
	}

	apiKey := secretDefault("anthropic-api-key", viper.GetString("ai.api_key"))
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return types.AIConfig{}, fmt.Errorf("no Anthropic API key: set .secrets/anthropic-api-key or ANTHROPIC_API_KEY")
	}

	maxRetries, _ := cmd.Flags().GetInt("max-retries")

	return types.AIConfig{
		Model:      model,
		APIKey:     apiKey,
		MaxRetries: maxRetries,
	}, nil
}

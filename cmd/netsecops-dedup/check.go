// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jaybodecode/netsecops-dedup/internal/feed"
	"github.com/jaybodecode/netsecops-dedup/internal/index"
	"github.com/jaybodecode/netsecops-dedup/internal/resolve"
	"github.com/jaybodecode/netsecops-dedup/internal/store"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Score articles against prior coverage and resolve the clear cases",
	Long: `Check runs the automatic dedup path: each target article is compared
against indexed articles from the lookback window that share a CVE or entity.
Scores below the borderline threshold resolve NEW, scores at or above the
update threshold resolve UPDATE against the best match, and both are
persisted. Borderline scores are reported pending for the resolve subcommand;
no comparison-service calls are made.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("article", "", "check one article by id")
	checkCmd.Flags().String("date", "", "check articles published on one date (YYYY-MM-DD)")
	checkCmd.Flags().String("from", "", "start of a date range (YYYY-MM-DD)")
	checkCmd.Flags().String("to", "", "end of a date range (YYYY-MM-DD)")
	checkCmd.Flags().Bool("all", false, "check every article in the articles directory")
	checkCmd.Flags().Float64("threshold", 0.70, "similarity score at which an article is automatically an UPDATE")
	checkCmd.Flags().Int("lookback-days", 30, "trailing window searched for duplicate candidates")
	checkCmd.Flags().Bool("force", false, "delete the targets' dates' resolutions and recompute")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	sel := selectorFromFlags(cmd)
	if err := sel.validate(); err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	cfg := dedupConfig(cmd)
	if err := cfg.Validate(); err != nil {
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
		if err := clearResolutions(ctx, st, articles); err != nil {
			return err
		}
	}

	// Targets must be indexed before filtering; indexing is an idempotent
	// no-op for articles already in the index.
	ids := ensureIndexed(ctx, st, articles, logger)

	engine := resolve.NewEngine(st, cfg, nil, 0, logger)
	summary, err := engine.ProcessBatch(ctx, ids, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d article(s) failed checking", summary.Failed)
	}
	return nil
}

// ensureIndexed indexes any targets missing from the index and returns the
// ids of the articles that can be processed, in input order. An article that
// fails indexing is dropped with a warning; the batch continues.
func ensureIndexed(ctx context.Context, st *store.Store, articles []types.Article, logger zerolog.Logger) []string {
	indexer := index.New(st, logger)
	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		if _, err := indexer.Index(ctx, a, false); err != nil {
			logger.Warn().Str("article", a.ID).Err(err).Msg("skipping unindexable article")
			continue
		}
		ids = append(ids, a.ID)
	}
	return ids
}

// clearResolutions deletes resolutions for every distinct date among the
// targets, one transaction per date.
func clearResolutions(ctx context.Context, st *store.Store, articles []types.Article) error {
	seen := make(map[string]struct{})
	for _, a := range articles {
		date := a.Date()
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		deleted, err := st.DeleteResolutionsByDate(ctx, date)
		if err != nil {
			return err
		}
		if deleted > 0 {
			fmt.Printf("cleared %d resolution(s) for %s\n", deleted, date)
		}
	}
	return nil
}

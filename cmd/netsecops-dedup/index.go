// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaybodecode/netsecops-dedup/internal/feed"
	"github.com/jaybodecode/netsecops-dedup/internal/index"
	"github.com/jaybodecode/netsecops-dedup/internal/store"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Extract CVE and entity signals from articles into the index",
	Long: `Index reads upstream article JSON files and writes their structured
signals (CVE identifiers, named entities, text fields) into the local SQLite
index the candidate filter and scorer query. Already-indexed articles are
skipped unless --force deletes and re-inserts their rows.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().String("date", "", "index articles published on one date (YYYY-MM-DD)")
	indexCmd.Flags().String("from", "", "start of a date range (YYYY-MM-DD)")
	indexCmd.Flags().String("to", "", "end of a date range (YYYY-MM-DD)")
	indexCmd.Flags().Bool("all", false, "index every article in the articles directory")
	indexCmd.Flags().Bool("force", false, "delete and re-insert rows for already-indexed articles")

	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	sel := selectorFromFlags(cmd)
	if err := sel.validate(); err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	cfg := dedupConfig(cmd)

	logger, err := buildLogger(cmd)
	if err != nil {
		return err
	}

	articles, err := loadArticles(feed.New(cfg.ArticlesDir, logger), sel)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.IndexDir)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := index.New(st, logger).IndexBatch(context.Background(), articles, force, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d article(s) failed indexing", summary.Failed)
	}
	return nil
}

// loadArticles resolves a validated selector against the articles directory.
func loadArticles(loader *feed.Loader, sel selector) ([]types.Article, error) {
	switch {
	case sel.article != "":
		a, err := loader.LoadOne(sel.article)
		if err != nil {
			return nil, err
		}
		return []types.Article{a}, nil
	case sel.date != "":
		return loader.LoadByDate(sel.date)
	case sel.from != "":
		return loader.LoadRange(sel.from, sel.to)
	default:
		return loader.LoadAll()
	}
}

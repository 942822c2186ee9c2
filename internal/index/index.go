// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index writes article signal records into the store: one meta row
// plus the CVE and entity rows the candidate filter and scorer query.
package index

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jaybodecode/netsecops-dedup/internal/store"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// Status reports what Index did with one article.
type Status string

const (
	StatusIndexed   Status = "indexed"
	StatusSkipped   Status = "skipped"
	StatusReindexed Status = "reindexed"
)

// Indexer extracts structured signals from articles into the store.
type Indexer struct {
	store  *store.Store
	logger zerolog.Logger
}

// New returns an Indexer writing through the given store.
func New(s *store.Store, logger zerolog.Logger) *Indexer {
	return &Indexer{store: s, logger: logger}
}

// Index writes one article's index record. An already-indexed article is a
// deliberate no-op reported as skipped, never a failure. With force set,
// prior rows are deleted and fresh ones inserted in a single transaction.
// Entities outside the indexable allow-list are dropped; "vendor" entities
// are stored as "company".
func (ix *Indexer) Index(ctx context.Context, a types.Article, force bool) (Status, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}

	indexed, err := ix.store.IsIndexed(ctx, a.ID)
	if err != nil {
		return "", err
	}
	if indexed && !force {
		return StatusSkipped, nil
	}

	entities := indexableEntities(a.Entities)

	if err := ix.store.InsertArticle(ctx, a, entities, indexed); err != nil {
		return "", err
	}

	dropped := len(a.Entities) - len(entities)
	ix.logger.Debug().
		Str("article", a.ID).
		Int("cves", len(a.CVEs)).
		Int("entities", len(entities)).
		Int("dropped_entities", dropped).
		Bool("force", force).
		Msg("indexed article")

	if indexed {
		return StatusReindexed, nil
	}
	return StatusIndexed, nil
}

// indexableEntities normalizes entity types and names and drops everything
// outside the allow-list. Names are lower-cased so "LockBit" and "lockbit"
// land on the same key in both the prefilter and the Jaccard sets. Dropping
// is policy, not an error: upstream extraction emits high-noise categories
// (person, technology, ...) that never identify a story.
func indexableEntities(entities []types.Entity) []types.Entity {
	var kept []types.Entity
	for _, e := range entities {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" {
			continue
		}
		normalized, ok := types.NormalizeEntityType(string(e.Type))
		if !ok {
			continue
		}
		kept = append(kept, types.Entity{Name: name, Type: normalized})
	}
	return kept
}

// Summary holds counts from a batch indexing run.
type Summary struct {
	Indexed   int
	Reindexed int
	Skipped   int
	Failed    int
}

// Total returns the number of articles processed.
func (s Summary) Total() int {
	return s.Indexed + s.Reindexed + s.Skipped + s.Failed
}

// HasFailures reports whether any articles failed indexing.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// IndexBatch indexes articles in order, reporting one status line per article.
// A bad article is skipped with a warning; the batch continues.
func (ix *Indexer) IndexBatch(ctx context.Context, articles []types.Article, force bool, w io.Writer) (Summary, error) {
	var summary Summary

	for _, a := range articles {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		status, err := ix.Index(ctx, a, force)
		if err != nil {
			fmt.Fprintf(w, "failed    %s: %v\n", a.ID, err)
			ix.logger.Warn().Str("article", a.ID).Err(err).Msg("indexing failed")
			summary.Failed++
			continue
		}

		fmt.Fprintf(w, "%-9s %s\n", status, a.ID)
		switch status {
		case StatusIndexed:
			summary.Indexed++
		case StatusReindexed:
			summary.Reindexed++
		case StatusSkipped:
			summary.Skipped++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, reindexed: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Reindexed, summary.Skipped, summary.Failed)
	return summary, nil
}

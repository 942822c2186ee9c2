// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve decides whether each candidate article is a new incident,
// an update to an earlier story, or a redundant restatement. Cheap indexed
// prefiltering narrows the lookback window to plausible matches, weighted
// similarity classifies them, and borderline cases go to a natural-language
// comparison service.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jaybodecode/netsecops-dedup/internal/similarity"
	"github.com/jaybodecode/netsecops-dedup/internal/store"
)

// Candidate is one prior article that plausibly overlaps the target.
type Candidate struct {
	ID      string
	Signals *similarity.Signals
}

// Filter finds candidate duplicates with fast indexed lookups before any
// scoring runs.
type Filter struct {
	store        *store.Store
	lookbackDays int
}

// NewFilter returns a Filter over the given store and lookback window.
func NewFilter(s *store.Store, lookbackDays int) *Filter {
	return &Filter{store: s, lookbackDays: lookbackDays}
}

// Candidates returns the indexed articles within the lookback window that
// share at least one CVE id or entity name with the target, with their
// signals loaded, ordered by publish date then id. An empty result means the
// target can be classified NEW without scoring.
func (f *Filter) Candidates(ctx context.Context, target *similarity.Signals) ([]Candidate, error) {
	targetDate, err := parseDate(target.Date)
	if err != nil {
		return nil, fmt.Errorf("parsing target date %q: %w", target.Date, err)
	}
	fromDate := targetDate.AddDate(0, 0, -f.lookbackDays).Format("2006-01-02")

	ids, err := f.store.CandidateIDs(ctx, target.ArticleID, fromDate, target.Date,
		setToSlice(target.CVEs), entityNames(target))
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		sig, err := f.store.Signals(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading candidate %s: %w", id, err)
		}
		candidates = append(candidates, Candidate{ID: id, Signals: sig})
	}
	return candidates, nil
}

// entityNames collects every indexed entity name of the target, across types.
func entityNames(sig *similarity.Signals) []string {
	names := make(map[string]struct{})
	for _, set := range []map[string]struct{}{
		sig.ThreatActors, sig.Malware, sig.Products, sig.Companies, sig.Agencies,
	} {
		for name := range set {
			names[name] = struct{}{}
		}
	}
	return setToSlice(names)
}

// parseDate parses the date-only projection used throughout the index.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jaybodecode/netsecops-dedup/internal/similarity"
	"github.com/jaybodecode/netsecops-dedup/internal/store"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// Outcome reports what the engine did with one article.
type Outcome string

const (
	// OutcomeNew, OutcomeUpdate, OutcomeSkip mean a resolution was persisted.
	OutcomeNew    Outcome = "new"
	OutcomeUpdate Outcome = "update"
	OutcomeSkip   Outcome = "skip"

	// OutcomePending means one or more candidates scored borderline and no
	// arbitration happened (no arbiter configured, or the service call
	// failed); the article can be retried.
	OutcomePending Outcome = "pending"

	// OutcomeResolved means the article already had a resolution.
	OutcomeResolved Outcome = "resolved"
)

// ScoredCandidate pairs a candidate with its similarity breakdown.
type ScoredCandidate struct {
	Candidate
	Breakdown similarity.Breakdown
	Class     similarity.Class
}

// Result is the outcome of processing one article.
type Result struct {
	ArticleID  string
	Outcome    Outcome
	Resolution *types.Resolution

	// Borderline lists the candidates needing arbitration when the outcome
	// is pending.
	Borderline []ScoredCandidate
}

// Engine runs candidate filtering, scoring, classification, and resolution
// for target articles, persisting every decision. With a nil arbiter only the
// automatic paths run and borderline articles are reported pending.
type Engine struct {
	store      *store.Store
	filter     *Filter
	cfg        types.SimilarityConfig
	arbiter    Arbiter
	maxRetries int
	logger     zerolog.Logger
}

// NewEngine builds an engine. The arbiter may be nil for check-only runs.
func NewEngine(s *store.Store, cfg types.DedupConfig, arbiter Arbiter, maxRetries int, logger zerolog.Logger) *Engine {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Engine{
		store:      s,
		filter:     NewFilter(s, cfg.LookbackDays),
		cfg:        cfg.Similarity,
		arbiter:    arbiter,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Process resolves one already-indexed article. Automatic paths never touch
// the comparison service: no candidates (or all scoring NEW) resolves NEW,
// and any candidate at or above the update threshold resolves UPDATE against
// the best-scoring one. Borderline candidates are arbitrated sequentially in
// discovery order.
func (e *Engine) Process(ctx context.Context, articleID string) (Result, error) {
	resolved, err := e.store.HasResolution(ctx, articleID)
	if err != nil {
		return Result{}, err
	}
	if resolved {
		return Result{ArticleID: articleID, Outcome: OutcomeResolved}, nil
	}

	target, err := e.store.Signals(ctx, articleID)
	if err != nil {
		return Result{}, err
	}

	candidates, err := e.filter.Candidates(ctx, target)
	if err != nil {
		return Result{}, err
	}

	// Prefilter found nothing plausible: NEW with similarity 0, no scoring.
	if len(candidates) == 0 {
		return e.persist(ctx, Result{ArticleID: articleID, Outcome: OutcomeNew},
			newResolution(target, types.ConfidenceHigh, 0,
				"no prior article in the lookback window shares a CVE or entity", types.MethodAutomatic))
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	var bestUpdate *ScoredCandidate
	var borderline []ScoredCandidate
	maxTotal := 0.0

	for _, cand := range candidates {
		b := similarity.Score(target, cand.Signals, e.cfg.Weights)
		sc := ScoredCandidate{
			Candidate: cand,
			Breakdown: b,
			Class:     similarity.Classify(b.Total, e.cfg.Thresholds),
		}
		scored = append(scored, sc)
		if b.Total > maxTotal {
			maxTotal = b.Total
		}

		switch sc.Class {
		case similarity.ClassUpdate:
			if bestUpdate == nil || sc.Breakdown.Total > bestUpdate.Breakdown.Total {
				best := sc
				bestUpdate = &best
			}
		case similarity.ClassBorderline:
			borderline = append(borderline, sc)
		}

		e.logger.Debug().
			Str("article", articleID).
			Str("candidate", cand.ID).
			Float64("score", b.Total).
			Str("class", string(sc.Class)).
			Msg("scored candidate")
	}

	// The score alone is decisive: merge into the earlier article.
	if bestUpdate != nil {
		reasoning := fmt.Sprintf("similarity %.4f against %s meets the update threshold %.2f",
			bestUpdate.Breakdown.Total, bestUpdate.ID, e.cfg.Thresholds.Update)
		return e.persist(ctx, Result{ArticleID: articleID, Outcome: OutcomeUpdate},
			updateResolution(target, bestUpdate, types.ConfidenceHigh, reasoning, types.MethodAutomatic))
	}

	// Every candidate scored below the borderline cutoff.
	if len(borderline) == 0 {
		reasoning := fmt.Sprintf("best similarity %.4f across %d candidate(s) is below the borderline threshold %.2f",
			maxTotal, len(scored), e.cfg.Thresholds.Borderline)
		return e.persist(ctx, Result{ArticleID: articleID, Outcome: OutcomeNew},
			newResolution(target, types.ConfidenceHigh, maxTotal, reasoning, types.MethodAutomatic))
	}

	if e.arbiter == nil {
		return Result{ArticleID: articleID, Outcome: OutcomePending, Borderline: borderline}, nil
	}

	return e.arbitrate(ctx, target, borderline)
}

// arbitrate consults the comparison service for each borderline candidate in
// order. UPDATE and SKIP verdicts finalize immediately; NEW means "distinct
// from this candidate" and arbitration moves to the next one. A failed call
// leaves the article pending for the run.
func (e *Engine) arbitrate(ctx context.Context, target *similarity.Signals, borderline []ScoredCandidate) (Result, error) {
	articleID := target.ArticleID
	lowest := types.ConfidenceHigh
	var reasonings []string

	for _, sc := range borderline {
		verdict, err := compareWithRetry(ctx, e.arbiter, target, sc.Signals, e.maxRetries)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			e.logger.Error().
				Str("article", articleID).
				Str("candidate", sc.ID).
				Err(err).
				Msg("comparison service call failed; leaving article unresolved")
			return Result{ArticleID: articleID, Outcome: OutcomePending, Borderline: borderline}, nil
		}

		e.logger.Info().
			Str("article", articleID).
			Str("candidate", sc.ID).
			Str("decision", string(verdict.Decision)).
			Str("confidence", string(verdict.Confidence)).
			Msg("arbitrated borderline pair")

		switch verdict.Decision {
		case types.DecisionUpdate:
			r := updateResolution(target, &sc, verdict.Confidence, verdict.Reasoning, types.MethodAIAssisted)
			r.NewInformation = verdict.NewInformation
			r.OverlapSummary = verdict.OverlapSummary
			return e.persist(ctx, Result{ArticleID: articleID, Outcome: OutcomeUpdate}, r)

		case types.DecisionSkip:
			r := types.SkipResolution(article(target), originalRef(&sc), verdict.Confidence, sc.Breakdown.Total, verdict.Reasoning)
			r.OverlapSummary = verdict.OverlapSummary
			return e.persist(ctx, Result{ArticleID: articleID, Outcome: OutcomeSkip}, r)

		case types.DecisionNew:
			lowest = lowerConfidence(lowest, verdict.Confidence)
			reasonings = append(reasonings,
				fmt.Sprintf("vs %s: %s", sc.ID, verdict.Reasoning))
		}
	}

	// Every borderline candidate was judged materially distinct.
	maxTotal := 0.0
	for _, sc := range borderline {
		if sc.Breakdown.Total > maxTotal {
			maxTotal = sc.Breakdown.Total
		}
	}
	return e.persist(ctx, Result{ArticleID: articleID, Outcome: OutcomeNew},
		newResolution(target, lowest, maxTotal, strings.Join(reasonings, "; "), types.MethodAIAssisted))
}

func (e *Engine) persist(ctx context.Context, res Result, r types.Resolution) (Result, error) {
	if err := e.store.SaveResolution(ctx, r); err != nil {
		return Result{}, err
	}
	res.Resolution = &r
	e.logger.Info().
		Str("article", res.ArticleID).
		Str("decision", string(r.Decision)).
		Str("method", string(r.Method)).
		Float64("similarity", r.Similarity).
		Str("canonical", r.CanonicalID).
		Msg("resolution persisted")
	return res, nil
}

// article rebuilds the minimal types.Article the resolution constructors
// need from indexed signals.
func article(sig *similarity.Signals) types.Article {
	published, _ := parseDate(sig.Date)
	return types.Article{ID: sig.ArticleID, Slug: sig.Slug, PublishedAt: published}
}

func originalRef(sc *ScoredCandidate) types.OriginalRef {
	return types.OriginalRef{ID: sc.ID, Date: sc.Signals.Date, Slug: sc.Signals.Slug}
}

func newResolution(sig *similarity.Signals, confidence types.Confidence, score float64, reasoning string, method types.Method) types.Resolution {
	return types.NewResolution(article(sig), confidence, score, reasoning, method)
}

func updateResolution(sig *similarity.Signals, sc *ScoredCandidate, confidence types.Confidence, reasoning string, method types.Method) types.Resolution {
	return types.UpdateResolution(article(sig), originalRef(sc), confidence, sc.Breakdown.Total, reasoning, method)
}

// lowerConfidence returns the weaker of two confidence grades.
func lowerConfidence(a, b types.Confidence) types.Confidence {
	rank := map[types.Confidence]int{
		types.ConfidenceHigh:   3,
		types.ConfidenceMedium: 2,
		types.ConfidenceLow:    1,
	}
	if rank[b] < rank[a] {
		return b
	}
	return a
}

// Summary holds counts from a batch resolution run.
type Summary struct {
	New      int
	Updates  int
	Skips    int
	Pending  int
	Resolved int
	Failed   int
}

// Total returns the number of articles processed.
func (s Summary) Total() int {
	return s.New + s.Updates + s.Skips + s.Pending + s.Resolved + s.Failed
}

// HasFailures reports whether any articles failed outright.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// ProcessBatch runs the engine over articles sequentially, one status line
// per article. Per-article errors are recoverable: the batch continues.
func (e *Engine) ProcessBatch(ctx context.Context, articleIDs []string, w io.Writer) (Summary, error) {
	var summary Summary

	for _, id := range articleIDs {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		result, err := e.Process(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return summary, err
			}
			fmt.Fprintf(w, "failed    %s: %v\n", id, err)
			e.logger.Warn().Str("article", id).Err(err).Msg("resolution failed")
			summary.Failed++
			continue
		}

		fmt.Fprintf(w, "%-9s %s\n", result.Outcome, id)
		switch result.Outcome {
		case OutcomeNew:
			summary.New++
		case OutcomeUpdate:
			summary.Updates++
		case OutcomeSkip:
			summary.Skips++
		case OutcomePending:
			summary.Pending++
		case OutcomeResolved:
			summary.Resolved++
		}
	}

	fmt.Fprintf(w, "\nnew: %d, updates: %d, skips: %d, pending: %d, already resolved: %d, failed: %d\n",
		summary.New, summary.Updates, summary.Skips, summary.Pending, summary.Resolved, summary.Failed)
	return summary, nil
}

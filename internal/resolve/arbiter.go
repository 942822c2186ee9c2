// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jaybodecode/netsecops-dedup/internal/similarity"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// Arbiter abstracts the natural-language comparison service consulted for
// borderline pairs, so tests can supply a mock.
type Arbiter interface {
	Compare(ctx context.Context, target, candidate *similarity.Signals) (Verdict, error)
}

// Verdict is the service's judgment of one target/candidate pair.
type Verdict struct {
	// Decision follows the rubric: NEW when the story is materially distinct,
	// UPDATE when it continues the same incident, SKIP when it adds nothing.
	Decision types.Decision `json:"decision"`

	Confidence types.Confidence `json:"confidence"`

	// Reasoning is free text, persisted in full for audit.
	Reasoning string `json:"reasoning"`

	// NewInformation lists what the target adds over the candidate, if the
	// service chose to enumerate it.
	NewInformation []string `json:"new_information,omitempty"`

	// OverlapSummary describes what the two articles share.
	OverlapSummary string `json:"overlap_summary,omitempty"`
}

// Validate rejects verdicts outside the response contract. A malformed
// verdict counts as a failed call: the article stays unresolved for the run.
func (v Verdict) Validate() error {
	switch v.Decision {
	case types.DecisionNew, types.DecisionUpdate, types.DecisionSkip:
	default:
		return fmt.Errorf("verdict has invalid decision %q", v.Decision)
	}
	switch v.Confidence {
	case types.ConfidenceHigh, types.ConfidenceMedium, types.ConfidenceLow:
	default:
		return fmt.Errorf("verdict has invalid confidence %q", v.Confidence)
	}
	if strings.TrimSpace(v.Reasoning) == "" {
		return fmt.Errorf("verdict has no reasoning")
	}
	return nil
}

// backoffBase controls the base duration for exponential backoff between
// arbiter attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// compareWithRetry calls the arbiter with exponential backoff.
func compareWithRetry(ctx context.Context, arbiter Arbiter, target, candidate *similarity.Signals, maxRetries int) (Verdict, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return Verdict{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		verdict, err := arbiter.Compare(ctx, target, candidate)
		if err == nil {
			return verdict, nil
		}
		lastErr = err
	}
	return Verdict{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

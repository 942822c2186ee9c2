// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Decision is the outcome of duplicate resolution for one article.
type Decision string

const (
	// DecisionNew marks a genuinely new incident, published standalone.
	DecisionNew Decision = "new"

	// DecisionUpdate marks a continuation of an earlier story, merged into it.
	DecisionUpdate Decision = "update"

	// DecisionSkip marks a redundant restatement, suppressed entirely.
	DecisionSkip Decision = "skip"
)

// Confidence grades how certain a resolution is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Method records how a resolution was reached.
type Method string

const (
	// MethodAutomatic means the similarity score alone was decisive.
	MethodAutomatic Method = "automatic"

	// MethodAIAssisted means a borderline score was arbitrated by the
	// natural-language comparison service.
	MethodAIAssisted Method = "ai_assisted"
)

// OriginalRef identifies the earlier article an UPDATE resolution points at.
type OriginalRef struct {
	ID   string `json:"id" yaml:"id"`
	Date string `json:"date" yaml:"date"`
	Slug string `json:"slug" yaml:"slug"`
}

// Resolution is one persisted dedup decision. The publication assembler reads
// these and never mutates them: NEW articles become standalone entries, UPDATE
// articles merge into the entry named by CanonicalID, SKIP articles are
// omitted.
type Resolution struct {
	ArticleID  string       `json:"article_id" yaml:"article_id"`
	Date       string       `json:"date" yaml:"date"`
	Decision   Decision     `json:"decision" yaml:"decision"`
	Confidence Confidence   `json:"confidence" yaml:"confidence"`
	Similarity float64      `json:"similarity" yaml:"similarity"`
	Original   *OriginalRef `json:"original,omitempty" yaml:"original,omitempty"`

	// CanonicalID is the identifier downstream consumers treat as
	// authoritative for this story: the article's own id for NEW, the
	// original's id for UPDATE, empty for SKIP.
	CanonicalID string `json:"canonical_id,omitempty" yaml:"canonical_id,omitempty"`

	Reasoning      string    `json:"reasoning" yaml:"reasoning"`
	Method         Method    `json:"method" yaml:"method"`
	NewInformation []string  `json:"new_information,omitempty" yaml:"new_information,omitempty"`
	OverlapSummary string    `json:"overlap_summary,omitempty" yaml:"overlap_summary,omitempty"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks internal consistency, in particular the canonical-id rule.
func (r Resolution) Validate() error {
	if r.ArticleID == "" {
		return fmt.Errorf("resolution has no article id")
	}
	switch r.Decision {
	case DecisionNew:
		if r.CanonicalID != r.ArticleID {
			return fmt.Errorf("resolution %s: NEW must be canonical for itself, got %q", r.ArticleID, r.CanonicalID)
		}
	case DecisionUpdate:
		if r.Original == nil {
			return fmt.Errorf("resolution %s: UPDATE without an original article", r.ArticleID)
		}
		if r.CanonicalID != r.Original.ID {
			return fmt.Errorf("resolution %s: UPDATE must be canonical for original %s, got %q",
				r.ArticleID, r.Original.ID, r.CanonicalID)
		}
	case DecisionSkip:
		if r.CanonicalID != "" {
			return fmt.Errorf("resolution %s: SKIP must have no canonical id, got %q", r.ArticleID, r.CanonicalID)
		}
	default:
		return fmt.Errorf("resolution %s: unknown decision %q", r.ArticleID, r.Decision)
	}
	switch r.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		return fmt.Errorf("resolution %s: unknown confidence %q", r.ArticleID, r.Confidence)
	}
	if r.Similarity < 0 || r.Similarity > 1 {
		return fmt.Errorf("resolution %s: similarity %f out of range [0,1]", r.ArticleID, r.Similarity)
	}
	switch r.Method {
	case MethodAutomatic, MethodAIAssisted:
	default:
		return fmt.Errorf("resolution %s: unknown method %q", r.ArticleID, r.Method)
	}
	return nil
}

// NewResolution builds a NEW resolution with the canonical-id rule applied.
func NewResolution(a Article, confidence Confidence, similarity float64, reasoning string, method Method) Resolution {
	return Resolution{
		ArticleID:   a.ID,
		Date:        a.Date(),
		Decision:    DecisionNew,
		Confidence:  confidence,
		Similarity:  similarity,
		CanonicalID: a.ID,
		Reasoning:   reasoning,
		Method:      method,
	}
}

// UpdateResolution builds an UPDATE resolution pointing at the earlier article.
func UpdateResolution(a Article, original OriginalRef, confidence Confidence, similarity float64, reasoning string, method Method) Resolution {
	return Resolution{
		ArticleID:   a.ID,
		Date:        a.Date(),
		Decision:    DecisionUpdate,
		Confidence:  confidence,
		Similarity:  similarity,
		Original:    &original,
		CanonicalID: original.ID,
		Reasoning:   reasoning,
		Method:      method,
	}
}

// SkipResolution builds a SKIP resolution. The original is kept for audit even
// though no canonical id is assigned.
func SkipResolution(a Article, original OriginalRef, confidence Confidence, similarity float64, reasoning string) Resolution {
	return Resolution{
		ArticleID:  a.ID,
		Date:       a.Date(),
		Decision:   DecisionSkip,
		Confidence: confidence,
		Similarity: similarity,
		Original:   &original,
		Reasoning:  reasoning,
		Method:     MethodAIAssisted,
	}
}

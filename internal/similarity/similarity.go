// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package similarity computes the weighted multi-dimensional Jaccard score
// between two articles and classifies it against the run thresholds.
package similarity

import (
	"strings"

	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// Signals holds the structured comparison inputs of one article, as loaded
// from the index. Entity sets are keyed by normalized lower-case name.
type Signals struct {
	ArticleID string
	Date      string
	Slug      string

	CVEs         map[string]struct{}
	ThreatActors map[string]struct{}
	Malware      map[string]struct{}
	Products     map[string]struct{}
	Companies    map[string]struct{}

	// Agencies holds government_agency entities. They are indexed and feed
	// the candidate prefilter but carry no weight in the score.
	Agencies map[string]struct{}

	// Text is the full report, or the summary when no report exists.
	Text string

	// trigrams caches the shingle set of Text across comparisons.
	trigrams map[string]struct{}
}

// Trigrams returns the article text's trigram set, computing it on first use.
func (s *Signals) Trigrams() map[string]struct{} {
	if s.trigrams == nil {
		s.trigrams = Trigrams(s.Text)
	}
	return s.trigrams
}

// Trigrams returns the set of contiguous lower-cased 3-character substrings
// of s. Trigram overlap degrades gracefully under rephrasing and catches
// shared technical identifiers without tokenization rules.
func Trigrams(s string) map[string]struct{} {
	lowered := strings.ToLower(s)
	set := make(map[string]struct{})
	runes := []rune(lowered)
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets compare as exactly 0, never
// NaN.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	intersection := 0
	for k := range smaller {
		if _, ok := larger[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// Breakdown holds the six per-dimension Jaccard scores and the weighted total.
type Breakdown struct {
	CVE         float64 `json:"cve" yaml:"cve"`
	Text        float64 `json:"text" yaml:"text"`
	ThreatActor float64 `json:"threat_actor" yaml:"threat_actor"`
	Malware     float64 `json:"malware" yaml:"malware"`
	Product     float64 `json:"product" yaml:"product"`
	Company     float64 `json:"company" yaml:"company"`
	Total       float64 `json:"total" yaml:"total"`
}

// Score computes the six dimension similarities between target and candidate
// and combines them with the configured weights. Total lies in [0,1] as long
// as the weights sum to 1.
func Score(target, candidate *Signals, w types.Weights) Breakdown {
	b := Breakdown{
		CVE:         Jaccard(target.CVEs, candidate.CVEs),
		Text:        Jaccard(target.Trigrams(), candidate.Trigrams()),
		ThreatActor: Jaccard(target.ThreatActors, candidate.ThreatActors),
		Malware:     Jaccard(target.Malware, candidate.Malware),
		Product:     Jaccard(target.Products, candidate.Products),
		Company:     Jaccard(target.Companies, candidate.Companies),
	}
	b.Total = b.CVE*w.CVE +
		b.Text*w.Text +
		b.ThreatActor*w.ThreatActor +
		b.Malware*w.Malware +
		b.Product*w.Product +
		b.Company*w.Company
	return b
}

// Class is the threshold classification of a total score.
type Class string

const (
	// ClassNew means the score is below the borderline cutoff.
	ClassNew Class = "new"

	// ClassBorderline means the score is inconclusive and needs arbitration.
	ClassBorderline Class = "borderline"

	// ClassUpdate means the score alone is decisive.
	ClassUpdate Class = "update"
)

// Classify maps a total score to a Class. Both cutoffs are inclusive lower
// bounds: exactly t.Borderline is BORDERLINE and exactly t.Update is UPDATE.
func Classify(total float64, t types.Thresholds) Class {
	switch {
	case total >= t.Update:
		return ClassUpdate
	case total >= t.Borderline:
		return ClassBorderline
	default:
		return ClassNew
	}
}

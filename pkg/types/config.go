package types

import (
	"fmt"
	"math"
)

// weightSumTolerance absorbs float accumulation when checking that the six
// dimension weights sum to 1.0.
const weightSumTolerance = 1e-9

// Weights holds the per-dimension weights of the similarity score. They are
// run-time configuration: the defaults were tuned empirically, not derived,
// and recalibration against a labeled dataset only needs a config change.
type Weights struct {
	// CVE weights the shared-CVE dimension, the primary campaign identifier.
	CVE float64 `json:"cve" yaml:"cve"`

	// Text weights trigram overlap of the report bodies.
	Text float64 `json:"text" yaml:"text"`

	// ThreatActor weights the shared threat_actor entity set.
	ThreatActor float64 `json:"threat_actor" yaml:"threat_actor"`

	// Malware weights the shared malware entity set.
	Malware float64 `json:"malware" yaml:"malware"`

	// Product weights the shared product entity set.
	Product float64 `json:"product" yaml:"product"`

	// Company weights the shared company entity set ("vendor" included).
	Company float64 `json:"company" yaml:"company"`
}

// DefaultWeights returns the current tuned weight set.
func DefaultWeights() Weights {
	return Weights{
		CVE:         0.45,
		Text:        0.20,
		ThreatActor: 0.11,
		Malware:     0.11,
		Product:     0.07,
		Company:     0.06,
	}
}

// Validate checks each weight lies in [0,1] and the set sums to 1.0.
func (w Weights) Validate() error {
	for _, dim := range []struct {
		name  string
		value float64
	}{
		{"cve", w.CVE},
		{"text", w.Text},
		{"threat_actor", w.ThreatActor},
		{"malware", w.Malware},
		{"product", w.Product},
		{"company", w.Company},
	} {
		if dim.value < 0 || dim.value > 1 {
			return fmt.Errorf("similarity weight %s = %f out of range [0,1]", dim.name, dim.value)
		}
	}
	sum := w.CVE + w.Text + w.ThreatActor + w.Malware + w.Product + w.Company
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("similarity weights sum to %f, must sum to 1.0", sum)
	}
	return nil
}

// Thresholds holds the score cutoffs of the classifier. Lower bounds are
// inclusive: score >= Borderline is BORDERLINE, score >= Update is UPDATE.
type Thresholds struct {
	// Borderline is the cutoff below which an article is automatically NEW.
	Borderline float64 `json:"borderline" yaml:"borderline"`

	// Update is the cutoff at which an article is automatically an UPDATE.
	Update float64 `json:"update" yaml:"update"`
}

// DefaultThresholds returns the standard classifier cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Borderline: 0.35, Update: 0.70}
}

// Validate checks both cutoffs lie in [0,1] with borderline below update.
func (t Thresholds) Validate() error {
	if t.Borderline < 0 || t.Borderline > 1 {
		return fmt.Errorf("borderline threshold %f out of range [0,1]", t.Borderline)
	}
	if t.Update < 0 || t.Update > 1 {
		return fmt.Errorf("update threshold %f out of range [0,1]", t.Update)
	}
	if t.Borderline >= t.Update {
		return fmt.Errorf("borderline threshold %f must be below update threshold %f", t.Borderline, t.Update)
	}
	return nil
}

// SimilarityConfig groups the tunable parameters of scoring and classification.
type SimilarityConfig struct {
	Weights    Weights    `json:"weights" yaml:"weights"`
	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`
}

// Validate checks weights and thresholds together.
func (c SimilarityConfig) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	return c.Thresholds.Validate()
}

// DedupConfig holds the settings of a dedup run.
type DedupConfig struct {
	Similarity SimilarityConfig `json:"similarity" yaml:"similarity"`

	// LookbackDays is the trailing window searched for duplicate candidates
	// (default 30, minimum 1).
	LookbackDays int `json:"lookback_days" yaml:"lookback_days"`

	// ArticlesDir is the directory of upstream article JSON files.
	ArticlesDir string `json:"articles_dir" yaml:"articles_dir"`

	// IndexDir is the directory holding the SQLite index database.
	IndexDir string `json:"index_dir" yaml:"index_dir"`
}

// DefaultDedupConfig returns a run configuration with all defaults applied.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		Similarity: SimilarityConfig{
			Weights:    DefaultWeights(),
			Thresholds: DefaultThresholds(),
		},
		LookbackDays: 30,
		ArticlesDir:  "articles",
		IndexDir:     "index",
	}
}

// Validate checks the run configuration before any store I/O happens.
func (c DedupConfig) Validate() error {
	if err := c.Similarity.Validate(); err != nil {
		return err
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("lookback window %d days is below the 1-day minimum", c.LookbackDays)
	}
	return nil
}

// AIConfig holds settings for the natural-language comparison service.
type AIConfig struct {
	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

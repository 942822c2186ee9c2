// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "testing"

func TestDefaultWeightsValid(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights failed validation: %v", err)
	}
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{
			"defaults",
			DefaultWeights(),
			false,
		},
		{
			// The pre-recalibration weight set still sums to 1.0 and must
			// stay loadable from config.
			"previous tuning",
			Weights{CVE: 0.40, Text: 0.20, ThreatActor: 0.12, Malware: 0.12, Product: 0.08, Company: 0.08},
			false,
		},
		{
			"single dimension",
			Weights{Text: 1.0},
			false,
		},
		{
			"sum below one",
			Weights{CVE: 0.5, Text: 0.2},
			true,
		},
		{
			"sum above one",
			Weights{CVE: 0.9, Text: 0.9},
			true,
		},
		{
			"negative weight",
			Weights{CVE: -0.1, Text: 1.1},
			true,
		},
		{
			"weight above one",
			Weights{CVE: 1.5, Text: -0.5},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name       string
		thresholds Thresholds
		wantErr    bool
	}{
		{"defaults", DefaultThresholds(), false},
		{"custom", Thresholds{Borderline: 0.2, Update: 0.9}, false},
		{"borderline above update", Thresholds{Borderline: 0.8, Update: 0.5}, true},
		{"borderline equals update", Thresholds{Borderline: 0.5, Update: 0.5}, true},
		{"negative borderline", Thresholds{Borderline: -0.1, Update: 0.7}, true},
		{"update above one", Thresholds{Borderline: 0.35, Update: 1.2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.thresholds.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDedupConfigValidate(t *testing.T) {
	cfg := DefaultDedupConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}

	cfg.LookbackDays = 0
	if err := cfg.Validate(); err == nil {
		t.Error("lookback of 0 days should fail validation")
	}

	cfg = DefaultDedupConfig()
	cfg.Similarity.Weights.CVE = 0.99
	if err := cfg.Validate(); err == nil {
		t.Error("broken weight sum should fail validation")
	}
}

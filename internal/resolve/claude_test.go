// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"strings"
	"testing"

	"github.com/jaybodecode/netsecops-dedup/internal/similarity"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

func TestNewClaudeArbiterConfig(t *testing.T) {
	if _, err := NewClaudeArbiter(types.AIConfig{Model: "claude-sonnet-4-5-20250929"}); err == nil {
		t.Error("missing API key should fail")
	}
	if _, err := NewClaudeArbiter(types.AIConfig{APIKey: "sk-test"}); err == nil {
		t.Error("missing model should fail")
	}
	if _, err := NewClaudeArbiter(types.AIConfig{APIKey: "sk-test", Model: "claude-sonnet-4-5-20250929"}); err != nil {
		t.Errorf("complete config rejected: %v", err)
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     types.Decision
		wantErr  bool
	}{
		{
			"plain JSON",
			`{"decision": "UPDATE", "confidence": "high", "reasoning": "same incident", "new_information": ["patch released"], "overlap_summary": "same CVE"}`,
			types.DecisionUpdate,
			false,
		},
		{
			"lowercase decision",
			`{"decision": "new", "confidence": "medium", "reasoning": "distinct story"}`,
			types.DecisionNew,
			false,
		},
		{
			"json code fence",
			"```json\n{\"decision\": \"SKIP\", \"confidence\": \"high\", \"reasoning\": \"restated\"}\n```",
			types.DecisionSkip,
			false,
		},
		{
			"bare code fence",
			"```\n{\"decision\": \"NEW\", \"confidence\": \"low\", \"reasoning\": \"unsure\"}\n```",
			types.DecisionNew,
			false,
		},
		{
			"surrounding whitespace",
			"\n  {\"decision\": \"NEW\", \"confidence\": \"high\", \"reasoning\": \"fine\"}  \n",
			types.DecisionNew,
			false,
		},
		{
			"invalid decision",
			`{"decision": "MAYBE", "confidence": "high", "reasoning": "hmm"}`,
			"",
			true,
		},
		{
			"invalid confidence",
			`{"decision": "NEW", "confidence": "certain", "reasoning": "hmm"}`,
			"",
			true,
		},
		{
			"empty reasoning",
			`{"decision": "NEW", "confidence": "high", "reasoning": "  "}`,
			"",
			true,
		},
		{
			"not JSON",
			"I think this is an update.",
			"",
			true,
		},
		{
			"empty response",
			"",
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseVerdict(tt.response)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVerdict error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && v.Decision != tt.want {
				t.Errorf("Decision = %q, want %q", v.Decision, tt.want)
			}
		})
	}
}

func TestParseVerdictCarriesDetails(t *testing.T) {
	v, err := parseVerdict(`{
		"decision": "UPDATE",
		"confidence": "medium",
		"reasoning": "continuation of the same campaign",
		"new_information": ["new victim disclosed", "PoC published"],
		"overlap_summary": "both cover the March exploitation wave"
	}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.NewInformation) != 2 {
		t.Errorf("NewInformation = %v, want both items", v.NewInformation)
	}
	if !strings.Contains(v.OverlapSummary, "March") {
		t.Errorf("OverlapSummary = %q", v.OverlapSummary)
	}
}

func TestRenderComparePrompt(t *testing.T) {
	target := &similarity.Signals{
		ArticleID:    "2026-03-01_target",
		Date:         "2026-03-01",
		CVEs:         map[string]struct{}{"CVE-2026-1111": {}},
		ThreatActors: map[string]struct{}{"lockbit": {}},
		Companies:    map[string]struct{}{"microsoft": {}},
		Text:         "New wave of exploitation reported.",
	}
	candidate := &similarity.Signals{
		ArticleID: "2026-02-20_candidate",
		Date:      "2026-02-20",
		Text:      "Initial exploitation report.",
	}

	prompt, err := renderComparePrompt(target, candidate)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"EARLIER ARTICLE (2026-02-20)",
		"NEW ARTICLE (2026-03-01)",
		"CVE-2026-1111",
		"lockbit (threat_actor)",
		"microsoft (company)",
		"Initial exploitation report.",
		"ONLY raw JSON",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// An article with no CVEs or entities renders "none", not empty fields.
	if !strings.Contains(prompt, "CVEs: none") {
		t.Error("candidate without CVEs should render as none")
	}
	if !strings.Contains(prompt, "Entities: none") {
		t.Error("candidate without entities should render as none")
	}
}

func TestRenderComparePromptTruncatesText(t *testing.T) {
	target := &similarity.Signals{
		Date: "2026-03-01",
		Text: strings.Repeat("a", maxPromptTextLen+500),
	}
	candidate := &similarity.Signals{Date: "2026-02-20", Text: "short"}

	prompt, err := renderComparePrompt(target, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "... (truncated)") {
		t.Error("oversized article body not truncated in prompt")
	}
	if strings.Contains(prompt, strings.Repeat("a", maxPromptTextLen+1)) {
		t.Error("full oversized body leaked into the prompt")
	}
}

func TestVerdictValidate(t *testing.T) {
	good := Verdict{Decision: types.DecisionNew, Confidence: types.ConfidenceHigh, Reasoning: "ok"}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid verdict rejected: %v", err)
	}

	bad := []Verdict{
		{Decision: "later", Confidence: types.ConfidenceHigh, Reasoning: "ok"},
		{Decision: types.DecisionNew, Confidence: "sure", Reasoning: "ok"},
		{Decision: types.DecisionNew, Confidence: types.ConfidenceHigh, Reasoning: ""},
	}
	for i, v := range bad {
		if err := v.Validate(); err == nil {
			t.Errorf("bad verdict %d passed validation", i)
		}
	}
}

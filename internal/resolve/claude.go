// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jaybodecode/netsecops-dedup/internal/similarity"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// comparePromptTmpl is the rubric sent to the model for one borderline pair.
// The response contract is a single raw JSON object.
var comparePromptTmpl = template.Must(template.New("compare").Parse(`You are a security-news editor deciding whether a new article duplicates an earlier one. Both articles were generated from security intelligence about recent incidents.

EARLIER ARTICLE ({{.Candidate.Date}}):
CVEs: {{.Candidate.CVEs}}
Entities: {{.Candidate.Entities}}
Text:
{{.Candidate.Text}}

NEW ARTICLE ({{.Target.Date}}):
CVEs: {{.Target.CVEs}}
Entities: {{.Target.Entities}}
Text:
{{.Target.Text}}

Decide how the new article relates to the earlier one:
- "NEW": the new article covers a materially distinct story, even if it touches the same vulnerabilities or actors. Favor NEW when in doubt.
- "UPDATE": the new article is a continuation or new development of the same incident (new victims, patches, exploitation status, attribution).
- "SKIP": the new article restates the earlier one and adds no information worth publishing.

Respond with a JSON object:
{
  "decision": "NEW|UPDATE|SKIP",
  "confidence": "high|medium|low",
  "reasoning": "why you decided this",
  "new_information": ["each materially new fact in the new article", ...],
  "overlap_summary": "what the two articles share"
}

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences. Just the JSON object.`))

// maxPromptTextLen bounds how much article body goes into the prompt.
const maxPromptTextLen = 8000

// ClaudeArbiter compares borderline article pairs through the Anthropic
// Messages API.
type ClaudeArbiter struct {
	client anthropic.Client
	model  string
}

// NewClaudeArbiter builds an arbiter from the AI configuration. Retries are
// the engine's concern, not the arbiter's.
func NewClaudeArbiter(cfg types.AIConfig) (*ClaudeArbiter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("AI model not configured")
	}

	return &ClaudeArbiter{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// Compare submits one target/candidate pair and parses the verdict. The call
// blocks; the engine issues these one at a time so the persisted order of
// reasoning stays reproducible.
func (c *ClaudeArbiter) Compare(ctx context.Context, target, candidate *similarity.Signals) (Verdict, error) {
	prompt, err := renderComparePrompt(target, candidate)
	if err != nil {
		return Verdict{}, fmt.Errorf("rendering comparison prompt: %w", err)
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText.WriteString(block.Text)
		}
	}
	if responseText.Len() == 0 {
		return Verdict{}, fmt.Errorf("anthropic API returned no text content")
	}

	return parseVerdict(responseText.String())
}

// parseVerdict decodes the model response. Decisions arrive upper-case per
// the rubric; stray code fences are stripped before parsing.
func parseVerdict(text string) (Verdict, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw struct {
		Decision       string   `json:"decision"`
		Confidence     string   `json:"confidence"`
		Reasoning      string   `json:"reasoning"`
		NewInformation []string `json:"new_information"`
		OverlapSummary string   `json:"overlap_summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Verdict{}, fmt.Errorf("parsing verdict JSON: %w", err)
	}

	v := Verdict{
		Decision:       types.Decision(strings.ToLower(raw.Decision)),
		Confidence:     types.Confidence(strings.ToLower(raw.Confidence)),
		Reasoning:      raw.Reasoning,
		NewInformation: raw.NewInformation,
		OverlapSummary: raw.OverlapSummary,
	}
	if err := v.Validate(); err != nil {
		return Verdict{}, err
	}
	return v, nil
}

// promptArticle is the view of one article rendered into the prompt.
type promptArticle struct {
	Date     string
	CVEs     string
	Entities string
	Text     string
}

func renderComparePrompt(target, candidate *similarity.Signals) (string, error) {
	data := struct {
		Target    promptArticle
		Candidate promptArticle
	}{
		Target:    promptView(target),
		Candidate: promptView(candidate),
	}

	var buf bytes.Buffer
	if err := comparePromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func promptView(sig *similarity.Signals) promptArticle {
	cves := setToSlice(sig.CVEs)
	if len(cves) == 0 {
		cves = []string{"none"}
	}

	var entities []string
	for _, group := range []struct {
		label string
		set   map[string]struct{}
	}{
		{"threat_actor", sig.ThreatActors},
		{"malware", sig.Malware},
		{"product", sig.Products},
		{"company", sig.Companies},
		{"government_agency", sig.Agencies},
	} {
		for _, name := range setToSlice(group.set) {
			entities = append(entities, fmt.Sprintf("%s (%s)", name, group.label))
		}
	}
	if len(entities) == 0 {
		entities = []string{"none"}
	}

	text := sig.Text
	if len(text) > maxPromptTextLen {
		text = text[:maxPromptTextLen] + "... (truncated)"
	}

	return promptArticle{
		Date:     sig.Date,
		CVEs:     strings.Join(cves, ", "),
		Entities: strings.Join(entities, ", "),
		Text:     text,
	}
}

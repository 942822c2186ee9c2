// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import (
	"math"
	"testing"

	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

func set(keys ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// --- trigram tests ---

func TestTrigrams(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"shorter than three runes", "ab", nil},
		{"exactly three runes", "abc", []string{"abc"}},
		{"lowercases input", "ABCD", []string{"abc", "bcd"}},
		{"repeated trigrams collapse", "aaaa", []string{"aaa"}},
		{"multibyte runes", "日本語攻撃", []string{"日本語", "本語攻", "語攻撃"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trigrams(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d trigrams %v, want %d", len(got), got, len(tt.want))
			}
			for _, tri := range tt.want {
				if _, ok := got[tri]; !ok {
					t.Errorf("missing trigram %q", tri)
				}
			}
		})
	}
}

func TestSignalsTrigramsCached(t *testing.T) {
	s := &Signals{Text: "lockbit ransomware"}
	first := s.Trigrams()
	s.Text = "something else entirely"
	second := s.Trigrams()
	if len(first) != len(second) {
		t.Error("Trigrams recomputed after first use; expected the cached set")
	}
}

// --- Jaccard tests ---

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]struct{}
		want float64
	}{
		{"both empty", nil, nil, 0},
		{"one empty", set("a"), nil, 0},
		{"identical", set("a", "b"), set("a", "b"), 1},
		{"disjoint", set("a", "b"), set("c", "d"), 0},
		{"partial overlap", set("a", "b", "c"), set("b", "c", "d"), 0.5},
		{"subset", set("a"), set("a", "b"), 0.5},
		{"three of four", set("a", "b", "c"), set("a", "b", "c", "d"), 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jaccard(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Jaccard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJaccardSymmetric(t *testing.T) {
	a := set("cve-2026-1234", "cve-2026-5678")
	b := set("cve-2026-1234", "cve-2026-9999", "cve-2026-0001")
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Errorf("Jaccard(a,b) = %v but Jaccard(b,a) = %v", Jaccard(a, b), Jaccard(b, a))
	}
}

func TestJaccardNeverNaN(t *testing.T) {
	if got := Jaccard(map[string]struct{}{}, map[string]struct{}{}); math.IsNaN(got) || got != 0 {
		t.Errorf("empty-vs-empty Jaccard = %v, want 0", got)
	}
}

// --- scoring tests ---

// TestScoreWorkedExample pins the weighted combination against a hand-computed
// case: full CVE overlap, 0.75 threat-actor overlap, no malware overlap, full
// product overlap, half company overlap, and 0.20 text-trigram overlap.
func TestScoreWorkedExample(t *testing.T) {
	target := &Signals{
		ArticleID:    "2026-03-01_lockbit-returns",
		CVEs:         set("cve-2026-1111"),
		ThreatActors: set("lockbit", "fin7", "apt29"),
		Malware:      set("cobaltstrike"),
		Products:     set("exchange server"),
		Companies:    set("microsoft"),
		// trigrams {abc bcd cde}
		Text: "abcde",
	}
	candidate := &Signals{
		ArticleID:    "2026-02-27_lockbit-campaign",
		CVEs:         set("cve-2026-1111"),
		ThreatActors: set("lockbit", "fin7", "apt29", "scattered spider"),
		Malware:      set("emotet"),
		Products:     set("exchange server"),
		Companies:    set("microsoft", "cisa"),
		// trigrams {cde def efg}: one of five in the union shared
		Text: "cdefg",
	}

	b := Score(target, candidate, types.DefaultWeights())

	checks := []struct {
		dim  string
		got  float64
		want float64
	}{
		{"CVE", b.CVE, 1.0},
		{"Text", b.Text, 0.20},
		{"ThreatActor", b.ThreatActor, 0.75},
		{"Malware", b.Malware, 0},
		{"Product", b.Product, 1.0},
		{"Company", b.Company, 0.5},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.dim, c.got, c.want)
		}
	}

	want := 0.45*1.0 + 0.20*0.20 + 0.11*0.75 + 0.11*0 + 0.07*1.0 + 0.06*0.5
	if math.Abs(b.Total-want) > 1e-9 {
		t.Errorf("Total = %v, want %v", b.Total, want)
	}
	if math.Abs(b.Total-0.6725) > 1e-9 {
		t.Errorf("Total = %v, want 0.6725", b.Total)
	}
	if Classify(b.Total, types.DefaultThresholds()) != ClassBorderline {
		t.Errorf("worked example should classify as borderline, got %v",
			Classify(b.Total, types.DefaultThresholds()))
	}
}

func TestScoreIdenticalSignals(t *testing.T) {
	a := &Signals{
		CVEs:         set("cve-2026-2222"),
		ThreatActors: set("lazarus"),
		Malware:      set("xmrig"),
		Products:     set("jenkins"),
		Companies:    set("oracle"),
		Text:         "attackers exploited a deserialization flaw in jenkins controllers",
	}
	b := &Signals{
		CVEs:         set("cve-2026-2222"),
		ThreatActors: set("lazarus"),
		Malware:      set("xmrig"),
		Products:     set("jenkins"),
		Companies:    set("oracle"),
		Text:         "attackers exploited a deserialization flaw in jenkins controllers",
	}

	got := Score(a, b, types.DefaultWeights())
	if math.Abs(got.Total-1.0) > 1e-9 {
		t.Errorf("Total = %v for identical signals, want 1.0", got.Total)
	}
	if Classify(got.Total, types.DefaultThresholds()) != ClassUpdate {
		t.Error("identical signals should classify as update")
	}
}

func TestScoreDisjointSignals(t *testing.T) {
	a := &Signals{
		CVEs:         set("cve-2026-0001"),
		ThreatActors: set("fin7"),
		Text:         "ransomware crew hit hospital chain",
	}
	b := &Signals{
		CVEs:    set("cve-2026-9999"),
		Malware: set("lummastealer"),
		Text:    "zero day in edge device firmware",
	}

	got := Score(a, b, types.DefaultWeights())
	if got.CVE != 0 || got.ThreatActor != 0 || got.Malware != 0 {
		t.Errorf("disjoint sets should score 0 per dimension, got %+v", got)
	}
	if got.Total >= types.DefaultThresholds().Borderline {
		t.Errorf("Total = %v for unrelated articles, want below borderline", got.Total)
	}
}

// TestScoreMonotonic checks that adding a shared CVE never lowers the total.
func TestScoreMonotonic(t *testing.T) {
	target := &Signals{
		CVEs: set("cve-2026-1000", "cve-2026-2000"),
		Text: "patch now",
	}
	without := &Signals{CVEs: set("cve-2026-1000"), Text: "patch now"}
	with := &Signals{CVEs: set("cve-2026-1000", "cve-2026-2000"), Text: "patch now"}

	w := types.DefaultWeights()
	if Score(target, with, w).Total < Score(target, without, w).Total {
		t.Error("adding a shared CVE lowered the total score")
	}
}

// Government agencies are prefilter signals only. They must not move the score.
func TestScoreIgnoresAgencies(t *testing.T) {
	base := &Signals{CVEs: set("cve-2026-3000"), Text: "advisory"}
	plain := &Signals{CVEs: set("cve-2026-3000"), Text: "advisory"}
	withAgency := &Signals{
		CVEs:     set("cve-2026-3000"),
		Agencies: set("cisa", "fbi"),
		Text:     "advisory",
	}

	w := types.DefaultWeights()
	if Score(base, plain, w).Total != Score(base, withAgency, w).Total {
		t.Error("agency overlap changed the total score")
	}
}

// --- classification tests ---

func TestClassify(t *testing.T) {
	th := types.DefaultThresholds()

	tests := []struct {
		name  string
		total float64
		want  Class
	}{
		{"zero", 0, ClassNew},
		{"just below borderline", 0.3499999, ClassNew},
		{"exactly borderline", 0.35, ClassBorderline},
		{"between cutoffs", 0.55, ClassBorderline},
		{"just below update", 0.6999999, ClassBorderline},
		{"exactly update", 0.70, ClassUpdate},
		{"perfect", 1.0, ClassUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.total, th); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.total, got, tt.want)
			}
		})
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	th := types.Thresholds{Borderline: 0.2, Update: 0.9}
	if got := Classify(0.25, th); got != ClassBorderline {
		t.Errorf("Classify(0.25) = %v with borderline 0.2, want borderline", got)
	}
	if got := Classify(0.85, th); got != ClassBorderline {
		t.Errorf("Classify(0.85) = %v with update 0.9, want borderline", got)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleArticle(id, date string) types.Article {
	day, _ := time.Parse("2006-01-02", date)
	return types.Article{
		ID:          id,
		Slug:        id,
		PublishedAt: day.Add(9 * time.Hour),
		Summary:     "LockBit affiliates exploited a fresh Exchange flaw.",
		Report:      "LockBit affiliates exploited CVE-2026-1111 in on-prem Exchange servers.",
		CVEs:        []types.CVE{{ID: "CVE-2026-1111", Severity: "critical", KEV: true}},
	}
}

func sampleEntities() []types.Entity {
	return []types.Entity{
		{Name: "lockbit", Type: types.EntityThreatActor},
		{Name: "cobaltstrike", Type: types.EntityMalware},
		{Name: "exchange server", Type: types.EntityProduct},
		{Name: "microsoft", Type: types.EntityCompany},
		{Name: "cisa", Type: types.EntityGovernmentAgency},
	}
}

func mustIndex(t *testing.T, s *Store, a types.Article, entities []types.Entity) {
	t.Helper()
	if err := s.InsertArticle(context.Background(), a, entities, false); err != nil {
		t.Fatal(err)
	}
}

// --- schema tests ---

func TestOpenCreatesSchema(t *testing.T) {
	s := testStore(t)

	for _, table := range []string{"articles", "article_cves", "article_entities", "resolutions"} {
		var count int
		err := s.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestOpenCreatesDBFile(t *testing.T) {
	indexDir := filepath.Join(t.TempDir(), "index")
	s, err := Open(indexDir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(indexDir, dbFile)); os.IsNotExist(err) {
		t.Errorf("database file not created in %s", indexDir)
	}
}

func TestOpenIdempotent(t *testing.T) {
	indexDir := filepath.Join(t.TempDir(), "index")
	s1, err := Open(indexDir)
	if err != nil {
		t.Fatal(err)
	}
	mustIndex(t, s1, sampleArticle("2026-03-01_a", "2026-03-01"), nil)
	s1.Close()

	s2, err := Open(indexDir)
	if err != nil {
		t.Fatalf("reopening existing database: %v", err)
	}
	defer s2.Close()

	indexed, err := s2.IsIndexed(context.Background(), "2026-03-01_a")
	if err != nil {
		t.Fatal(err)
	}
	if !indexed {
		t.Error("article indexed before reopen is gone")
	}
}

// --- article index tests ---

func TestInsertArticleRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := sampleArticle("2026-03-01_lockbit", "2026-03-01")
	mustIndex(t, s, a, sampleEntities())

	indexed, err := s.IsIndexed(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !indexed {
		t.Fatal("article not reported as indexed")
	}

	sig, err := s.Signals(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Date != "2026-03-01" {
		t.Errorf("Date = %q, want 2026-03-01", sig.Date)
	}
	if sig.Slug != a.Slug {
		t.Errorf("Slug = %q, want %q", sig.Slug, a.Slug)
	}
	if sig.Text != a.Report {
		t.Errorf("Text = %q, want the report", sig.Text)
	}
	if _, ok := sig.CVEs["CVE-2026-1111"]; !ok {
		t.Errorf("CVEs = %v, missing CVE-2026-1111", sig.CVEs)
	}
	if _, ok := sig.ThreatActors["lockbit"]; !ok {
		t.Errorf("ThreatActors = %v, missing lockbit", sig.ThreatActors)
	}
	if _, ok := sig.Malware["cobaltstrike"]; !ok {
		t.Errorf("Malware = %v, missing cobaltstrike", sig.Malware)
	}
	if _, ok := sig.Products["exchange server"]; !ok {
		t.Errorf("Products = %v, missing exchange server", sig.Products)
	}
	if _, ok := sig.Companies["microsoft"]; !ok {
		t.Errorf("Companies = %v, missing microsoft", sig.Companies)
	}
	if _, ok := sig.Agencies["cisa"]; !ok {
		t.Errorf("Agencies = %v, missing cisa", sig.Agencies)
	}
}

func TestSignalsFallsBackToSummary(t *testing.T) {
	s := testStore(t)

	a := sampleArticle("2026-03-01_short", "2026-03-01")
	a.Report = ""
	mustIndex(t, s, a, nil)

	sig, err := s.Signals(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Text != a.Summary {
		t.Errorf("Text = %q, want the summary", sig.Text)
	}
}

func TestSignalsUnindexedArticle(t *testing.T) {
	s := testStore(t)
	if _, err := s.Signals(context.Background(), "never-indexed"); err == nil {
		t.Error("expected an error for an unindexed article")
	}
}

func TestInsertArticleDuplicate(t *testing.T) {
	s := testStore(t)
	a := sampleArticle("2026-03-01_dup", "2026-03-01")

	mustIndex(t, s, a, sampleEntities())
	if err := s.InsertArticle(context.Background(), a, sampleEntities(), false); err == nil {
		t.Error("second insert without replace should fail on the primary key")
	}
}

func TestInsertArticleReplace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := sampleArticle("2026-03-01_re", "2026-03-01")
	mustIndex(t, s, a, sampleEntities())

	// Re-index with a changed report and a smaller entity set.
	a.Report = "Corrected report text."
	if err := s.InsertArticle(ctx, a, []types.Entity{
		{Name: "lockbit", Type: types.EntityThreatActor},
	}, true); err != nil {
		t.Fatal(err)
	}

	sig, err := s.Signals(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Text != "Corrected report text." {
		t.Errorf("Text = %q after replace, want the corrected report", sig.Text)
	}
	if len(sig.Companies) != 0 {
		t.Errorf("Companies = %v after replace, want empty", sig.Companies)
	}
}

func TestDeleteArticleIndexCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := sampleArticle("2026-03-01_gone", "2026-03-01")
	mustIndex(t, s, a, sampleEntities())

	if err := s.DeleteArticleIndex(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	for _, q := range []struct {
		table string
		query string
	}{
		{"article_cves", `SELECT count(*) FROM article_cves WHERE article_id = ?`},
		{"article_entities", `SELECT count(*) FROM article_entities WHERE article_id = ?`},
	} {
		var count int
		if err := s.db.QueryRow(q.query, a.ID).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("%s still has %d rows after delete", q.table, count)
		}
	}
}

func TestArticleIDsByDate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mustIndex(t, s, sampleArticle("2026-03-01_b", "2026-03-01"), nil)
	mustIndex(t, s, sampleArticle("2026-03-01_a", "2026-03-01"), nil)
	mustIndex(t, s, sampleArticle("2026-03-02_c", "2026-03-02"), nil)

	ids, err := s.ArticleIDsByDate(ctx, "2026-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "2026-03-01_a" || ids[1] != "2026-03-01_b" {
		t.Errorf("ids = %v, want [2026-03-01_a 2026-03-01_b]", ids)
	}
}

// --- candidate window tests ---

func TestCandidateIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Shares a CVE with the target, inside the window.
	mustIndex(t, s, sampleArticle("2026-02-20_shared-cve", "2026-02-20"), nil)
	// Shares only an entity name, inside the window.
	noCVE := sampleArticle("2026-02-25_shared-entity", "2026-02-25")
	noCVE.CVEs = nil
	mustIndex(t, s, noCVE, []types.Entity{{Name: "lockbit", Type: types.EntityThreatActor}})
	// Shares nothing.
	unrelated := sampleArticle("2026-02-26_unrelated", "2026-02-26")
	unrelated.CVEs = []types.CVE{{ID: "CVE-2026-9999"}}
	mustIndex(t, s, unrelated, []types.Entity{{Name: "akira", Type: types.EntityThreatActor}})
	// Shares a CVE but sits before the window opens.
	mustIndex(t, s, sampleArticle("2026-01-15_too-old", "2026-01-15"), nil)
	// Shares a CVE but is published on the target date itself.
	mustIndex(t, s, sampleArticle("2026-03-01_same-day", "2026-03-01"), nil)
	// The target.
	mustIndex(t, s, sampleArticle("2026-03-01_target", "2026-03-01"), sampleEntities())

	ids, err := s.CandidateIDs(ctx, "2026-03-01_target", "2026-01-30", "2026-03-01",
		[]string{"CVE-2026-1111"}, []string{"lockbit", "microsoft"})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"2026-02-20_shared-cve", "2026-02-25_shared-entity"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestCandidateIDsWindowBoundaries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// The lower bound is inclusive, the target date exclusive.
	mustIndex(t, s, sampleArticle("2026-02-01_at-lower-bound", "2026-02-01"), nil)
	mustIndex(t, s, sampleArticle("2026-02-28_day-before", "2026-02-28"), nil)
	mustIndex(t, s, sampleArticle("2026-03-01_on-target-date", "2026-03-01"), nil)

	ids, err := s.CandidateIDs(ctx, "2026-03-01_target", "2026-02-01", "2026-03-01",
		[]string{"CVE-2026-1111"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want the lower-bound and day-before articles only", ids)
	}
	if ids[0] != "2026-02-01_at-lower-bound" || ids[1] != "2026-02-28_day-before" {
		t.Errorf("ids = %v, want date-ordered window matches", ids)
	}
}

func TestCandidateIDsNoSignals(t *testing.T) {
	s := testStore(t)
	mustIndex(t, s, sampleArticle("2026-02-20_other", "2026-02-20"), sampleEntities())

	ids, err := s.CandidateIDs(context.Background(), "2026-03-01_target",
		"2026-02-01", "2026-03-01", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v for a target with no signals, want none", ids)
	}
}

func TestCandidateIDsDeduplicatesJoinRows(t *testing.T) {
	s := testStore(t)

	// One candidate matching on two CVEs and two entities must appear once.
	a := sampleArticle("2026-02-20_multi", "2026-02-20")
	a.CVEs = []types.CVE{{ID: "CVE-2026-1111"}, {ID: "CVE-2026-2222"}}
	mustIndex(t, s, a, sampleEntities())

	ids, err := s.CandidateIDs(context.Background(), "2026-03-01_target",
		"2026-02-01", "2026-03-01",
		[]string{"CVE-2026-1111", "CVE-2026-2222"}, []string{"lockbit", "microsoft"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("ids = %v, want the candidate exactly once", ids)
	}
}

func TestCandidateIDsRespectsWindowStart(t *testing.T) {
	s := testStore(t)

	for i := 0; i < 5; i++ {
		date := fmt.Sprintf("2026-01-%02d", 10+i)
		mustIndex(t, s, sampleArticle(date+"_a", date), nil)
	}

	ids, err := s.CandidateIDs(context.Background(), "2026-03-01_target",
		"2026-01-12", "2026-03-01", []string{"CVE-2026-1111"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Errorf("got %d candidates, want 3 on or after 2026-01-12", len(ids))
	}
}

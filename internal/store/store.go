// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the article signal index and the resolution trail
// in a SQLite database. It is the single shared handle of a run: opened once
// in the CLI, injected into the indexer and the resolution engine, closed at
// shutdown. All multi-row mutations run inside explicit transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jaybodecode/netsecops-dedup/internal/similarity"
	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

const dbFile = "dedup.db"

// Store manages the dedup SQLite database.
type Store struct {
	db       *sql.DB
	indexDir string
}

// Open opens or creates the database at indexDir/dedup.db, creating the
// schema if it does not exist.
func Open(indexDir string) (*Store, error) {
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(indexDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, indexDir: indexDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			publication_id TEXT,
			pub_date TEXT NOT NULL,
			slug TEXT NOT NULL,
			summary TEXT,
			report TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date)`,
		`CREATE TABLE IF NOT EXISTS article_cves (
			article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			cve_id TEXT NOT NULL,
			cvss REAL,
			severity TEXT,
			kev INTEGER NOT NULL DEFAULT 0,
			UNIQUE(article_id, cve_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_article_cves_cve_id ON article_cves(cve_id)`,
		`CREATE TABLE IF NOT EXISTS article_entities (
			article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			UNIQUE(article_id, name, type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_article_entities_name ON article_entities(name)`,
		`CREATE TABLE IF NOT EXISTS resolutions (
			article_id TEXT NOT NULL,
			pub_date TEXT NOT NULL,
			decision TEXT NOT NULL,
			confidence TEXT NOT NULL,
			similarity REAL NOT NULL,
			original_id TEXT NOT NULL DEFAULT '',
			original_date TEXT,
			original_slug TEXT,
			canonical_id TEXT,
			reasoning TEXT,
			method TEXT NOT NULL,
			new_information TEXT,
			overlap_summary TEXT,
			created_at TEXT NOT NULL,
			UNIQUE(article_id, original_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_pub_date ON resolutions(pub_date)`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_original_id ON resolutions(original_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IsIndexed reports whether the article already has an index record.
func (s *Store) IsIndexed(ctx context.Context, articleID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM articles WHERE id = ?`, articleID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking index for %s: %w", articleID, err)
	}
	return true, nil
}

// InsertArticle writes the article's meta row plus its CVE and entity rows in
// one transaction. Entities must already be normalized and filtered by the
// indexer. When replace is set, existing rows for the article are deleted
// first inside the same transaction, so a crash cannot leave a half re-index.
func (s *Store) InsertArticle(ctx context.Context, a types.Article, entities []types.Entity, replace bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		// Cascades to article_cves and article_entities.
		if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, a.ID); err != nil {
			return fmt.Errorf("deleting prior index rows for %s: %w", a.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO articles (id, publication_id, pub_date, slug, summary, report)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.PublicationID, a.Date(), a.Slug, a.Summary, a.Report,
	)
	if err != nil {
		return fmt.Errorf("inserting article %s: %w", a.ID, err)
	}

	cveStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO article_cves (article_id, cve_id, cvss, severity, kev)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing CVE insert: %w", err)
	}
	defer cveStmt.Close()

	for _, cve := range a.CVEs {
		var cvss any
		if cve.CVSSScore != nil {
			cvss = *cve.CVSSScore
		}
		if _, err := cveStmt.ExecContext(ctx, a.ID, cve.ID, cvss, cve.Severity, boolToInt(cve.KEV)); err != nil {
			return fmt.Errorf("inserting CVE %s for %s: %w", cve.ID, a.ID, err)
		}
	}

	entStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO article_entities (article_id, name, type) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entity insert: %w", err)
	}
	defer entStmt.Close()

	for _, ent := range entities {
		if _, err := entStmt.ExecContext(ctx, a.ID, ent.Name, string(ent.Type)); err != nil {
			return fmt.Errorf("inserting entity %q for %s: %w", ent.Name, a.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteArticleIndex removes the article's index record; CVE and entity rows
// go with it via cascade.
func (s *Store) DeleteArticleIndex(ctx context.Context, articleID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, articleID); err != nil {
		return fmt.Errorf("deleting index rows for %s: %w", articleID, err)
	}
	return nil
}

// Signals loads the comparison inputs of an indexed article: its CVE set,
// entity sets grouped by type, and the report text (summary fallback).
func (s *Store) Signals(ctx context.Context, articleID string) (*similarity.Signals, error) {
	sig := &similarity.Signals{
		ArticleID:    articleID,
		CVEs:         make(map[string]struct{}),
		ThreatActors: make(map[string]struct{}),
		Malware:      make(map[string]struct{}),
		Products:     make(map[string]struct{}),
		Companies:    make(map[string]struct{}),
		Agencies:     make(map[string]struct{}),
	}

	var summary, report string
	err := s.db.QueryRowContext(ctx,
		`SELECT pub_date, slug, summary, report FROM articles WHERE id = ?`, articleID,
	).Scan(&sig.Date, &sig.Slug, &summary, &report)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("article %s is not indexed", articleID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading article %s: %w", articleID, err)
	}
	sig.Text = report
	if sig.Text == "" {
		sig.Text = summary
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cve_id FROM article_cves WHERE article_id = ?`, articleID)
	if err != nil {
		return nil, fmt.Errorf("loading CVEs for %s: %w", articleID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var cveID string
		if err := rows.Scan(&cveID); err != nil {
			return nil, fmt.Errorf("scanning CVE row: %w", err)
		}
		sig.CVEs[cveID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entRows, err := s.db.QueryContext(ctx,
		`SELECT name, type FROM article_entities WHERE article_id = ?`, articleID)
	if err != nil {
		return nil, fmt.Errorf("loading entities for %s: %w", articleID, err)
	}
	defer entRows.Close()
	for entRows.Next() {
		var name, entType string
		if err := entRows.Scan(&name, &entType); err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		switch types.EntityType(entType) {
		case types.EntityThreatActor:
			sig.ThreatActors[name] = struct{}{}
		case types.EntityMalware:
			sig.Malware[name] = struct{}{}
		case types.EntityProduct:
			sig.Products[name] = struct{}{}
		case types.EntityCompany:
			sig.Companies[name] = struct{}{}
		case types.EntityGovernmentAgency:
			sig.Agencies[name] = struct{}{}
		}
	}
	return sig, entRows.Err()
}

// CandidateIDs returns indexed articles with pub_date in [fromDate, targetDate)
// that share at least one CVE id or entity name with the target, ordered by
// date then id so downstream processing is deterministic. The target itself is
// always excluded. With no CVE ids and no entity names the result is empty:
// an article sharing nothing has no plausible duplicates.
func (s *Store) CandidateIDs(ctx context.Context, targetID, fromDate, targetDate string, cveIDs, entityNames []string) ([]string, error) {
	if len(cveIDs) == 0 && len(entityNames) == 0 {
		return nil, nil
	}

	query, args, err := sq.Select("DISTINCT a.id", "a.pub_date").
		From("articles a").
		LeftJoin("article_cves c ON c.article_id = a.id").
		LeftJoin("article_entities e ON e.article_id = a.id").
		Where(sq.GtOrEq{"a.pub_date": fromDate}).
		Where(sq.Lt{"a.pub_date": targetDate}).
		Where(sq.NotEq{"a.id": targetID}).
		Where(sq.Or{sq.Eq{"c.cve_id": cveIDs}, sq.Eq{"e.name": entityNames}}).
		OrderBy("a.pub_date", "a.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building candidate query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, pubDate string
		if err := rows.Scan(&id, &pubDate); err != nil {
			return nil, fmt.Errorf("scanning candidate row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ArticleIDsByDate returns the ids of indexed articles for one date.
func (s *Store) ArticleIDsByDate(ctx context.Context, date string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM articles WHERE pub_date = ? ORDER BY id`, date)
	if err != nil {
		return nil, fmt.Errorf("querying articles for %s: %w", date, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning article id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

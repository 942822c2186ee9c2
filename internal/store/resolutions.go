// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// SaveResolution validates and inserts one resolution. A second insert for the
// same (article, original) pair fails on the unique constraint; re-resolving a
// date requires DeleteResolutionsByDate first.
func (s *Store) SaveResolution(ctx context.Context, r types.Resolution) error {
	if err := r.Validate(); err != nil {
		return err
	}

	originalID, originalDate, originalSlug := "", "", ""
	if r.Original != nil {
		originalID = r.Original.ID
		originalDate = r.Original.Date
		originalSlug = r.Original.Slug
	}

	var newInfoJSON any
	if len(r.NewInformation) > 0 {
		data, err := json.Marshal(r.NewInformation)
		if err != nil {
			return fmt.Errorf("marshaling new_information for %s: %w", r.ArticleID, err)
		}
		newInfoJSON = string(data)
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions (article_id, pub_date, decision, confidence, similarity,
			original_id, original_date, original_slug, canonical_id, reasoning, method,
			new_information, overlap_summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ArticleID, r.Date, string(r.Decision), string(r.Confidence), r.Similarity,
		originalID, originalDate, originalSlug, r.CanonicalID, r.Reasoning, string(r.Method),
		newInfoJSON, r.OverlapSummary, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving resolution for %s: %w", r.ArticleID, err)
	}
	return nil
}

// HasResolution reports whether any resolution exists for the article.
func (s *Store) HasResolution(ctx context.Context, articleID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM resolutions WHERE article_id = ? LIMIT 1`, articleID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking resolution for %s: %w", articleID, err)
	}
	return true, nil
}

// ResolutionsByArticle returns all resolutions recorded for one article.
func (s *Store) ResolutionsByArticle(ctx context.Context, articleID string) ([]types.Resolution, error) {
	return s.queryResolutions(ctx, sq.Eq{"article_id": articleID})
}

// ResolutionsByDate returns all resolutions for one publication date.
func (s *Store) ResolutionsByDate(ctx context.Context, date string) ([]types.Resolution, error) {
	return s.queryResolutions(ctx, sq.Eq{"pub_date": date})
}

// UpdatesReferencing returns the UPDATE resolutions pointing at the given
// original article, reconstructing its update chain.
func (s *Store) UpdatesReferencing(ctx context.Context, originalID string) ([]types.Resolution, error) {
	return s.queryResolutions(ctx, sq.And{
		sq.Eq{"decision": string(types.DecisionUpdate)},
		sq.Eq{"original_id": originalID},
	})
}

func (s *Store) queryResolutions(ctx context.Context, pred any) ([]types.Resolution, error) {
	query, args, err := sq.Select(
		"article_id", "pub_date", "decision", "confidence", "similarity",
		"original_id", "original_date", "original_slug", "canonical_id",
		"reasoning", "method", "new_information", "overlap_summary", "created_at").
		From("resolutions").
		Where(pred).
		OrderBy("pub_date", "article_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building resolution query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying resolutions: %w", err)
	}
	defer rows.Close()

	var results []types.Resolution
	for rows.Next() {
		r, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanResolution(rows *sql.Rows) (types.Resolution, error) {
	var (
		r            types.Resolution
		decision     string
		confidence   string
		method       string
		originalID   string
		originalDate sql.NullString
		originalSlug sql.NullString
		canonicalID  sql.NullString
		reasoning    sql.NullString
		newInfoJSON  sql.NullString
		overlap      sql.NullString
		createdAt    string
	)

	if err := rows.Scan(
		&r.ArticleID, &r.Date, &decision, &confidence, &r.Similarity,
		&originalID, &originalDate, &originalSlug, &canonicalID,
		&reasoning, &method, &newInfoJSON, &overlap, &createdAt,
	); err != nil {
		return types.Resolution{}, fmt.Errorf("scanning resolution row: %w", err)
	}

	r.Decision = types.Decision(decision)
	r.Confidence = types.Confidence(confidence)
	r.Method = types.Method(method)
	if originalID != "" {
		r.Original = &types.OriginalRef{
			ID:   originalID,
			Date: originalDate.String,
			Slug: originalSlug.String,
		}
	}
	if canonicalID.Valid {
		r.CanonicalID = canonicalID.String
	}
	if reasoning.Valid {
		r.Reasoning = reasoning.String
	}
	if newInfoJSON.Valid && newInfoJSON.String != "" {
		if err := json.Unmarshal([]byte(newInfoJSON.String), &r.NewInformation); err != nil {
			return types.Resolution{}, fmt.Errorf("decoding new_information for %s: %w", r.ArticleID, err)
		}
	}
	if overlap.Valid {
		r.OverlapSummary = overlap.String
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return types.Resolution{}, fmt.Errorf("parsing created_at for %s: %w", r.ArticleID, err)
	}
	r.CreatedAt = t
	return r, nil
}

// DeleteResolutionsByDate removes every resolution for one date in a single
// transaction, so force-reprocessing either clears the whole date or nothing.
func (s *Store) DeleteResolutionsByDate(ctx context.Context, date string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM resolutions WHERE pub_date = ?`, date)
	if err != nil {
		return 0, fmt.Errorf("deleting resolutions for %s: %w", date, err)
	}
	deleted, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete for %s: %w", date, err)
	}
	return deleted, nil
}

// DeleteResolutionsByArticle removes the resolutions of one article so it can
// be reprocessed without clearing the whole date.
func (s *Store) DeleteResolutionsByArticle(ctx context.Context, articleID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resolutions WHERE article_id = ?`, articleID)
	if err != nil {
		return 0, fmt.Errorf("deleting resolutions for %s: %w", articleID, err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// DecisionStats aggregates one decision's share of the resolution trail.
type DecisionStats struct {
	Count         int     `json:"count" yaml:"count"`
	AvgSimilarity float64 `json:"avg_similarity" yaml:"avg_similarity"`
}

// Stats summarizes the resolution trail for threshold tuning and audit.
type Stats struct {
	Total      int                      `json:"total" yaml:"total"`
	ByDecision map[string]DecisionStats `json:"by_decision" yaml:"by_decision"`
	ByMethod   map[string]int           `json:"by_method" yaml:"by_method"`
}

// ResolutionStats computes counts per decision and method plus the average
// similarity per decision. An empty date aggregates the full trail.
func (s *Store) ResolutionStats(ctx context.Context, date string) (Stats, error) {
	stats := Stats{
		ByDecision: make(map[string]DecisionStats),
		ByMethod:   make(map[string]int),
	}

	decisionQ := sq.Select("decision", "COUNT(*)", "AVG(similarity)").
		From("resolutions").
		GroupBy("decision")
	methodQ := sq.Select("method", "COUNT(*)").
		From("resolutions").
		GroupBy("method")
	if date != "" {
		decisionQ = decisionQ.Where(sq.Eq{"pub_date": date})
		methodQ = methodQ.Where(sq.Eq{"pub_date": date})
	}

	query, args, err := decisionQ.ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("building decision stats query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("querying decision stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var decision string
		var ds DecisionStats
		if err := rows.Scan(&decision, &ds.Count, &ds.AvgSimilarity); err != nil {
			return Stats{}, fmt.Errorf("scanning decision stats: %w", err)
		}
		stats.ByDecision[decision] = ds
		stats.Total += ds.Count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	query, args, err = methodQ.ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("building method stats query: %w", err)
	}
	mRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("querying method stats: %w", err)
	}
	defer mRows.Close()
	for mRows.Next() {
		var method string
		var count int
		if err := mRows.Scan(&method, &count); err != nil {
			return Stats{}, fmt.Errorf("scanning method stats: %w", err)
		}
		stats.ByMethod[method] = count
	}
	return stats, mRows.Err()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feed reads candidate articles from the directory the upstream
// generation process writes into: one JSON document per article.
package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// Loader scans an articles directory for upstream JSON documents.
type Loader struct {
	dir    string
	logger zerolog.Logger
}

// New returns a Loader over dir.
func New(dir string, logger zerolog.Logger) *Loader {
	return &Loader{dir: dir, logger: logger}
}

// LoadAll reads every article in the directory, ordered by publish date then
// id. Malformed or invalid files are logged and skipped; one bad record never
// aborts a batch.
func (l *Loader) LoadAll() ([]types.Article, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading articles directory %s: %w", l.dir, err)
	}

	var articles []types.Article
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		a, err := loadFile(path)
		if err != nil {
			l.logger.Warn().Str("file", entry.Name()).Err(err).Msg("skipping article file")
			continue
		}
		articles = append(articles, a)
	}

	sort.Slice(articles, func(i, j int) bool {
		if articles[i].Date() != articles[j].Date() {
			return articles[i].Date() < articles[j].Date()
		}
		return articles[i].ID < articles[j].ID
	})
	return articles, nil
}

// LoadRange returns the articles with publish date in [from, to], inclusive.
// Dates are YYYY-MM-DD.
func (l *Loader) LoadRange(from, to string) ([]types.Article, error) {
	all, err := l.LoadAll()
	if err != nil {
		return nil, err
	}

	var matched []types.Article
	for _, a := range all {
		if d := a.Date(); d >= from && d <= to {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// LoadByDate returns the articles published on one date.
func (l *Loader) LoadByDate(date string) ([]types.Article, error) {
	return l.LoadRange(date, date)
}

// LoadOne returns the article with the given id, or an error when the
// directory holds no such article.
func (l *Loader) LoadOne(id string) (types.Article, error) {
	all, err := l.LoadAll()
	if err != nil {
		return types.Article{}, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return types.Article{}, fmt.Errorf("article %s not found in %s", id, l.dir)
}

func loadFile(path string) (types.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Article{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var a types.Article
	if err := json.Unmarshal(data, &a); err != nil {
		return types.Article{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return types.Article{}, err
	}
	return a, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/jaybodecode/netsecops-dedup/pkg/types"
)

// ExportYAML writes the resolution trail to indexDir/resolutions.yaml for the
// publication assembler. An empty date exports everything.
func (s *Store) ExportYAML(ctx context.Context, date string) error {
	entries, err := s.exportEntries(ctx, date)
	if err != nil {
		return err
	}

	path := filepath.Join(s.indexDir, "resolutions.yaml")
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the resolution trail to indexDir/resolutions.json.
func (s *Store) ExportJSON(ctx context.Context, date string) error {
	entries, err := s.exportEntries(ctx, date)
	if err != nil {
		return err
	}

	path := filepath.Join(s.indexDir, "resolutions.json")
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context, date string) ([]types.Resolution, error) {
	if date != "" {
		return s.ResolutionsByDate(ctx, date)
	}
	return s.queryResolutions(ctx, nil)
}

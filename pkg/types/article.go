// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data contracts of the dedup engine:
// articles as delivered by the upstream generator, resolution records as
// consumed by the publication assembler, and run configuration.
package types

import (
	"fmt"
	"time"
)

// EntityType is a named-entity category extracted from an article.
// Only the closed set below is indexed; everything else upstream produces
// (person, technology, security_organization, other) is low-signal noise
// and is dropped before storage.
type EntityType string

const (
	EntityThreatActor      EntityType = "threat_actor"
	EntityMalware          EntityType = "malware"
	EntityProduct          EntityType = "product"
	EntityCompany          EntityType = "company"
	EntityGovernmentAgency EntityType = "government_agency"
)

// NormalizeEntityType maps a free-form upstream type string to an indexable
// EntityType. "vendor" folds into "company" so equivalent signals accumulate
// under one bucket. The second return is false for any type outside the
// allow-list; callers drop those silently.
func NormalizeEntityType(raw string) (EntityType, bool) {
	switch EntityType(raw) {
	case EntityThreatActor, EntityMalware, EntityProduct, EntityCompany, EntityGovernmentAgency:
		return EntityType(raw), true
	case "vendor":
		return EntityCompany, true
	default:
		return "", false
	}
}

// Entity is a named entity attached to an article by upstream extraction.
type Entity struct {
	Name string     `json:"name" yaml:"name"`
	Type EntityType `json:"type" yaml:"type"`
}

// CVE is one vulnerability reference attached to an article.
type CVE struct {
	// ID is the CVE identifier, e.g. "CVE-2025-1234".
	ID string `json:"id" yaml:"id"`

	// CVSSScore is the CVSS base score, when the upstream extractor found one.
	CVSSScore *float64 `json:"cvss_score,omitempty" yaml:"cvss_score,omitempty"`

	// Severity is the CVSS severity tier (e.g. "critical"), when known.
	Severity string `json:"severity,omitempty" yaml:"severity,omitempty"`

	// KEV reports whether the vulnerability is on a known-exploited list.
	KEV bool `json:"kev,omitempty" yaml:"kev,omitempty"`
}

// Article is one candidate article produced by the upstream generation
// process. The field names mirror the generator's JSON output.
type Article struct {
	ID            string    `json:"id" yaml:"id"`
	PublicationID string    `json:"publication_id" yaml:"publication_id"`
	Slug          string    `json:"slug" yaml:"slug"`
	PublishedAt   time.Time `json:"published_at" yaml:"published_at"`
	Summary       string    `json:"summary" yaml:"summary"`
	Report        string    `json:"report" yaml:"report"`
	CVEs          []CVE     `json:"cves" yaml:"cves"`
	Entities      []Entity  `json:"entities" yaml:"entities"`
}

// Date returns the article's publication date truncated to a calendar day,
// formatted YYYY-MM-DD. Window queries operate on this projection.
func (a Article) Date() string {
	return a.PublishedAt.UTC().Format("2006-01-02")
}

// Text returns the body used for trigram comparison: the full report, or the
// summary when no report was generated.
func (a Article) Text() string {
	if a.Report != "" {
		return a.Report
	}
	return a.Summary
}

// Validate checks the fields every pipeline stage depends on. A validation
// failure is recoverable: the batch skips the article and continues.
func (a Article) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("article has no id")
	}
	if a.Slug == "" {
		return fmt.Errorf("article %s has no slug", a.ID)
	}
	if a.PublishedAt.IsZero() {
		return fmt.Errorf("article %s has no publish date", a.ID)
	}
	if a.Summary == "" && a.Report == "" {
		return fmt.Errorf("article %s has neither summary nor report", a.ID)
	}
	return nil
}

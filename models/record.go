package models

import (
	"strings"
	"time"
)

// PaperRecord ist ein vom Such-Provider gelieferter, noch nicht persistierter Datensatz.
type PaperRecord struct {
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	Authors     []string  `json:"authors"`
	PublishedAt time.Time `json:"published_at"`
	Categories  []string  `json:"categories"`
	URL         string    `json:"url"`
}

// Validate prüft die Pflichtfelder eines externen Datensatzes.
func (r PaperRecord) Validate() error {
	if strings.TrimSpace(r.ExternalID) == "" {
		return &ValidationError{Field: "external_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if r.PublishedAt.IsZero() {
		return &ValidationError{Field: "published_at", Reason: "must be set"}
	}
	return nil
}

// ToPaper wandelt den Datensatz in das Datenbankmodell um. Zeitstempel werden nach UTC normalisiert.
func (r PaperRecord) ToPaper() *Paper {
	return &Paper{
		ArxivID:     strings.TrimSpace(r.ExternalID),
		Title:       strings.TrimSpace(r.Title),
		Abstract:    r.Abstract,
		Authors:     append([]string{}, r.Authors...),
		PublishedAt: r.PublishedAt.UTC(),
		Categories:  append([]string{}, r.Categories...),
		URL:         r.URL,
	}
}

package services

import (
	"context"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"
)

// Extractor liefert Entitäten zu einem Abstract.
type Extractor interface {
	Extract(ctx context.Context, abstract string) (*models.ExtractionResult, error)
}

// Classifier liefert Taxonomie-Tags zu einem Abstract.
type Classifier interface {
	Classify(ctx context.Context, abstract string) ([]models.TagSuggestion, error)
}

// Grouper gruppiert Entitätsnamen, die dasselbe Konzept bezeichnen.
type Grouper interface {
	Group(ctx context.Context, names []string) ([]models.CanonicalGroup, error)
}

// Summarizer schreibt den Digest-Text aus den aufbereiteten Trenddaten.
type Summarizer interface {
	Summarize(ctx context.Context, weekStart time.Time, rendered string) (string, error)
}

// Archiver legt Dateien extern ab und liefert einen Link.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

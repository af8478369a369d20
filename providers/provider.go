package providers

import (
	"context"

	"github.com/osmangurlek/arxiv-trend-radar/models"
)

// Provider ist das Interface, das jeder Such-Provider (z.B. arXiv) implementieren muss.
type Provider interface {
	// Search führt eine Suche für einen gegebenen Term durch und gibt höchstens max standardisierte Datensätze zurück.
	Search(ctx context.Context, query string, max int) ([]models.PaperRecord, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "arxiv").
	Name() string
}

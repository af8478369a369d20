package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"
)

type tagResponse struct {
	Tag        string  `json:"tag" jsonschema:"enum=Retrieval/RAG,enum=Agents/Tool Use,enum=Evaluation/Benchmarks,enum=Alignment/Safety,enum=Multimodal,enum=Systems/Optimization,enum=Other"`
	Confidence float64 `json:"confidence"`
}

type classificationResponse struct {
	Tags []tagResponse `json:"tags"`
}

type groupingResponse struct {
	Groups []models.CanonicalGroup `json:"groups"`
}

// Extract extrahiert Tasks, Datasets, Methoden und Bibliotheken aus einem Abstract.
func (c *Client) Extract(ctx context.Context, abstract string) (*models.ExtractionResult, error) {
	if strings.TrimSpace(abstract) == "" {
		return &models.ExtractionResult{}, nil
	}
	var out models.ExtractionResult
	err := c.completeJSON(ctx, completionRequest{
		model:       c.extractionModel,
		system:      extractionSystemPrompt,
		prompt:      fmt.Sprintf(extractionUserPrompt, abstract),
		temperature: 0,
	}, "paper_extraction", "Technical entities mentioned in a paper abstract", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Classify ordnet ein Abstract ein bis drei Taxonomie-Tags zu.
func (c *Client) Classify(ctx context.Context, abstract string) ([]models.TagSuggestion, error) {
	var out classificationResponse
	err := c.completeJSON(ctx, completionRequest{
		model:       c.classificationModel,
		prompt:      fmt.Sprintf(classificationPrompt, abstract),
		temperature: 0,
		maxTokens:   300,
	}, "paper_classification", "Taxonomy tags for a paper", &out)
	if err != nil {
		return nil, err
	}
	tags := make([]models.TagSuggestion, 0, len(out.Tags))
	for _, t := range out.Tags {
		tags = append(tags, models.TagSuggestion{Tag: strings.TrimSpace(t.Tag), Confidence: t.Confidence})
	}
	return tags, nil
}

// Group fasst Schreibvarianten derselben Entität zusammen.
func (c *Client) Group(ctx context.Context, names []string) ([]models.CanonicalGroup, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var b strings.Builder
	for _, n := range names {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteByte('\n')
	}
	var out groupingResponse
	err := c.completeJSON(ctx, completionRequest{
		model:       c.groupingModel,
		prompt:      fmt.Sprintf(groupingPrompt, b.String()),
		temperature: 0,
		maxTokens:   2000,
	}, "canonical_groups", "Groups of entity names that denote the same concept", &out)
	if err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// Summarize erzeugt das Markdown eines Wochen-Digests aus den aufbereiteten Trenddaten.
func (c *Client) Summarize(ctx context.Context, weekStart time.Time, rendered string) (string, error) {
	return c.complete(ctx, completionRequest{
		model:       c.digestModel,
		prompt:      fmt.Sprintf(digestPrompt, rendered, weekStart.Format("2006-01-02")),
		temperature: 0.3,
		maxTokens:   1200,
	}, nil)
}

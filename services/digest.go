package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"
	"github.com/osmangurlek/arxiv-trend-radar/storage"

	"go.uber.org/zap"
)

const digestSectionLimit = 10

// DigestService erzeugt Wochen-Digests aus den Trenddaten.
type DigestService struct {
	Analytics  *Analytics
	Relations  *storage.RelationshipStore
	Summarizer Summarizer
	// Archive ist optional; nil deaktiviert den Upload.
	Archive Archiver
	Retry   RetryPolicy
	Logger  *zap.Logger
}

// DigestInput sind die Trenddaten einer Woche.
type DigestInput struct {
	WeekStart      time.Time          `json:"week_start"`
	TopMethods     []EntityCount      `json:"top_methods"`
	FastestGrowing []EntityGrowth     `json:"fastest_growing"`
	Cooccurrence   []CooccurrenceEdge `json:"cooccurrence"`
	Categories     []CategoryCount    `json:"categories"`
}

// Assemble sammelt die Daten für den Digest der Woche ab weekStart.
func (d *DigestService) Assemble(ctx context.Context, weekStart time.Time) (*DigestInput, error) {
	in := &DigestInput{WeekStart: weekStart.UTC()}
	var err error
	if in.TopMethods, err = d.Analytics.TopEntitiesByWeek(ctx, in.WeekStart, models.EntityMethod, digestSectionLimit); err != nil {
		return nil, err
	}
	if in.FastestGrowing, err = d.Analytics.FastestGrowingEntities(ctx, models.EntityMethod); err != nil {
		return nil, err
	}
	if in.Cooccurrence, err = d.Analytics.EntityCooccurrenceEdges(ctx, models.EntityMethod, 7); err != nil {
		return nil, err
	}
	if len(in.Cooccurrence) > digestSectionLimit {
		in.Cooccurrence = in.Cooccurrence[:digestSectionLimit]
	}
	if in.Categories, err = d.Analytics.CategoryDistributionOverTime(ctx); err != nil {
		return nil, err
	}
	if len(in.Categories) > digestSectionLimit {
		in.Categories = in.Categories[:digestSectionLimit]
	}
	return in, nil
}

// Render formatiert die Daten als Aufzählungen für den Summarizer. Leere Abschnitte lauten "No data".
func Render(in *DigestInput) string {
	var b strings.Builder
	section := func(title string, lines []string) {
		b.WriteString("### ")
		b.WriteString(title)
		b.WriteString(":\n")
		if len(lines) == 0 {
			b.WriteString("No data\n")
		}
		for _, l := range lines {
			b.WriteString("- ")
			b.WriteString(l)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	var top, growth, cooc, cats []string
	for _, e := range in.TopMethods {
		top = append(top, fmt.Sprintf("%s: %d papers", e.Name, e.Count))
	}
	for _, e := range in.FastestGrowing {
		growth = append(growth, fmt.Sprintf("%s: %+d", e.Name, e.Growth))
	}
	for _, e := range in.Cooccurrence {
		cooc = append(cooc, fmt.Sprintf("%s + %s: %d papers", e.EntityA, e.EntityB, e.Count))
	}
	for _, c := range in.Categories {
		cats = append(cats, fmt.Sprintf("%s (week of %s): %d", c.Category, c.Week.Format("2006-01-02"), c.Count))
	}

	section("Top Entities (by paper count)", top)
	section("Fastest Growing Entities", growth)
	section("Entity Co-occurrence (what's used together)", cooc)
	section("Category Distribution", cats)
	return b.String()
}

// Generate erzeugt einen neuen Digest und speichert ihn. Frühere Digests bleiben erhalten.
func (d *DigestService) Generate(ctx context.Context, weekStart time.Time) (*models.Digest, error) {
	weekStart = weekStart.UTC()
	log := d.Logger.With(zap.String("week_start", weekStart.Format("2006-01-02")))

	in, err := d.Assemble(ctx, weekStart)
	if err != nil {
		return nil, fmt.Errorf("assemble digest: %w", err)
	}
	rendered := Render(in)

	content, err := Retry(ctx, withRetryMetric(d.Retry, "summarize"), func(ctx context.Context) (string, error) {
		return d.Summarizer.Summarize(ctx, weekStart, rendered)
	})
	if err != nil {
		log.Error("Digest-Erzeugung fehlgeschlagen", zap.Error(err))
		return nil, fmt.Errorf("summarize digest: %w", err)
	}

	digest := &models.Digest{
		WeekStart: weekStart,
		WeekEnd:   weekStart.Add(week),
		ContentMD: strings.TrimSpace(content),
	}
	if d.Archive != nil {
		key := fmt.Sprintf("digests/%s/%s.md", weekStart.Format("2006-01-02"), time.Now().UTC().Format("20060102T150405Z"))
		link, err := d.Archive.Put(ctx, key, []byte(digest.ContentMD))
		if err != nil {
			log.Warn("Digest archive upload failed", zap.Error(err))
		} else {
			digest.ArchiveURL = link
		}
	}

	if err := d.Relations.CreateDigest(ctx, digest); err != nil {
		return nil, err
	}
	digestsGeneratedCounter.Inc()
	log.Info("Digest generated", zap.Uint("digest_id", digest.ID), zap.String("archive_url", digest.ArchiveURL))
	return digest, nil
}

// Latest liefert den zuletzt erzeugten Digest.
func (d *DigestService) Latest(ctx context.Context) (*models.Digest, error) {
	return d.Relations.LatestDigest(ctx)
}

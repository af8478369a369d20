package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/osmangurlek/arxiv-trend-radar/models"
	"github.com/osmangurlek/arxiv-trend-radar/providers"
	"github.com/osmangurlek/arxiv-trend-radar/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// IngestionService holt Papers, reichert sie per Sprachmodell an und speichert alles in einer Transaktion.
type IngestionService struct {
	DB         *gorm.DB
	Entities   *storage.EntityStore
	Relations  *storage.RelationshipStore
	Provider   providers.Provider
	Extractor  Extractor
	Classifier Classifier
	Retry      RetryPolicy
	Logger     *zap.Logger

	// Concurrency begrenzt parallele Anreicherungen.
	Concurrency int
	// ReextractExisting reichert auch bereits gespeicherte Papers erneut an.
	ReextractExisting bool
}

// IngestReport fasst einen Ingestion-Lauf zusammen.
type IngestReport struct {
	Query       string `json:"query"`
	Fetched     int    `json:"fetched"`
	Valid       int    `json:"valid"`
	Stored      int    `json:"stored"`
	New         int    `json:"new"`
	Enriched    int    `json:"enriched"`
	EntityLinks int    `json:"entity_links"`
	TagLinks    int    `json:"tag_links"`
	BatchResult
}

type enrichedRecord struct {
	record     models.PaperRecord
	extraction *models.ExtractionResult
	tags       []models.TagSuggestion
	enrich     bool
	extractErr error
	classErr   error
}

// Ingest führt einen vollständigen Lauf für query aus. Ein Fehler der Suche bricht den Lauf ab;
// Fehler einzelner Papers landen im Report.
func (s *IngestionService) Ingest(ctx context.Context, query string, limit int) (*IngestReport, error) {
	log := s.Logger.With(zap.String("query", query), zap.String("provider", s.Provider.Name()))
	report := &IngestReport{Query: query}

	records, err := Retry(ctx, withRetryMetric(s.Retry, "search"), func(ctx context.Context) ([]models.PaperRecord, error) {
		return s.Provider.Search(ctx, query, limit)
	})
	if err != nil {
		log.Error("Provider-Suche fehlgeschlagen", zap.Error(err))
		return report, fmt.Errorf("search %q: %w", query, err)
	}
	report.Fetched = len(records)

	items := s.validate(records, report, log)
	report.Valid = len(items)
	if len(items) == 0 {
		log.Info("Keine gültigen Papers gefunden")
		return report, nil
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].record.ExternalID
	}
	existing, err := s.Relations.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return report, err
	}
	for i := range items {
		items[i].enrich = s.ReextractExisting || !existing[items[i].record.ExternalID]
	}

	if err := s.enrich(ctx, items); err != nil {
		return report, err
	}
	for i := range items {
		it := &items[i]
		if !it.enrich {
			continue
		}
		if it.extractErr == nil && it.classErr == nil {
			report.Enriched++
		}
		if it.extractErr != nil {
			report.fail(log, it.record.ExternalID, StageExtract, it.extractErr)
		}
		if it.classErr != nil {
			report.fail(log, it.record.ExternalID, StageClassify, it.classErr)
		}
	}

	if err := s.commit(ctx, items, report, log); err != nil {
		log.Error("Ingestion-Transaktion zurückgerollt", zap.Error(err))
		return report, err
	}

	papersIngestedCounter.Add(float64(report.New))
	entityLinksCounter.Add(float64(report.EntityLinks))
	log.Info("Ingestion abgeschlossen",
		zap.Int("fetched", report.Fetched),
		zap.Int("stored", report.Stored),
		zap.Int("new", report.New),
		zap.Int("entity_links", report.EntityLinks),
		zap.Int("tag_links", report.TagLinks),
		zap.Int("failures", report.FailureCount()))
	return report, nil
}

// validate prüft und bereinigt die Datensätze; Duplikate innerhalb des Batches werden zusammengefasst.
func (s *IngestionService) validate(records []models.PaperRecord, report *IngestReport, log *zap.Logger) []enrichedRecord {
	seen := make(map[string]bool, len(records))
	items := make([]enrichedRecord, 0, len(records))
	for i, rec := range records {
		rec.ExternalID = strings.TrimSpace(rec.ExternalID)
		rec.Title = CleanText(rec.Title)
		rec.Abstract = CleanText(rec.Abstract)
		if err := rec.Validate(); err != nil {
			item := rec.ExternalID
			if item == "" {
				item = fmt.Sprintf("#%d", i)
			}
			report.fail(log, item, StageValidate, err)
			continue
		}
		if seen[rec.ExternalID] {
			continue
		}
		seen[rec.ExternalID] = true
		items = append(items, enrichedRecord{record: rec})
	}
	return items
}

// enrich ruft Extraktion und Klassifikation parallel auf. Es ist keine Transaktion offen.
func (s *IngestionService) enrich(ctx context.Context, items []enrichedRecord) error {
	limit := s.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	extractPolicy := withRetryMetric(s.Retry, "extract")
	classifyPolicy := withRetryMetric(s.Retry, "classify")

	for i := range items {
		it := &items[i]
		if !it.enrich {
			continue
		}
		g.Go(func() error {
			abstract := it.record.Abstract
			it.extraction, it.extractErr = Retry(gctx, extractPolicy, func(ctx context.Context) (*models.ExtractionResult, error) {
				return s.Extractor.Extract(ctx, abstract)
			})
			if abstract != "" {
				it.tags, it.classErr = Retry(gctx, classifyPolicy, func(ctx context.Context) ([]models.TagSuggestion, error) {
					return s.Classifier.Classify(ctx, abstract)
				})
			}
			// nur Abbruch des Kontexts beendet den gesamten Lauf
			return ctx.Err()
		})
	}
	return g.Wait()
}

// commit schreibt alle Papers und Links in einer Transaktion.
func (s *IngestionService) commit(ctx context.Context, items []enrichedRecord, report *IngestReport, log *zap.Logger) error {
	var (
		stored, created, entityLinks, tagLinks int
		succeeded                              []string
		failures                               BatchResult
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ents := s.Entities.WithDB(tx)
		rels := s.Relations.WithDB(tx)

		for i := range items {
			it := &items[i]
			id := it.record.ExternalID
			paper, isNew, err := rels.UpsertPaper(ctx, it.record)
			if err != nil {
				if models.IsValidation(err) {
					failures.fail(log, id, StagePersist, err)
					continue
				}
				return err
			}
			stored++
			if isNew {
				created++
			}
			succeeded = append(succeeded, id)

			byType := it.extraction.ByType()
			for _, typ := range models.EntityTypes {
				for _, x := range byType[typ] {
					item := fmt.Sprintf("%s/%s:%s", id, typ, x.Name)
					if !models.ValidConfidence(x.Confidence) {
						failures.fail(log, item, StageResolve, &models.ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", x.Confidence)})
						continue
					}
					entity, _, err := ents.ResolveOrCreate(ctx, x.Name, typ)
					if err != nil {
						if models.IsValidation(err) {
							failures.fail(log, item, StageResolve, err)
							continue
						}
						return err
					}
					_, linked, err := rels.LinkPaperEntity(ctx, paper.ID, entity.ID, strings.TrimSpace(x.Evidence), x.Confidence)
					if err != nil {
						if models.IsValidation(err) {
							failures.fail(log, item, StageResolve, err)
							continue
						}
						return err
					}
					if linked {
						entityLinks++
					}
				}
			}

			tags, rejected := selectTags(it.tags)
			for _, r := range rejected {
				failures.fail(log, id+"/"+r.suggestion.Tag, StageLinkTag, r.err)
			}
			for _, t := range tags {
				_, linked, err := rels.LinkPaperTag(ctx, paper.ID, t.Tag, t.Confidence)
				if err != nil {
					if models.IsValidation(err) {
						failures.fail(log, id+"/"+t.Tag, StageLinkTag, err)
						continue
					}
					return err
				}
				if linked {
					tagLinks++
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit ingestion batch: %w", err)
	}

	report.Stored = stored
	report.New = created
	report.EntityLinks = entityLinks
	report.TagLinks = tagLinks
	report.Succeeded = append(report.Succeeded, succeeded...)
	report.Failures = append(report.Failures, failures.Failures...)
	return nil
}

type rejectedTag struct {
	suggestion models.TagSuggestion
	err        error
}

// selectTags behält höchstens MaxTagsPerPaper gültige Tags, höchste Konfidenz zuerst.
func selectTags(suggestions []models.TagSuggestion) ([]models.TagSuggestion, []rejectedTag) {
	var valid []models.TagSuggestion
	var rejected []rejectedTag
	seen := map[string]bool{}
	for _, t := range suggestions {
		switch {
		case !models.IsValidTag(t.Tag):
			rejected = append(rejected, rejectedTag{t, &models.ValidationError{Field: "tag", Reason: fmt.Sprintf("%q is not in the taxonomy", t.Tag)}})
		case !models.ValidConfidence(t.Confidence):
			rejected = append(rejected, rejectedTag{t, &models.ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", t.Confidence)}})
		case seen[t.Tag]:
		default:
			seen[t.Tag] = true
			valid = append(valid, t)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Confidence > valid[j].Confidence })
	if len(valid) > models.MaxTagsPerPaper {
		valid = valid[:models.MaxTagsPerPaper]
	}
	return valid, rejected
}

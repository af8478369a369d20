// Package app verdrahtet Konfiguration, Datenbank, Provider und Dienste für Server und CLI.
package app

import (
	"context"
	"fmt"

	"github.com/osmangurlek/arxiv-trend-radar/config"
	"github.com/osmangurlek/arxiv-trend-radar/llm"
	"github.com/osmangurlek/arxiv-trend-radar/providers/arxiv"
	"github.com/osmangurlek/arxiv-trend-radar/services"
	"github.com/osmangurlek/arxiv-trend-radar/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App bündelt alle Dienste eines Prozesses.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Logger    *zap.Logger
	Entities  *storage.EntityStore
	Relations *storage.RelationshipStore

	Ingestion    *services.IngestionService
	Canonicalize *services.Canonicalizer
	Analytics    *services.Analytics
	Digests      *services.DigestService
}

// RetryPolicy baut die Retry-Policy aus der Konfiguration.
func RetryPolicy(cfg *config.Config) services.RetryPolicy {
	p := services.DefaultRetryPolicy()
	if cfg.RetryMaxAttempts > 0 {
		p.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryBackoffUnit > 0 {
		p.Unit = cfg.RetryBackoffUnit
	}
	return p
}

// New öffnet die Datenbank und baut alle Dienste.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("Database ready", zap.String("driver", cfg.DBDriver))

	entities := storage.NewEntityStore(db)
	relations := storage.NewRelationshipStore(db)
	retry := RetryPolicy(cfg)
	client := llm.NewClient(cfg, logger)
	analytics := &services.Analytics{DB: db, Entities: entities}

	digests := &services.DigestService{
		Analytics:  analytics,
		Relations:  relations,
		Summarizer: client,
		Retry:      retry,
		Logger:     logger.Named("digest"),
	}
	archive, err := storage.NewArchive(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("digest archive: %w", err)
	}
	// ein nil-*Archive darf nicht im Interface landen
	if archive != nil {
		digests.Archive = archive
		logger.Info("Digest-Archiv aktiv", zap.String("bucket", cfg.S3Bucket))
	}

	return &App{
		Config:    cfg,
		DB:        db,
		Logger:    logger,
		Entities:  entities,
		Relations: relations,
		Ingestion: &services.IngestionService{
			DB:                db,
			Entities:          entities,
			Relations:         relations,
			Provider:          arxiv.NewFetcher(cfg, logger),
			Extractor:         client,
			Classifier:        client,
			Retry:             retry,
			Logger:            logger.Named("ingestion"),
			Concurrency:       cfg.IngestConcurrency,
			ReextractExisting: cfg.ReextractExisting,
		},
		Canonicalize: &services.Canonicalizer{
			DB:       db,
			Entities: entities,
			Grouper:  client,
			Retry:    retry,
			Logger:   logger.Named("canonicalize"),
		},
		Analytics: analytics,
		Digests:   digests,
	}, nil
}

// Close schließt die Datenbankverbindung.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

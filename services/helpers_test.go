package services

import (
	"context"
	"testing"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/models"
	"github.com/osmangurlek/arxiv-trend-radar/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	entities  *storage.EntityStore
	relations *storage.RelationshipStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &testEnv{
		db:        db,
		entities:  storage.NewEntityStore(db),
		relations: storage.NewRelationshipStore(db),
	}
}

// noSleep zeichnet Wartezeiten auf, ohne zu warten.
func noSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return ctx.Err()
	}
}

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Unit: 10 * time.Second, Sleep: noSleep(nil)}
}

// addPaper legt ein Paper an und verknüpft es mit Entitäten des Typs.
func (e *testEnv) addPaper(t *testing.T, id string, published time.Time, typ models.EntityType, names ...string) *models.Paper {
	t.Helper()
	ctx := context.Background()
	p, _, err := e.relations.UpsertPaper(ctx, models.PaperRecord{
		ExternalID:  id,
		Title:       "Paper " + id,
		Abstract:    "abstract",
		PublishedAt: published,
		Categories:  []string{"cs.CL"},
	})
	require.NoError(t, err)
	for _, n := range names {
		ent, _, err := e.entities.ResolveOrCreate(ctx, n, typ)
		require.NoError(t, err)
		_, _, err = e.relations.LinkPaperEntity(ctx, p.ID, ent.ID, "mentions "+n, 0.9)
		require.NoError(t, err)
	}
	return p
}

func (e *testEnv) analytics(now time.Time) *Analytics {
	return &Analytics{DB: e.db, Entities: e.entities, Now: func() time.Time { return now }}
}

var nopLogger = zap.NewNop()

func storageFilterAll() storage.PaperFilter {
	return storage.PaperFilter{Limit: 500}
}

func findPaper(t *testing.T, papers []models.Paper, arxivID string) models.Paper {
	t.Helper()
	for _, p := range papers {
		if p.ArxivID == arxivID {
			return p
		}
	}
	t.Fatalf("paper %s not found", arxivID)
	return models.Paper{}
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/app"
	"github.com/osmangurlek/arxiv-trend-radar/config"
	"github.com/osmangurlek/arxiv-trend-radar/models"
	"github.com/osmangurlek/arxiv-trend-radar/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingProvider wartet, bis der Kontext der Suche endet.
type blockingProvider struct {
	started chan struct{}
	done    chan error
}

func (p *blockingProvider) Name() string { return "blocking" }

func (p *blockingProvider) Search(ctx context.Context, query string, max int) ([]models.PaperRecord, error) {
	close(p.started)
	<-ctx.Done()
	p.done <- ctx.Err()
	return nil, ctx.Err()
}

func TestParseWeekStart(t *testing.T) {
	now := time.Date(2026, 1, 8, 15, 30, 0, 0, time.UTC) // Donnerstag

	got, err := parseWeekStart("2026-01-06", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), got)

	got, err = parseWeekStart("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), got)

	_, err = parseWeekStart("06.01.2026", now)
	assert.True(t, models.IsValidation(err))
}

func TestIngestRoute_CanceledWithProcessContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	provider := &blockingProvider{started: make(chan struct{}), done: make(chan error, 1)}
	radar := &app.App{
		Config: &config.Config{ArxivMaxResults: 5},
		Logger: zap.NewNop(),
		Ingestion: &services.IngestionService{
			Provider: provider,
			Retry:    services.DefaultRetryPolicy(),
			Logger:   zap.NewNop(),
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := gin.New()
	setupJobRoutes(ctx, router, radar)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"query":"rag"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case <-provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("ingest did not start")
	}
	cancel()
	select {
	case err := <-provider.done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ingest ignored shutdown")
	}
}

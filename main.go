package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/app"
	"github.com/osmangurlek/arxiv-trend-radar/config"
	"github.com/osmangurlek/arxiv-trend-radar/models"
	"github.com/osmangurlek/arxiv-trend-radar/services"
	"github.com/osmangurlek/arxiv-trend-radar/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var scheduledRunsCounter *prometheus.CounterVec

func init() {
	scheduledRunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_scheduled_runs_total",
			Help: "Total number of scheduled jobs by job and outcome.",
		},
		[]string{"job", "outcome"},
	)
	prometheus.MustRegister(scheduledRunsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	radar, err := app.New(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer radar.Close()

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := radar.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "arxiv-trend-radar"})
	})

	// Setup Routes
	setupPaperRoutes(router, radar)
	setupEntityRoutes(router, radar)
	setupTrendRoutes(router, radar)
	setupJobRoutes(ctx, router, radar)
	setupDigestRoutes(router, radar)

	// Setup Cron
	cronScheduler := cron.New()
	if _, err := cronScheduler.AddFunc(cfg.CronSchedule, func() { runScheduledIngest(ctx, radar) }); err != nil {
		logging.Fatal("Invalid CRON_SCHEDULE", zap.String("schedule", cfg.CronSchedule), zap.Error(err))
	}
	if _, err := cronScheduler.AddFunc(cfg.DigestCronSchedule, func() { runScheduledDigest(ctx, radar) }); err != nil {
		logging.Fatal("Invalid DIGEST_CRON_SCHEDULE", zap.String("schedule", cfg.DigestCronSchedule), zap.Error(err))
	}
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down server...")
	cronCtx := cronScheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
		logging.Warn("Laufende Cron-Jobs nicht rechtzeitig beendet")
	}
}

// runScheduledIngest holt alle konfigurierten Suchbegriffe und kanonisiert anschließend.
func runScheduledIngest(ctx context.Context, radar *app.App) {
	logging := radar.Logger
	logging.Info("Running scheduled ingest job...")
	for _, q := range radar.Config.Queries() {
		report, err := radar.Ingestion.Ingest(ctx, q, radar.Config.ArxivMaxResults)
		if err != nil {
			scheduledRunsCounter.WithLabelValues("ingest", "error").Inc()
			logging.Error("Cron ingest failed", zap.String("query", q), zap.Error(err))
			continue
		}
		scheduledRunsCounter.WithLabelValues("ingest", "ok").Inc()
		logging.Info("Cron ingest completed", zap.String("query", q), zap.Int("new_papers", report.New))
	}

	report, err := radar.Canonicalize.Run(ctx)
	if err != nil {
		scheduledRunsCounter.WithLabelValues("canonicalize", "error").Inc()
		logging.Error("Cron canonicalization failed", zap.Error(err))
		return
	}
	scheduledRunsCounter.WithLabelValues("canonicalize", "ok").Inc()
	logging.Info("Cron canonicalization completed", zap.Int("linked", len(report.Linked)), zap.Int("skipped", len(report.Skipped)))
}

// runScheduledDigest erzeugt den Digest der abgelaufenen Woche.
func runScheduledDigest(ctx context.Context, radar *app.App) {
	weekStart := services.WeekStart(time.Now()).AddDate(0, 0, -7)
	digest, err := radar.Digests.Generate(ctx, weekStart)
	if err != nil {
		scheduledRunsCounter.WithLabelValues("digest", "error").Inc()
		radar.Logger.Error("Cron digest failed", zap.Error(err))
		return
	}
	scheduledRunsCounter.WithLabelValues("digest", "ok").Inc()
	radar.Logger.Info("Cron digest completed", zap.Uint("digest_id", digest.ID))
}

// respondError bildet Domänenfehler auf HTTP-Status ab.
func respondError(c *gin.Context, log *zap.Logger, msg string, err error) {
	switch {
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &models.ValidationError{Field: name, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

func paramID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return uint(id), nil
}

// queryEntityType liest ?type=; leer bedeutet alle Typen.
func queryEntityType(c *gin.Context) (models.EntityType, error) {
	v := c.Query("type")
	if v == "" {
		return "", nil
	}
	return models.ParseEntityType(v)
}

// parseWeekStart liest den Fensterbeginn (YYYY-MM-DD, 00:00 UTC) unverändert.
// Ohne Angabe gilt der Montag der Woche von def.
func parseWeekStart(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return services.WeekStart(def), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, &models.ValidationError{Field: "week_start", Reason: "expected YYYY-MM-DD"}
	}
	return t.UTC(), nil
}

func setupPaperRoutes(router *gin.Engine, radar *app.App) {
	rg := router.Group("/papers")
	log := radar.Logger

	rg.GET("/", func(c *gin.Context) {
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		limit, err := queryInt(c, "limit", 50)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		papers, err := radar.Relations.ListPapers(c.Request.Context(), storage.PaperFilter{
			Category: c.Query("category"),
			Offset:   offset,
			Limit:    limit,
		})
		if err != nil {
			respondError(c, log, "database error", err)
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	// Paper samt Tags und verknüpften Entitäten
	rg.GET("/:id", func(c *gin.Context) {
		id, err := paramID(c)
		if err != nil {
			respondError(c, log, "invalid id", err)
			return
		}
		ctx := c.Request.Context()
		paper, err := radar.Relations.GetPaper(ctx, id)
		if err != nil {
			respondError(c, log, "database error", err)
			return
		}
		tags, err := radar.Relations.TagsForPaper(ctx, id)
		if err != nil {
			respondError(c, log, "database error", err)
			return
		}
		entities, err := radar.Relations.EntitiesForPaper(ctx, id)
		if err != nil {
			respondError(c, log, "database error", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"paper": paper, "tags": tags, "entities": entities})
	})
}

func setupEntityRoutes(router *gin.Engine, radar *app.App) {
	rg := router.Group("/entities")
	log := radar.Logger

	rg.GET("/", func(c *gin.Context) {
		typ, err := queryEntityType(c)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		limit, err := queryInt(c, "limit", 100)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		entities, err := radar.Entities.List(c.Request.Context(), storage.EntityFilter{
			Type:   typ,
			Search: c.Query("q"),
			Offset: offset,
			Limit:  limit,
		})
		if err != nil {
			respondError(c, log, "database error", err)
			return
		}
		c.JSON(http.StatusOK, entities)
	})

	rg.GET("/merges", func(c *gin.Context) {
		merges, err := radar.Analytics.CanonicalMergesReport(c.Request.Context())
		if err != nil {
			respondError(c, log, "database error", err)
			return
		}
		c.JSON(http.StatusOK, merges)
	})

	rg.GET("/:id/papers", func(c *gin.Context) {
		id, err := paramID(c)
		if err != nil {
			respondError(c, log, "invalid id", err)
			return
		}
		papers, err := radar.Analytics.PapersForEntity(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, "database error", err)
			return
		}
		c.JSON(http.StatusOK, papers)
	})
}

func setupTrendRoutes(router *gin.Engine, radar *app.App) {
	rg := router.Group("/trends")
	log := radar.Logger

	rg.GET("/week", func(c *gin.Context) {
		weekStart, err := parseWeekStart(c.Query("week_start"), time.Now())
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		typ, err := queryEntityType(c)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		limit, err := queryInt(c, "limit", 10)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		counts, err := radar.Analytics.TopEntitiesByWeek(c.Request.Context(), weekStart, typ, limit)
		if err != nil {
			respondError(c, log, "analytics query failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"week_start": weekStart, "entities": counts})
	})

	rg.GET("/growth", func(c *gin.Context) {
		typ, err := queryEntityType(c)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		growth, err := radar.Analytics.FastestGrowingEntities(c.Request.Context(), typ)
		if err != nil {
			respondError(c, log, "analytics query failed", err)
			return
		}
		c.JSON(http.StatusOK, growth)
	})

	rg.GET("/cooccurrence", func(c *gin.Context) {
		typ, err := queryEntityType(c)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		days, err := queryInt(c, "days", 30)
		if err != nil {
			respondError(c, log, "invalid query", err)
			return
		}
		edges, err := radar.Analytics.EntityCooccurrenceEdges(c.Request.Context(), typ, days)
		if err != nil {
			respondError(c, log, "analytics query failed", err)
			return
		}
		c.JSON(http.StatusOK, edges)
	})

	rg.GET("/categories", func(c *gin.Context) {
		counts, err := radar.Analytics.CategoryDistributionOverTime(c.Request.Context())
		if err != nil {
			respondError(c, log, "analytics query failed", err)
			return
		}
		c.JSON(http.StatusOK, counts)
	})
}

func setupJobRoutes(ctx context.Context, router *gin.Engine, radar *app.App) {
	log := radar.Logger

	// Ingestion läuft asynchron auf dem Prozess-Kontext; das Ergebnis steht im Log und in den Metriken.
	router.POST("/ingest", func(c *gin.Context) {
		var req struct {
			Query string `json:"query" binding:"required"`
			Limit int    `json:"limit"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'query' field is required."})
			return
		}
		if req.Limit <= 0 {
			req.Limit = radar.Config.ArxivMaxResults
		}
		go func() {
			report, err := radar.Ingestion.Ingest(ctx, req.Query, req.Limit)
			if err != nil {
				log.Error("Async ingest failed", zap.String("query", req.Query), zap.Error(err))
				return
			}
			log.Info("Async ingest completed", zap.String("query", req.Query), zap.Int("new_papers", report.New), zap.Int("failures", report.FailureCount()))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Ingestion triggered.", "query": req.Query, "limit": req.Limit})
	})

	router.POST("/canonicalize", func(c *gin.Context) {
		report, err := radar.Canonicalize.Run(c.Request.Context())
		if err != nil {
			respondError(c, log, "canonicalization failed", err)
			return
		}
		c.JSON(http.StatusOK, report)
	})
}

func setupDigestRoutes(router *gin.Engine, radar *app.App) {
	rg := router.Group("/digest")
	log := radar.Logger

	rg.POST("/generate", func(c *gin.Context) {
		var req struct {
			WeekStart string `json:"week_start"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		weekStart, err := parseWeekStart(req.WeekStart, time.Now())
		if err != nil {
			respondError(c, log, "invalid request", err)
			return
		}
		digest, err := radar.Digests.Generate(c.Request.Context(), weekStart)
		if err != nil {
			respondError(c, log, "digest generation failed", err)
			return
		}
		c.JSON(http.StatusCreated, digest)
	})

	rg.GET("/latest", func(c *gin.Context) {
		digest, err := radar.Digests.Latest(c.Request.Context())
		if err != nil {
			respondError(c, log, "database error", err)
			return
		}
		c.JSON(http.StatusOK, digest)
	})
}

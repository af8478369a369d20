package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	// postgres (Standard) oder sqlite für lokale Läufe
	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"radar.db"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"radar"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"arxiv_radar"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// OpenAI-kompatibler Endpunkt (Standard: OpenRouter)
	LLMAPIKey              string        `envconfig:"LLM_API_KEY"`
	LLMBaseURL             string        `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	LLMExtractionModel     string        `envconfig:"LLM_EXTRACTION_MODEL" default:"google/gemini-2.5-flash"`
	LLMClassificationModel string        `envconfig:"LLM_CLASSIFICATION_MODEL" default:"openai/gpt-4o-mini"`
	LLMGroupingModel       string        `envconfig:"LLM_GROUPING_MODEL" default:"openai/gpt-4o-mini"`
	LLMDigestModel         string        `envconfig:"LLM_DIGEST_MODEL" default:"openai/gpt-4o-mini"`
	LLMRequestsPerSecond   float64       `envconfig:"LLM_REQUESTS_PER_SECOND" default:"2"`
	LLMRequestTimeout      time.Duration `envconfig:"LLM_REQUEST_TIMEOUT" default:"120s"`

	ArxivBaseURL    string `envconfig:"ARXIV_BASE_URL" default:"https://export.arxiv.org/api/query"`
	ArxivMaxResults int    `envconfig:"ARXIV_MAX_RESULTS" default:"50"`

	IngestConcurrency int  `envconfig:"INGEST_CONCURRENCY" default:"4"`
	ReextractExisting bool `envconfig:"REEXTRACT_EXISTING" default:"false"`

	// Retry-Policy für externe Aufrufe: Versuch n wartet n * RetryBackoffUnit
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBackoffUnit time.Duration `envconfig:"RETRY_BACKOFF_UNIT" default:"10s"`

	CronSchedule       string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`
	CronQueries        string `envconfig:"CRON_QUERIES" default:"retrieval augmented generation,large language model agents"`
	DigestCronSchedule string `envconfig:"DIGEST_CRON_SCHEDULE" default:"0 6 * * 1"`

	// Optionales Digest-Archiv; leerer Bucket deaktiviert den Upload
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	// cmd/backup: Ziel-Bucket (gleicher Endpunkt) und Anzahl behaltener Backups
	BackupBucket string `envconfig:"BACKUP_S3_BUCKET"`
	KeepBackups  int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// Queries liefert die geplanten Suchbegriffe als bereinigte Liste.
func (c *Config) Queries() []string {
	var out []string
	for _, q := range strings.Split(c.CronQueries, ",") {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// ArchiveEnabled meldet, ob Digests zusätzlich nach S3 geschrieben werden.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != "" && c.S3URL != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

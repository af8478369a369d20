package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/config"
	"github.com/osmangurlek/arxiv-trend-radar/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const backupPrefix = "backups/"

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()
	logging.Info("Starte Backup-Prozess...")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}
	if cfg.BackupBucket == "" || cfg.S3URL == "" {
		logging.Fatal("BACKUP_S3_BUCKET und S3_URL müssen gesetzt sein")
	}
	ctx := context.Background()

	// 1. Datenbank-Dump erstellen
	dumpData, ext, err := createDump(ctx, cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des DB-Dumps", zap.Error(err))
	}

	// 2. S3-Client erstellen
	s3Client, err := storage.NewS3Client(ctx, cfg.S3URL, cfg.S3Region, cfg.S3Key, cfg.S3Secret)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}

	// 3. Backup nach S3 hochladen
	key := fmt.Sprintf("%sbackup-%s.%s.gz", backupPrefix, time.Now().UTC().Format("2006-01-02T15-04-05Z"), ext)
	if err := uploadToS3(ctx, s3Client, cfg.BackupBucket, key, dumpData); err != nil {
		logging.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logging.Info("Backup hochgeladen", zap.String("bucket", cfg.BackupBucket), zap.String("key", key), zap.Int("bytes", len(dumpData)))

	// 4. Alte Backups rotieren
	if err := rotateBackups(ctx, s3Client, cfg.BackupBucket, cfg.KeepBackups, logging); err != nil {
		logging.Fatal("Fehler bei der Rotation alter Backups", zap.Error(err))
	}

	logging.Info("Backup-Prozess erfolgreich abgeschlossen.")
}

// createDump liefert einen gzip-komprimierten Dump und die Dateiendung.
func createDump(ctx context.Context, cfg *config.Config) ([]byte, string, error) {
	if strings.EqualFold(cfg.DBDriver, "sqlite") {
		f, err := os.Open(cfg.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := gzipFrom(f)
		return data, "sqlite", err
	}

	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", fmt.Sprint(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // Passwort wird über PGPASSWORD bereitgestellt
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.DBPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, "", err
	}
	if err := cmd.Start(); err != nil {
		return nil, "", err
	}
	data, err := gzipFrom(stdout)
	if err != nil {
		return nil, "", err
	}
	if err := cmd.Wait(); err != nil {
		return nil, "", err
	}
	return data, "sql", nil
}

func gzipFrom(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, r); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func uploadToS3(ctx context.Context, client *s3.Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func rotateBackups(ctx context.Context, client *s3.Client, bucket string, keep int, logging *zap.Logger) error {
	output, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(backupPrefix),
	})
	if err != nil {
		return err
	}

	if len(output.Contents) <= keep {
		logging.Info("Keine Rotation nötig", zap.Int("backups", len(output.Contents)), zap.Int("keep", keep))
		return nil
	}

	sort.Slice(output.Contents, func(i, j int) bool {
		return output.Contents[i].LastModified.After(*output.Contents[j].LastModified)
	})

	for _, obj := range output.Contents[keep:] {
		logging.Info("Lösche altes Backup", zap.String("key", *obj.Key))
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    obj.Key,
		})
		if err != nil {
			logging.Warn("Fehler beim Löschen", zap.String("key", *obj.Key), zap.Error(err))
		}
	}
	return nil
}

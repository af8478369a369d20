package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/osmangurlek/arxiv-trend-radar/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive legt Digest-Markdown in einem S3-kompatiblen Bucket ab.
type Archive struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(ctx context.Context, endpoint, region, key, secret string) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, r string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               endpoint,
				SigningRegion:     region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

// NewArchive baut das Archiv aus der Konfiguration. Ohne Bucket wird nil zurückgegeben.
func NewArchive(ctx context.Context, cfg *config.Config) (*Archive, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}
	client, err := NewS3Client(ctx, cfg.S3URL, cfg.S3Region, cfg.S3Key, cfg.S3Secret)
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Archive{client: client, bucket: cfg.S3Bucket, baseURL: strings.TrimRight(cfg.S3URL, "/")}, nil
}

// Put lädt data unter key hoch und gibt den Link zurück.
func (a *Archive) Put(ctx context.Context, key string, data []byte) (string, error) {
	contentType := "text/markdown; charset=utf-8"
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", a.baseURL, a.bucket, key), nil
}

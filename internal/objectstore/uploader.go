// Package objectstore uploads composited images to an S3-compatible bucket
// (Cloudflare R2) so published posts can reference a public URL.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bilgisen/newsroom/internal/config"
	"github.com/bilgisen/newsroom/internal/logger"
)

const keyPrefix = "news"

// Config configures an Uploader
type Config struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Bucket      string
	PublicURL   string
	Region      string
	MaxAttempts int
}

// FromAppConfig extracts the R2 settings. ok is false when no endpoint is
// configured and images should stay local.
func FromAppConfig(cfg *config.Config) (Config, bool) {
	if cfg.R2Endpoint == "" {
		return Config{}, false
	}
	return Config{
		Endpoint:  cfg.R2Endpoint,
		AccessKey: cfg.R2AccessKey,
		SecretKey: cfg.R2SecretKey,
		Bucket:    cfg.R2Bucket,
		PublicURL: cfg.R2PublicURL,
	}, true
}

// Uploader puts local files into a bucket
type Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	if cfg.Region == "" {
		// R2 ignores the region but SigV4 needs one
		cfg.Region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load object store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	logger.Get().Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.Bucket).
		Msg("Object store uploader initialized")

	return &Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		now:       time.Now,
	}, nil
}

// Upload stores the file under news/YYYY/MM/DD/<name> and returns its
// public URL.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	key := u.objectKey(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	logger.Get().Debug().
		Str("object_key", key).
		Int("size", len(data)).
		Msg("Uploaded image")

	return u.publicURL + "/" + key, nil
}

func (u *Uploader) objectKey(localPath string) string {
	return strings.Join([]string{
		keyPrefix,
		u.now().UTC().Format("2006/01/02"),
		filepath.Base(localPath),
	}, "/")
}

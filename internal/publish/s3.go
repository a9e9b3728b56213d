// Package publish uploads rendered maps to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/agentic-research/mapmaker/internal/config"
	"github.com/agentic-research/mapmaker/internal/logging"
)

// Prefix is prepended to every object key.
const Prefix = "maps"

// Publisher puts artifacts into one bucket, creating it on first use.
type Publisher struct {
	client *minio.Client
	bucket string
	region string
	log    *zap.Logger

	initOnce sync.Once
	initErr  error
}

// New validates cfg and builds a client. No network traffic happens until
// the first Publish.
func New(cfg config.S3Settings, log *zap.Logger) (*Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required (MAPMAKER_S3_ENDPOINT)")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required (MAPMAKER_S3_BUCKET)")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &Publisher{client: client, bucket: bucket, region: region, log: logging.OrNop(log)}, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads content under ObjectKey(name) and returns its s3:// URL.
func (p *Publisher) Publish(ctx context.Context, name string, content []byte) (string, error) {
	key, err := ObjectKey(name)
	if err != nil {
		return "", err
	}
	if err := p.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", p.bucket, err)
	}
	_, err = p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: ContentType(name)})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	url := "s3://" + p.bucket + "/" + key
	p.log.Info("Published", zap.String("url", url), zap.Int("bytes", len(content)))
	return url, nil
}

// ObjectKey maps an artifact's file name to its key in the bucket.
func ObjectKey(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return Prefix + "/" + base, nil
}

// ContentType guesses the MIME type from the artifact's extension.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

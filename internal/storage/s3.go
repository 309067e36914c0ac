package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/pkg/config"
	"github.com/andyscpalmer/atproto-scheduler/pkg/logging"
	"github.com/andyscpalmer/atproto-scheduler/pkg/telemetry"
)

// ImageStore fetches post images from an S3 bucket. Paths stored on posts
// are object keys within the configured bucket.
type ImageStore struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewImageStore builds an S3-backed image store from config. Static
// credentials are used when configured, otherwise the default AWS chain.
func NewImageStore(ctx context.Context, cfg *config.Config) (*ImageStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.Region),
	}
	if cfg.Storage.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &ImageStore{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Storage.Bucket,
		logger: logging.WithComponent("storage"),
	}, nil
}

// GetImage downloads the object at key and returns its bytes.
func (s *ImageStore) GetImage(ctx context.Context, key string) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "storage.get_image")
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.Debug("Fetched image",
		zap.String("key", key),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

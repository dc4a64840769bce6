// Package storage keeps copies of uploaded export documents in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	infraconfig "github.com/marketsync/backend/internal/infrastructure/config"
)

var _ catalog.Archiver = (*S3Archiver)(nil)

// objectPutter is the part of the S3 client used by the archiver
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads export documents to an S3-compatible bucket.
// Objects are keyed <prefix>/<content type>/<connection id>/<file name>.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ArchiverOption is a functional option for configuring S3Archiver
type S3ArchiverOption func(*S3Archiver)

// WithLogger sets a custom logger for S3Archiver
func WithLogger(logger *zap.Logger) S3ArchiverOption {
	return func(a *S3Archiver) {
		a.logger = logger
	}
}

// NewS3Archiver creates a new S3Archiver from configuration.
// It supports any S3-compatible storage backend (AWS S3, MinIO, etc.)
func NewS3Archiver(cfg *infraconfig.StorageConfig, opts ...S3ArchiverOption) (*S3Archiver, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	return newS3Archiver(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string, opts ...S3ArchiverOption) *S3Archiver {
	a := &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ObjectKey returns the key an artifact is archived under
func (a *S3Archiver) ObjectKey(contentType catalog.ContentType, connectionID int64, filePath string) string {
	return path.Join(a.prefix, string(contentType), fmt.Sprintf("%d", connectionID), filepath.Base(filePath))
}

// Archive uploads the artifact at filePath
func (a *S3Archiver) Archive(ctx context.Context, contentType catalog.ContentType, connectionID int64, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	key := a.ObjectKey(contentType, connectionID, filePath)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(a.bucket),
		Key:          aws.String(key),
		Body:         f,
		ContentType:  aws.String("application/xml"),
		StorageClass: types.StorageClassStandardIa,
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	a.logger.Debug("Artifact archived.",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
	)
	return nil
}

// GetBucket returns the bucket name
func (a *S3Archiver) GetBucket() string {
	return a.bucket
}

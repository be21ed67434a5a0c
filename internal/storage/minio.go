// Package storage adapts an S3-compatible object store to the blob
// operations the upload and delete flows need.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/uptube/content-ingestion-go/internal/db/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Config holds object store connection settings.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
	UseSSL        bool
}

// UploadResult describes a stored blob. DurationSeconds is set only when the
// store itself reports media length.
type UploadResult struct {
	Ref             models.BlobRef
	DurationSeconds *float64
}

// MinioStore stores blobs in a single bucket, one object per upload.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
	logger  *zap.Logger
}

// NewMinioStore creates a MinioStore. It does not contact the server.
func NewMinioStore(cfg Config, logger *zap.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store configuration is incomplete")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store client: %w", err)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("storage"),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Upload stores the file at localPath under a fresh key.
func (s *MinioStore) Upload(ctx context.Context, localPath string, kind models.ResourceKind) (UploadResult, error) {
	key := objectKey(kind, localPath)

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"resource-kind": string(kind),
		},
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to put object: %w", err)
	}

	s.logger.Debug("blob uploaded",
		zap.String("key", key),
		zap.Int64("size", info.Size),
		zap.String("content_type", contentType),
	)

	return UploadResult{
		Ref: models.BlobRef{
			Locator:      s.locator(key),
			ExternalID:   key,
			ResourceKind: kind,
		},
	}, nil
}

// Delete removes the blob. Deleting a missing object succeeds.
func (s *MinioStore) Delete(ctx context.Context, ref models.BlobRef) error {
	if ref.ExternalID == "" {
		return fmt.Errorf("blob external id is empty")
	}

	if err := s.client.RemoveObject(ctx, s.bucket, ref.ExternalID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", ref.ExternalID, err)
	}

	s.logger.Debug("blob deleted", zap.String("key", ref.ExternalID))
	return nil
}

// Ping checks that the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("object store unreachable: %w", err)
	}
	return nil
}

func (s *MinioStore) locator(key string) string {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return s.baseURL + "/" + key
	}
	u.Path = path.Join(u.Path, key)
	return u.String()
}

func objectKey(kind models.ResourceKind, localPath string) string {
	prefix := "videos"
	if kind == models.ResourceImage {
		prefix = "images"
	}
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), strings.ToLower(filepath.Ext(localPath)))
}

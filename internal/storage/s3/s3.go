package s3

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"trailWatch/internal/config"
	"trailWatch/pkg/e"
)

// BlobStore is the object-storage surface the photo pipeline needs:
// put a blob under a key, drop it by key, derive its public URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, content io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  *slog.Logger
}

func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Error("Failed to create object store client", slog.String("error", err.Error()))
		return nil, e.Wrap("storage.s3.NewStore", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(pingCtx, cfg.Storage.Bucket)
	if err != nil {
		logger.Error("Failed to check bucket", slog.String("error", err.Error()), slog.String("bucket", cfg.Storage.Bucket))
		return nil, e.Wrap("storage.s3.NewStore.BucketExists", err)
	}
	if !exists {
		if err := client.MakeBucket(pingCtx, cfg.Storage.Bucket, minio.MakeBucketOptions{}); err != nil {
			logger.Error("Failed to create bucket", slog.String("error", err.Error()), slog.String("bucket", cfg.Storage.Bucket))
			return nil, e.Wrap("storage.s3.NewStore.MakeBucket", err)
		}
	}
	logger.Info("Connected to object storage", slog.String("bucket", cfg.Storage.Bucket))

	return &Store{
		client:  client,
		bucket:  cfg.Storage.Bucket,
		baseURL: cfg.Storage.BaseURL,
		logger:  logger,
	}, nil
}

func (s *Store) Upload(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	const op = "storage.s3.Upload"

	_, err := s.client.PutObject(ctx, s.bucket, key, content, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("object upload failed", slog.String("op", op), slog.String("key", key), slog.Any("error", err))
		return e.Wrap(op, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	const op = "storage.s3.Delete"

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("object delete failed", slog.String("op", op), slog.String("key", key), slog.Any("error", err))
		return e.Wrap(op, err)
	}
	return nil
}

func (s *Store) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

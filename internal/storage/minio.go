package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	// PublicBaseURL overrides the endpoint when building public URLs.
	PublicBaseURL string
}

// MinioStore keeps objects in an S3-compatible bucket.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinioStore connects to the endpoint and creates the bucket if needed.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{ //nolint:exhaustruct // only auth and transport are set
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil { //nolint:exhaustruct // defaults
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}

		slog.Info("created storage bucket", "bucket", cfg.Bucket)
	}

	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		publicBase = client.EndpointURL().String()
	}

	return &MinioStore{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (s *MinioStore) Bucket() string {
	return s.bucket
}

func (s *MinioStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ //nolint:exhaustruct // only content headers are set
			ContentType:  contentType,
			CacheControl: cacheControl,
		})
	if err != nil {
		return fmt.Errorf("failed to upload %q: %w", path, err)
	}

	return nil
}

func (s *MinioStore) Download(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{}) //nolint:exhaustruct // defaults
	if err != nil {
		return nil, s.wrapErr(path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrapErr(path, err)
	}

	return data, nil
}

func (s *MinioStore) Remove(ctx context.Context, paths ...string) ([]string, error) {
	removed := make([]string, 0, len(paths))

	var errs []error

	for _, p := range paths {
		if err := s.client.RemoveObject(ctx, s.bucket, p, minio.RemoveObjectOptions{}); err != nil { //nolint:exhaustruct // defaults
			errs = append(errs, fmt.Errorf("failed to remove %q: %w", p, err))
			continue
		}

		removed = append(removed, p)
	}

	return removed, errors.Join(errs...)
}

func (s *MinioStore) PublicURL(path string) string {
	return s.publicBase + "/" + s.bucket + "/" + escapePath(path)
}

func (s *MinioStore) wrapErr(path string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, path)
	}

	return fmt.Errorf("failed to download %q: %w", path, err)
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	return strings.Join(parts, "/")
}

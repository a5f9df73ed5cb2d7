package artifact

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	dErrors "sevagate/pkg/domain-errors"
)

// MinioConfig carries the connection settings for the object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore stores artifact bytes in a minio (or S3-compatible) bucket.
// Object names are deterministic per document, so PutObject naturally
// overwrites the previous artifact on re-upload.
type MinioStore struct {
	client *minio.Client
	bucket string
	useSSL bool
	host   string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		useSSL: cfg.UseSSL,
		host:   cfg.Endpoint,
	}, nil
}

// EnsureBucket creates the configured bucket if it does not exist yet. Called
// once at startup.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, objectName string, upload Upload) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, upload.Content, upload.Size, minio.PutObjectOptions{
		ContentType: upload.ContentType,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "store artifact")
	}
	return s.publicURL(objectName), nil
}

// Fetch streams a stored artifact back out, for export bundles.
func (s *MinioStore) Fetch(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fetch artifact")
	}
	return obj, nil
}

func (s *MinioStore) publicURL(objectName string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.host, s.bucket, objectName)
}

package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig configures an S3-compatible endpoint.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOStore stores blobs in a MinIO (or any S3-compatible) bucket.
// It is safe for concurrent use by multiple goroutines.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects to the endpoint and creates the bucket when missing.
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, storeError("connect", cfg.Endpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, storeError("check bucket", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, storeError("create bucket", cfg.Bucket, err)
		}
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIOStore) Upload(ctx context.Context, data []byte) (string, error) {
	address := Address(data)
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		address,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", storeError("upload", address, err)
	}
	return address, nil
}

func (s *MinIOStore) Fetch(ctx context.Context, address string) ([]byte, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, address, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError("fetch", address, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, minioError("fetch", address, err)
	}
	return data, nil
}

func (s *MinIOStore) Unpin(ctx context.Context, address string) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}
	// RemoveObject succeeds for missing keys.
	if err := s.client.RemoveObject(ctx, s.bucket, address, minio.RemoveObjectOptions{}); err != nil {
		return storeError("unpin", address, err)
	}
	return nil
}

// Close is a no-op; the MinIO client holds no resources that need releasing.
func (s *MinIOStore) Close() error {
	return nil
}

func minioError(op, address string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrBlobNotFound
	}
	return storeError(op, address, err)
}

package blobstore

import (
	"context"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

const contentType = "application/octet-stream"

// BucketStore stores blobs in a gocloud.dev bucket. The bucket URL selects the backend:
// mem://, file:///path, s3://bucket?region=..., gs://bucket or azblob://container.
type BucketStore struct {
	bucket *blob.Bucket
}

// OpenBucketStore opens the bucket at url.
func OpenBucketStore(ctx context.Context, url string) (*BucketStore, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, storeError("open", url, err)
	}
	return &BucketStore{bucket: bucket}, nil
}

// NewBucketStore wraps an already opened bucket.
func NewBucketStore(bucket *blob.Bucket) *BucketStore {
	return &BucketStore{bucket: bucket}
}

func (s *BucketStore) Upload(ctx context.Context, data []byte) (string, error) {
	address := Address(data)

	exists, err := s.bucket.Exists(ctx, address)
	if err != nil {
		return "", storeError("upload", address, err)
	}
	if exists {
		return address, nil
	}

	if err := s.bucket.WriteAll(ctx, address, data, &blob.WriterOptions{ContentType: contentType}); err != nil {
		return "", storeError("upload", address, err)
	}
	return address, nil
}

func (s *BucketStore) Fetch(ctx context.Context, address string) ([]byte, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	data, err := s.bucket.ReadAll(ctx, address)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrBlobNotFound
		}
		return nil, storeError("fetch", address, err)
	}
	return data, nil
}

func (s *BucketStore) Unpin(ctx context.Context, address string) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}
	if err := s.bucket.Delete(ctx, address); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return storeError("unpin", address, err)
	}
	return nil
}

func (s *BucketStore) Close() error {
	return s.bucket.Close()
}

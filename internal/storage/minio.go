package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinIO stores objects in one bucket of an S3-compatible server.
type MinIO struct {
	client *minio.Client
	bucket string
}

func NewMinIO(client *minio.Client, bucket string) *MinIO {
	return &MinIO{client: client, bucket: bucket}
}

func (m *MinIO) Put(ctx context.Context, key string, data []byte, mediaType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mediaType,
	})
	if err != nil {
		return fmt.Errorf("minio put object failed: %w", err)
	}
	return nil
}

func (m *MinIO) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object failed: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("minio read object failed: %w", err)
	}
	return data, nil
}

func (m *MinIO) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove object failed: %w", err)
	}
	return nil
}

func (m *MinIO) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := checkScopePrefix(prefix); err != nil {
		return 0, err
	}
	objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	toRemove := make(chan minio.ObjectInfo)
	listErr := make(chan error, 1)
	count := 0
	go func() {
		defer close(toRemove)
		for obj := range objects {
			if obj.Err != nil {
				listErr <- obj.Err
				return
			}
			count++
			toRemove <- obj
		}
		listErr <- nil
	}()

	var removeErr error
	for res := range m.client.RemoveObjects(ctx, m.bucket, toRemove, minio.RemoveObjectsOptions{}) {
		if res.Err != nil && removeErr == nil {
			removeErr = res.Err
		}
	}
	if err := <-listErr; err != nil {
		return 0, fmt.Errorf("minio list objects failed: %w", err)
	}
	if removeErr != nil {
		return 0, fmt.Errorf("minio remove objects failed: %w", removeErr)
	}
	return count, nil
}

// Package objectstore wraps the MinIO client behind the narrow byte-store
// interface the pipeline consumes: buckets and keys, nothing else.
package objectstore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

type Store struct {
	client *minio.Client
}

func New(client *minio.Client) *Store {
	return &Store{client: client}
}

// EnsureBucket creates bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	found, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func (s *Store) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

// FGet downloads an object to a local file, creating parent directories.
func (s *Store) FGet(ctx context.Context, bucket, key, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return s.client.FGetObject(ctx, bucket, key, path, minio.GetObjectOptions{})
}

func (s *Store) FPut(ctx context.Context, bucket, key, path, contentType string) error {
	_, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// UploadDir publishes every regular file under localDir at prefix/<relpath>.
func (s *Store) UploadDir(ctx context.Context, bucket, prefix, localDir string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relativePath, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}

		objectName := filepath.Join(prefix, relativePath)
		objectName = strings.ReplaceAll(objectName, "\\", "/")

		_, uploadErr := s.client.FPutObject(ctx, bucket, objectName, path, minio.PutObjectOptions{})
		return uploadErr
	})
}

// PresignGet issues a time-limited credential-free GET URL for one object.
func (s *Store) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (*url.URL, error) {
	return s.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
}

// Package gcs stores failure snapshots in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config selects the bucket and an optional object key prefix.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore uploads snapshots to a bucket. Objects under
// snapshots/<retailer>/<digest>.html carry retailer and digest metadata so
// they can be filtered without downloading.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// PutObject uploads data and returns its gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("path is required")
	}
	name := s.objectName(key)
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	writer.Metadata = snapshotMetadata(key)

	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("upload snapshot %s: %w (close writer: %v)", name, err, closeErr)
		}
		return "", fmt.Errorf("upload snapshot %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize snapshot %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

func (s *BlobStore) objectName(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// snapshotMetadata derives object metadata from snapshots/<retailer>/<digest>.<ext>.
func snapshotMetadata(key string) map[string]string {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 3 || parts[0] != "snapshots" || parts[1] == "" {
		return nil
	}
	digest := strings.TrimSuffix(parts[2], path.Ext(parts[2]))
	if digest == "" {
		return nil
	}
	return map[string]string{"retailer": parts[1], "digest": digest}
}

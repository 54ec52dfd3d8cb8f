package storage

import (
	"context"
	"errors"
	"fmt"

	gcsapi "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/seapigy/procuro-site-sub000/internal/storage/gcs"
)

// GCSClientFactory creates storage clients. Tests inject one pointed at a fake endpoint.
type GCSClientFactory interface {
	NewClient(ctx context.Context) (*gcsapi.Client, error)
}

// DefaultGCSClientFactory authenticates with Application Default Credentials
// plus any extra options.
type DefaultGCSClientFactory struct {
	Options []option.ClientOption
}

// NewClient implements GCSClientFactory.
func (f DefaultGCSClientFactory) NewClient(ctx context.Context) (*gcsapi.Client, error) {
	return gcsapi.NewClient(ctx, f.Options...)
}

// GCSProvider owns the client behind a GCS-backed snapshot store.
type GCSProvider struct {
	Client *gcsapi.Client
	Store  *gcs.BlobStore
}

// NewGCSProvider creates a client and verifies the bucket is reachable so a
// misconfiguration fails at startup instead of on the first snapshot.
func NewGCSProvider(ctx context.Context, bucketName, prefix string, factory GCSClientFactory, logger *zap.Logger) (*GCSProvider, error) {
	if bucketName == "" {
		return nil, errors.New("snapshot bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := factory.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("Failed to close GCS client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to get GCS bucket '%s' attributes: %w", bucketName, err)
	}
	store, err := gcs.New(client, gcs.Config{Bucket: bucketName, Prefix: prefix})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &GCSProvider{Client: client, Store: store}, nil
}

// Close releases the underlying client.
func (g *GCSProvider) Close() error {
	if err := g.Client.Close(); err != nil {
		return fmt.Errorf("close GCS client: %w", err)
	}
	return nil
}

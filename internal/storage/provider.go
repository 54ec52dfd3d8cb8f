// Package storage selects the blob store that receives failure snapshots.
// The backend is chosen by configuration so the application stays
// independent of a specific implementation (GCS, the local filesystem or
// process memory).
package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
	"github.com/seapigy/procuro-site-sub000/internal/storage/local"
	"github.com/seapigy/procuro-site-sub000/internal/storage/memory"
)

// Supported snapshot backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config selects and configures the snapshot backend.
type Config struct {
	Backend  string
	LocalDir string
	Bucket   string
	Prefix   string
}

// Open returns the configured blob store and a release func. The store is nil
// for BackendNone, which disables snapshots. factory may be nil outside GCS.
func Open(ctx context.Context, cfg Config, factory GCSClientFactory, logger *zap.Logger) (pricing.BlobStore, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, noop, nil
	case BackendMemory:
		return memory.NewBlobStore(), noop, nil
	case BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("open local snapshots: %w", err)
		}
		return store, noop, nil
	case BackendGCS:
		if factory == nil {
			factory = DefaultGCSClientFactory{}
		}
		provider, err := NewGCSProvider(ctx, cfg.Bucket, cfg.Prefix, factory, logger)
		if err != nil {
			return nil, nil, err
		}
		return provider.Store, provider.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

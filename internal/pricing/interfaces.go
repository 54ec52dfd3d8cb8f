package pricing

import (
	"context"
	"io"
	"time"
)

// Fetcher performs one transport attempt for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// DocumentFetcher performs a validated fetch with timeouts and retries.
// Every returned error is a *FetchError.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, rawURL string, opts FetchOptions) (Document, error)
}

// Adapter translates one retailer's pages into quotes. Methods never fail;
// every failure is an EmptyQuote carrying a diagnostic.
type Adapter interface {
	Name() string
	GetPriceByKeyword(ctx context.Context, keyword string) PriceQuote
	GetPriceBySKU(ctx context.Context, sku string) PriceQuote
	Probe(ctx context.Context, keyword string) Probe
}

// Store is the persistence collaborator. The core owns no schema.
type Store interface {
	FindItem(ctx context.Context, id string) (Item, error)
	CreatePriceRecord(ctx context.Context, record PriceRecord) error
	CreateAlert(ctx context.Context, alert Alert) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes alert notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for snapshot naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces query IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a testify mock of pricing.BlobStore.
type MockBlobStore struct {
	mock.Mock
}

// PutObject records the call. The reader is drained into a string so
// expectations can match on content.
func (m *MockBlobStore) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	args := m.Called(ctx, path, contentType, string(raw))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

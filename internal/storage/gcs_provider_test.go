// Package storage_test contains unit tests for the storage package.
package storage_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gcsapi "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/seapigy/procuro-site-sub000/internal/storage"
)

// MockGCSClientFactory returns a fixed client or error.
type MockGCSClientFactory struct {
	Client *gcsapi.Client
	Err    error
}

// NewClient returns the mock client and error.
func (m *MockGCSClientFactory) NewClient(_ context.Context) (*gcsapi.Client, error) {
	return m.Client, m.Err
}

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func clientWithStatus(t *testing.T, bucket string, status int) *gcsapi.Client {
	t.Helper()
	client, err := gcsapi.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{
			Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
				assert.Contains(t, r.URL.Path, fmt.Sprintf("/storage/v1/b/%s", bucket))
				return &http.Response{
					StatusCode: status,
					Body:       io.NopCloser(strings.NewReader(`{}`)),
					Header:     make(http.Header),
					Request:    r,
				}, nil
			}),
		}),
	)
	require.NoError(t, err)
	return client
}

func TestNewGCSProvider(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		factory := &MockGCSClientFactory{Client: clientWithStatus(t, "snapshots", http.StatusOK)}
		provider, err := storage.NewGCSProvider(context.Background(), "snapshots", "", factory, nil)
		require.NoError(t, err)
		require.NotNil(t, provider.Store)
		require.NoError(t, provider.Close())
	})

	t.Run("ClientError", func(t *testing.T) {
		t.Parallel()
		factory := &MockGCSClientFactory{Err: errors.New("no credentials")}
		_, err := storage.NewGCSProvider(context.Background(), "snapshots", "", factory, nil)
		require.ErrorContains(t, err, "failed to create GCS client")
	})

	t.Run("BucketAttrsError", func(t *testing.T) {
		t.Parallel()
		factory := &MockGCSClientFactory{Client: clientWithStatus(t, "missing", http.StatusNotFound)}
		_, err := storage.NewGCSProvider(context.Background(), "missing", "", factory, nil)
		require.ErrorContains(t, err, "failed to get GCS bucket")
	})

	t.Run("BucketRequired", func(t *testing.T) {
		t.Parallel()
		_, err := storage.NewGCSProvider(context.Background(), "", "", &MockGCSClientFactory{}, nil)
		require.Error(t, err)
	})
}

func TestGCSStoreUploadsSnapshot(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		uploaded string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/upload/storage/v1/b/snapshots/o"):
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			mu.Lock()
			uploaded = string(body)
			mu.Unlock()
			assert.Equal(t, "snapshots/walmart/abc.html", r.URL.Query().Get("name"))
			fmt.Fprintln(w, `{"name":"snapshots/walmart/abc.html","bucket":"snapshots"}`)
		default:
			fmt.Fprintln(w, `{"name":"snapshots"}`)
		}
	}))
	t.Cleanup(server.Close)

	factory := storage.DefaultGCSClientFactory{Options: []option.ClientOption{
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	}}
	store, closeFn, err := storage.Open(context.Background(), storage.Config{Backend: "gcs", Bucket: "snapshots"}, factory, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	uri, err := store.PutObject(context.Background(), "snapshots/walmart/abc.html", "text/html", bytes.NewReader([]byte("<html>blocked</html>")))
	require.NoError(t, err)
	require.Equal(t, "gs://snapshots/snapshots/walmart/abc.html", uri)
	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, uploaded, "<html>blocked</html>")
}

func TestOpenBackends(t *testing.T) {
	t.Parallel()

	store, closeFn, err := storage.Open(context.Background(), storage.Config{}, nil, nil)
	require.NoError(t, err)
	require.Nil(t, store)
	require.NoError(t, closeFn())

	store, _, err = storage.Open(context.Background(), storage.Config{Backend: "Memory"}, nil, nil)
	require.NoError(t, err)
	uri, err := store.PutObject(context.Background(), "a.html", "text/html", strings.NewReader("x"))
	require.NoError(t, err)
	require.Equal(t, "memory://a.html", uri)

	dir := t.TempDir()
	store, _, err = storage.Open(context.Background(), storage.Config{Backend: "local", LocalDir: dir}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, store)

	_, _, err = storage.Open(context.Background(), storage.Config{Backend: "local"}, nil, nil)
	require.Error(t, err)

	_, _, err = storage.Open(context.Background(), storage.Config{Backend: "s3"}, nil, nil)
	require.ErrorContains(t, err, "s3")
}

func TestMockBlobStore(t *testing.T) {
	t.Parallel()

	m := &storage.MockBlobStore{}
	m.On("PutObject", mock.Anything, "p.html", "text/html", "body").Return("mock://p.html", nil)

	uri, err := m.PutObject(context.Background(), "p.html", "text/html", strings.NewReader("body"))
	require.NoError(t, err)
	require.Equal(t, "mock://p.html", uri)
	m.AssertExpectations(t)
}

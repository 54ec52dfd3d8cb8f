package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{RespectRobots: false, Timeout: time.Second, MaxBodyBytes: 1 << 20})
	req := pricing.FetchRequest{
		URL:     "https://www.walmart.com/search?q=paper",
		Headers: http.Header{"User-Agent": {"coverage-agent"}},
	}

	collector := f.buildCollector(req, time.Unix(0, 0), &pricing.FetchResponse{}, new(error))
	require.Equal(t, "coverage-agent", collector.UserAgent)
	require.True(t, collector.IgnoreRobotsTxt)
	require.True(t, collector.AllowURLRevisit)
	require.True(t, collector.ParseHTTPErrorResponse)
	require.Equal(t, 1<<20, collector.MaxBodySize)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := pricing.FetchRequest{
		URL:     "https://www.target.com",
		Headers: http.Header{"Accept-Language": {"en-US"}},
	}
	var result pricing.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{"Accept-Language": {"fr-FR"}}}
	hooks.onRequest(collyReq)
	require.Equal(t, []string{"en-US"}, (*collyReq.Headers)["Accept-Language"])

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://www.target.com/s")},
	})
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")

	hooks.onError(&colly.Response{
		StatusCode: http.StatusForbidden,
		Request:    &colly.Request{URL: mustParseURL(t, "https://www.target.com/s")},
	}, errors.New("Forbidden"))
	require.NoError(t, fetchErr)
	require.Equal(t, http.StatusForbidden, result.StatusCode)
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(pricing.FetchRequest{}, collyReq)
	require.Empty(t, *collyReq.Headers)
}

func TestFetchReturnsStatusAndAllowsRevisit(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("try later"))
			return
		}
		_, _ = w.Write([]byte("<html><body>ok " + r.Header.Get("X-Probe") + "</body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: 2 * time.Second})
	req := pricing.FetchRequest{URL: srv.URL + "/ok", Headers: http.Header{"X-Probe": {"yes"}}}

	for range 2 {
		resp, err := f.Fetch(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(resp.Body), "ok yes")
	}

	resp, err := f.Fetch(context.Background(), pricing.FetchRequest{URL: srv.URL + "/down"})
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, int32(3), hits.Load())
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := New(Config{})
	_, err := f.Fetch(ctx, pricing.FetchRequest{URL: "http://192.0.2.1/"})
	require.ErrorIs(t, err, context.Canceled)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}

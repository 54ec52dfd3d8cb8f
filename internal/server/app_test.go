package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seapigy/procuro-site-sub000/internal/config"
)

func walmartPage(price string) string {
	padding := strings.Repeat("<p>Office supplies for every workplace.</p>", 20)
	return `<!doctype html><html><head><title>Walmart search</title>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Copy Paper 10 Ream Case","url":"/ip/123",` +
		`"offers":{"@type":"Offer","price":"` + price + `","availability":"https://schema.org/InStock"}}</script>
</head><body>` + padding + `</body></html>`
}

func testConfig(t *testing.T, retailerURL string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Retailers.Enabled = []string{"walmart"}
	cfg.Retailers.BaseURLs = map[string]string{"walmart": retailerURL}
	cfg.HTTP.MaxRetries = 0
	cfg.RateLimit.Enabled = false
	cfg.Alerts.Topic = "price-alerts"
	cfg.Storage.Items = []config.ItemConfig{{
		ID: "item-1", Name: "copy paper", ReferencePrice: "50.00", QuantityPerOrder: 2, ReorderIntervalDays: 15,
	}}
	return &cfg
}

func buildTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := Build(context.Background(), cfg,
		WithLogger(zap.NewNop()),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func retailerServer(t *testing.T, price string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, walmartPage(price))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type evaluateBody struct {
	ItemID     string `json:"itemId"`
	Persisted  int    `json:"persisted"`
	Alerts     int    `json:"alerts"`
	Suppressed int    `json:"suppressed"`
	Valid      int    `json:"valid"`
}

func evaluate(t *testing.T, h http.Handler, itemID string) (int, evaluateBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/items/"+itemID+"/evaluate", nil))
	var body evaluateBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestBuildEvaluatesSeededItem(t *testing.T) {
	t.Parallel()

	srv := retailerServer(t, "47.00")
	app := buildTestApp(t, testConfig(t, srv.URL))

	code, body := evaluate(t, app.Handler(), "item-1")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "item-1", body.ItemID)
	require.Equal(t, 1, body.Valid)
	require.Equal(t, 1, body.Persisted)
	require.Equal(t, 1, body.Alerts)

	code, _ = evaluate(t, app.Handler(), "missing")
	require.Equal(t, http.StatusNotFound, code)
}

func TestBuildMemoryDedupSuppressesRepeat(t *testing.T) {
	t.Parallel()

	srv := retailerServer(t, "47.00")
	cfg := testConfig(t, srv.URL)
	cfg.Alerts.Dedup.Policy = "memory"
	app := buildTestApp(t, cfg)

	_, first := evaluate(t, app.Handler(), "item-1")
	require.Equal(t, 1, first.Alerts)
	_, second := evaluate(t, app.Handler(), "item-1")
	require.Equal(t, 0, second.Alerts)
	require.Equal(t, 1, second.Suppressed)
}

func TestBuildBoundsInMemoryAlerts(t *testing.T) {
	t.Parallel()

	srv := retailerServer(t, "47.00")
	cfg := testConfig(t, srv.URL)
	cfg.Alerts.MemoryBuffer = 2
	app := buildTestApp(t, cfg)
	require.NotNil(t, app.memoryPub)

	for i := 0; i < 5; i++ {
		code, body := evaluate(t, app.Handler(), "item-1")
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, 1, body.Alerts)
	}
	require.Equal(t, 2, app.memoryPub.Len())
	require.Len(t, app.memoryPub.Messages("price-alerts"), 2)
}

func TestBuildAggregateAndHealth(t *testing.T) {
	t.Parallel()

	srv := retailerServer(t, "12.99")
	app := buildTestApp(t, testConfig(t, srv.URL))
	require.Len(t, app.Aggregator().Adapters(), 1)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/aggregate?keyword=paper", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"valid":1`)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{name: "bad seed price", mutate: func(c *config.Config) { c.Storage.Items[0].ReferencePrice = "abc" }, want: "reference_price"},
		{name: "invalid seed item", mutate: func(c *config.Config) { c.Storage.Items[0].ReferencePrice = "0" }, want: "storage.items"},
		{name: "unknown retailer", mutate: func(c *config.Config) { c.Retailers.Enabled = []string{"costco"} }, want: "retailer init failed"},
		{name: "local snapshots without dir", mutate: func(c *config.Config) {
			c.Snapshots.Backend = "local"
			c.Snapshots.LocalDir = ""
		}, want: "snapshot store init failed"},
		{name: "bad tracing ratio", mutate: func(c *config.Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRatio = 3
		}, want: "tracer init failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t, "http://127.0.0.1:1")
			tt.mutate(cfg)
			app, err := Build(context.Background(), cfg,
				WithLogger(zap.NewNop()),
				WithRegisterer(prometheus.NewRegistry()),
			)
			require.ErrorContains(t, err, tt.want)
			require.Nil(t, app)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Server.Port = port
	app := buildTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

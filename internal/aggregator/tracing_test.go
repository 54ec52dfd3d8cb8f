package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

func TestAggregateRecordsSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	agg, err := New(adapters(
		&fakeAdapter{name: "walmart", price: "3.47"},
		&fakeAdapter{name: "target"},
	), Config{}, Deps{Tracer: provider.Tracer("test")})
	require.NoError(t, err)

	agg.Aggregate(context.Background(), pricing.Query{Keyword: "paper"}, Options{})

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	byRetailer := make(map[string]sdktrace.ReadOnlySpan)
	var root sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "aggregator.Aggregate" {
			root = s
			continue
		}
		require.Equal(t, "aggregator.lookup", s.Name())
		for _, kv := range s.Attributes() {
			if kv.Key == "pricewatch.retailer" {
				byRetailer[kv.Value.AsString()] = s
			}
		}
	}
	require.NotNil(t, root)
	require.Len(t, byRetailer, 2)

	for _, child := range byRetailer {
		require.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID())
	}
	require.Equal(t, codes.Unset, byRetailer["walmart"].Status().Code)
	require.Equal(t, codes.Error, byRetailer["target"].Status().Code)
	require.Equal(t, "no priced products found", byRetailer["target"].Status().Description)

	attrs := make(map[string]string)
	for _, kv := range root.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "keyword=paper", attrs["pricewatch.query"])
	require.Equal(t, "partial", attrs["pricewatch.result"])
	require.Equal(t, "1", attrs["pricewatch.valid"])
}

// Package aggregator fans one query out to every retailer adapter, waits for
// all of them to settle and returns their quotes cheapest first. It also
// drives item evaluation: persisting observed prices and raising alerts.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seapigy/procuro-site-sub000/internal/alert"
	"github.com/seapigy/procuro-site-sub000/internal/metrics"
	"github.com/seapigy/procuro-site-sub000/internal/pricing"
	"github.com/seapigy/procuro-site-sub000/internal/progress"
)

// DefaultAdapterTimeout bounds a single adapter lookup when neither the call
// nor the configuration sets one.
const DefaultAdapterTimeout = 30 * time.Second

// Options tunes one aggregation.
type Options struct {
	// Timeout applies to each adapter independently. Zero uses the configured default.
	Timeout time.Duration
}

// Config holds static aggregator settings.
type Config struct {
	AdapterTimeout    time.Duration
	EvaluationEnabled bool
	// AlertTopic receives created alerts when a Publisher is configured.
	AlertTopic string
}

// Deps are the aggregator's collaborators. Only the adapters are mandatory
// for Aggregate; EvaluateItem additionally needs a Store.
type Deps struct {
	Store     pricing.Store
	Alerts    *alert.Engine
	Dedup     alert.Deduper
	Publisher pricing.Publisher
	IDs       pricing.IDGenerator
	Clock     pricing.Clock
	Events    progress.Emitter
	Tracer    trace.Tracer
	Logger    *zap.Logger
}

// Aggregator runs adapters concurrently.
type Aggregator struct {
	adapters []pricing.Adapter
	byName   map[string]pricing.Adapter
	cfg      Config
	deps     Deps
	logger   *zap.Logger
}

// New validates the adapter set and fills defaults. Adapter names must be
// unique so a result never carries two quotes for one retailer.
func New(adapters []pricing.Adapter, cfg Config, deps Deps) (*Aggregator, error) {
	if len(adapters) == 0 {
		return nil, errors.New("aggregator: at least one adapter is required")
	}
	byName := make(map[string]pricing.Adapter, len(adapters))
	for i, ad := range adapters {
		if ad == nil {
			return nil, fmt.Errorf("aggregator: adapter %d is nil", i)
		}
		name := ad.Name()
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("aggregator: adapter %d has an empty name", i)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("aggregator: duplicate adapter %q", name)
		}
		byName[name] = ad
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = DefaultAdapterTimeout
	}
	if deps.Alerts == nil {
		engine, err := alert.NewEngine(alert.DefaultMinSavingsPercent, deps.Clock)
		if err != nil {
			return nil, err
		}
		deps.Alerts = engine
	}
	if deps.Dedup == nil {
		deps.Dedup = alert.NoDedup{}
	}
	if deps.Events == nil {
		deps.Events = progress.Nop{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/seapigy/procuro-site-sub000/internal/aggregator")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		adapters: slices.Clone(adapters),
		byName:   byName,
		cfg:      cfg,
		deps:     deps,
		logger:   logger.Named("aggregator"),
	}, nil
}

// Adapters returns the configured adapters in registration order.
func (a *Aggregator) Adapters() []pricing.Adapter {
	return slices.Clone(a.adapters)
}

// Adapter looks up one adapter by retailer name.
func (a *Aggregator) Adapter(name string) (pricing.Adapter, bool) {
	ad, ok := a.byName[strings.ToLower(strings.TrimSpace(name))]
	return ad, ok
}

// Aggregate queries every adapter concurrently and returns valid quotes sorted
// by ascending price followed by the quotes without a usable price. It returns
// once every adapter has settled or hit its deadline; one adapter's failure,
// panic or slowness never affects the others.
func (a *Aggregator) Aggregate(ctx context.Context, query pricing.Query, opts Options) pricing.AggregationResult {
	start := a.now()
	queryID := a.newQueryID()
	ctx = progress.WithQueryID(ctx, queryID)
	ctx, span := a.deps.Tracer.Start(ctx, "aggregator.Aggregate", trace.WithAttributes(
		attribute.String("pricewatch.query", describe(query)),
		attribute.String("pricewatch.query_id", uuid.UUID(queryID).String()),
		attribute.Int("pricewatch.adapters", len(a.adapters)),
	))
	defer span.End()

	metrics.IncInflightAggregations()
	defer metrics.DecInflightAggregations()
	a.emit(progress.Event{QueryID: queryID, Stage: progress.StageAggregateStart, Note: describe(query)})

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = a.cfg.AdapterTimeout
	}

	var (
		mu     sync.Mutex
		quotes = make([]pricing.PriceQuote, 0, len(a.adapters))
		g      errgroup.Group
	)
	for _, ad := range a.adapters {
		g.Go(func() error {
			quote := a.lookup(ctx, ad, query, timeout)
			mu.Lock()
			quotes = append(quotes, quote)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := Order(quotes)
	valid := len(result.Valid())
	label := resultLabel(valid, len(result.Quotes))
	span.SetAttributes(attribute.Int("pricewatch.valid", valid), attribute.String("pricewatch.result", label))
	metrics.ObserveAggregation(label)
	a.emit(progress.Event{
		QueryID: queryID,
		Stage:   progress.StageAggregateDone,
		Valid:   valid,
		Dur:     a.now().Sub(start),
	})
	a.logger.Debug("aggregation finished",
		zap.String("query_id", uuid.UUID(queryID).String()),
		zap.Int("quotes", len(result.Quotes)),
		zap.Int("valid", valid),
		zap.Duration("elapsed", a.now().Sub(start)),
	)
	return result
}

// lookup runs one adapter under its own deadline. The adapter call happens on
// a separate goroutine so an adapter that ignores ctx cannot hold the
// aggregation past its timeout.
func (a *Aggregator) lookup(ctx context.Context, ad pricing.Adapter, query pricing.Query, timeout time.Duration) pricing.PriceQuote {
	name := ad.Name()
	ctx, span := a.deps.Tracer.Start(ctx, "aggregator.lookup", trace.WithAttributes(
		attribute.String("pricewatch.retailer", name),
	))
	defer span.End()
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan pricing.PriceQuote, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("adapter panicked",
					zap.String("retailer", name),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				done <- pricing.EmptyQuote(name, "internal error")
			}
		}()
		if query.SKU != "" {
			done <- ad.GetPriceBySKU(actx, query.SKU)
			return
		}
		done <- ad.GetPriceByKeyword(actx, query.Keyword)
	}()

	var quote pricing.PriceQuote
	select {
	case q := <-done:
		quote = normalize(name, q)
	case <-actx.Done():
		reason := "timed out"
		if errors.Is(actx.Err(), context.Canceled) {
			reason = "canceled"
		}
		a.logger.Warn("adapter abandoned", zap.String("retailer", name), zap.String("reason", reason))
		quote = pricing.EmptyQuote(name, reason)
	}
	if quote.Valid() {
		span.SetAttributes(attribute.String("pricewatch.price", quote.Price.String()))
	} else {
		span.SetStatus(codes.Error, quote.Error)
	}
	return quote
}

// normalize enforces the quote invariants regardless of adapter behavior.
func normalize(name string, q pricing.PriceQuote) pricing.PriceQuote {
	q.Retailer = name
	if q.Error != "" || (q.Price != nil && !q.Price.IsPositive()) {
		q.Price = nil
	}
	if q.Price == nil && q.Error == "" {
		q.Error = "no data"
	}
	return q
}

// Order partitions quotes into the priced prefix, stable-sorted by ascending
// price, followed by the no-data bucket in its original order.
func Order(quotes []pricing.PriceQuote) pricing.AggregationResult {
	valid := make([]pricing.PriceQuote, 0, len(quotes))
	var noData []pricing.PriceQuote
	for _, q := range quotes {
		if q.Valid() {
			valid = append(valid, q)
			continue
		}
		noData = append(noData, q)
	}
	slices.SortStableFunc(valid, func(x, y pricing.PriceQuote) int {
		return x.Price.Cmp(*y.Price)
	})
	return pricing.AggregationResult{Quotes: append(valid, noData...)}
}

func describe(q pricing.Query) string {
	if q.SKU != "" {
		return "sku=" + q.SKU
	}
	return "keyword=" + q.Keyword
}

func resultLabel(valid, total int) string {
	switch {
	case valid == 0:
		return "empty"
	case valid == total:
		return "complete"
	default:
		return "partial"
	}
}

func (a *Aggregator) newQueryID() [16]byte {
	if a.deps.IDs != nil {
		if raw, err := a.deps.IDs.NewID(); err == nil {
			if id := progress.ParseQueryID(raw); id != [16]byte{} {
				return id
			}
		}
	}
	return progress.UUIDToBytes(uuid.New())
}

func (a *Aggregator) now() time.Time {
	if a.deps.Clock != nil {
		return a.deps.Clock.Now()
	}
	return time.Now().UTC()
}

func (a *Aggregator) emit(evt progress.Event) {
	evt.TS = a.now()
	a.deps.Events.Emit(evt)
}

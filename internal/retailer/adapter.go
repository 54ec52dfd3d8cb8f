// Package retailer holds the per-retailer adapters that turn a keyword or SKU
// into a normalized pricing.PriceQuote. Each adapter fetches one document
// through the shared resilient fetcher and runs an ordered chain of extraction
// strategies over it. Adapters never return errors; every failure collapses
// into pricing.EmptyQuote with a short diagnostic.
package retailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
	"github.com/seapigy/procuro-site-sub000/internal/progress"
)

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Fetcher pricing.DocumentFetcher
	Options pricing.FetchOptions
	// BaseURL overrides the retailer's public origin (staging, tests).
	BaseURL   string
	Snapshots pricing.BlobStore
	Hasher    pricing.Hasher
	Events    progress.Emitter
	Clock     pricing.Clock
	Logger    *zap.Logger
}

// definition is the static description of one retailer.
type definition struct {
	name       string
	baseURL    string
	searchURL  func(base, keyword string) string
	skuURL     func(base, sku string) string
	strategies []Strategy
}

// engine runs a definition against the fetch layer. Retailer types embed it.
type engine struct {
	def    definition
	deps   Deps
	logger *zap.Logger
}

func newEngine(def definition, deps Deps) *engine {
	if deps.BaseURL != "" {
		def.baseURL = strings.TrimRight(deps.BaseURL, "/")
	}
	if deps.Events == nil {
		deps.Events = progress.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &engine{def: def, deps: deps, logger: logger.Named("retailer").With(zap.String("retailer", def.name))}
}

// Name returns the retailer identifier used in quotes and routes.
func (e *engine) Name() string {
	return e.def.name
}

// BaseURL returns the origin relative product links are resolved against.
func (e *engine) BaseURL() string {
	return e.def.baseURL
}

// SearchURL builds the keyword search page URL.
func (e *engine) SearchURL(keyword string) string {
	return e.def.searchURL(e.def.baseURL, strings.TrimSpace(keyword))
}

// GetPriceByKeyword returns the cheapest product on the retailer's search page.
func (e *engine) GetPriceByKeyword(ctx context.Context, keyword string) pricing.PriceQuote {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return e.reject(ctx, "keyword required")
	}
	quote, _ := e.lookup(ctx, e.SearchURL(keyword))
	return quote
}

// GetPriceBySKU returns the price on the retailer's product page.
func (e *engine) GetPriceBySKU(ctx context.Context, sku string) pricing.PriceQuote {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return e.reject(ctx, "sku required")
	}
	quote, _ := e.lookup(ctx, e.def.skuURL(e.def.baseURL, sku))
	return quote
}

// Probe runs a keyword lookup and also returns the fetched document.
func (e *engine) Probe(ctx context.Context, keyword string) pricing.Probe {
	keyword = strings.TrimSpace(keyword)
	target := e.SearchURL(keyword)
	if keyword == "" {
		return pricing.Probe{SearchURL: target, Quote: e.reject(ctx, "keyword required")}
	}
	quote, body := e.lookup(ctx, target)
	return pricing.Probe{SearchURL: target, HTML: body, Quote: quote}
}

func (e *engine) reject(ctx context.Context, reason string) pricing.PriceQuote {
	e.emit(ctx, progress.Event{Stage: progress.StageAdapterStart})
	e.emitDone(ctx, "", string(pricing.OutcomeBadInput), "", 0, reason)
	return pricing.EmptyQuote(e.def.name, reason)
}

// lookup fetches target and extracts a quote. It never panics.
func (e *engine) lookup(ctx context.Context, target string) (quote pricing.PriceQuote, body string) {
	start := e.now()
	e.emit(ctx, progress.Event{Stage: progress.StageAdapterStart, URL: target})

	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("adapter panicked", zap.String("url", target), zap.Any("panic", rec))
			quote = pricing.EmptyQuote(e.def.name, "internal error")
			e.emitDone(ctx, target, string(pricing.OutcomePanic), "", e.now().Sub(start), fmt.Sprint(rec))
		}
	}()

	doc, err := e.deps.Fetcher.FetchDocument(ctx, target, e.deps.Options)
	if err != nil {
		outcome := pricing.Classify(err)
		e.logger.Info("fetch failed", zap.String("url", target), zap.Error(err))
		e.emitDone(ctx, target, string(outcome), "", e.now().Sub(start), err.Error())
		return pricing.EmptyQuote(e.def.name, fetchReason(err)), ""
	}

	best, err := e.extract(doc.Body)
	if err != nil {
		outcome := pricing.Classify(err)
		e.logger.Info("extraction failed", zap.String("url", target), zap.Error(err))
		e.snapshot(ctx, doc.Body)
		e.emitDone(ctx, target, string(outcome), "", e.now().Sub(start), err.Error())
		return pricing.EmptyQuote(e.def.name, extractReason(err)), doc.Body
	}

	base := e.def.baseURL
	if doc.FinalURL != "" {
		base = doc.FinalURL
	}
	quote = pricing.NewQuote(e.def.name, *best.Price, pricing.QuoteFields{
		URL:      ResolveURL(base, best.URL),
		Title:    best.Title,
		InStock:  best.InStock,
		ImageURL: ResolveURL(base, best.ImageURL),
	})
	e.emitDone(ctx, target, string(pricing.OutcomeOK), quote.Price.StringFixed(2), e.now().Sub(start), "")
	return quote, doc.Body
}

// extract runs the strategy chain. The first strategy yielding a priced
// candidate wins; otherwise the most specific failure is reported.
func (e *engine) extract(body string) (Candidate, error) {
	page := Page{Raw: body}
	if dom, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		page.DOM = dom
	}
	var (
		parseErrs   []error
		noCandidate error
	)
	for _, strategy := range e.def.strategies {
		candidates, err := runStrategy(strategy, page)
		if err == nil {
			if best, ok := Cheapest(candidates); ok {
				e.logger.Debug("strategy matched",
					zap.String("strategy", strategy.Name),
					zap.Int("candidates", len(candidates)),
				)
				return best, nil
			}
			err = fmt.Errorf("%w: no priced candidates", pricing.ErrNoCandidate)
		}
		if errors.Is(err, pricing.ErrNoCandidate) {
			if noCandidate == nil {
				noCandidate = fmt.Errorf("%s: %w", strategy.Name, err)
			}
			continue
		}
		parseErrs = append(parseErrs, fmt.Errorf("%s: %w", strategy.Name, err))
	}
	if noCandidate != nil {
		return Candidate{}, noCandidate
	}
	if len(parseErrs) == 0 {
		return Candidate{}, fmt.Errorf("%w: no strategies configured", pricing.ErrParse)
	}
	return Candidate{}, errors.Join(parseErrs...)
}

// runStrategy isolates a strategy so a panic in one does not stop the chain.
func runStrategy(s Strategy, page Page) (candidates []Candidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			candidates = nil
			err = fmt.Errorf("%w: strategy panicked: %v", pricing.ErrParse, rec)
		}
	}()
	return s.Extract(page)
}

// snapshot stores the document for parser repair. Failures are only logged.
func (e *engine) snapshot(ctx context.Context, body string) {
	if e.deps.Snapshots == nil || e.deps.Hasher == nil || body == "" {
		return
	}
	digest, err := e.deps.Hasher.Hash([]byte(body))
	if err != nil {
		e.logger.Warn("snapshot hash failed", zap.Error(err))
		return
	}
	key := path.Join("snapshots", e.def.name, digest+".html")
	uri, err := e.deps.Snapshots.PutObject(ctx, key, "text/html; charset=utf-8", bytes.NewReader([]byte(body)))
	if err != nil {
		e.logger.Warn("snapshot write failed", zap.String("path", key), zap.Error(err))
		return
	}
	e.logger.Debug("snapshot stored", zap.String("uri", uri))
}

func (e *engine) now() time.Time {
	if e.deps.Clock != nil {
		return e.deps.Clock.Now()
	}
	return time.Now().UTC()
}

func (e *engine) emit(ctx context.Context, evt progress.Event) {
	evt.QueryID = progress.QueryIDFrom(ctx)
	evt.Retailer = e.def.name
	evt.TS = e.now()
	e.deps.Events.Emit(evt)
}

func (e *engine) emitDone(ctx context.Context, target, outcome, price string, dur time.Duration, note string) {
	if len(note) > 200 {
		note = note[:200]
	}
	e.emit(ctx, progress.Event{
		Stage:   progress.StageAdapterDone,
		URL:     target,
		Outcome: outcome,
		Price:   price,
		Dur:     dur,
		Note:    note,
	})
}

func fetchReason(err error) string {
	var fetchErr *pricing.FetchError
	switch {
	case errors.Is(err, pricing.ErrValidation):
		return "document failed validation"
	case errors.As(err, &fetchErr) && fetchErr.StatusCode > 0:
		return fmt.Sprintf("fetch failed: status %d", fetchErr.StatusCode)
	case errors.Is(err, pricing.ErrTransient):
		return "fetch failed: retries exhausted"
	default:
		return "fetch failed"
	}
}

func extractReason(err error) string {
	if errors.Is(err, pricing.ErrNoCandidate) {
		return "no priced products found"
	}
	return "no embedded product data"
}

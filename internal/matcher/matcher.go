package matcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/seapigy/procuro-site-sub000/internal/aggregator"
	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Source runs a query across every retailer. *aggregator.Aggregator satisfies it.
type Source interface {
	Aggregate(ctx context.Context, query pricing.Query, opts aggregator.Options) pricing.AggregationResult
}

// Config tunes candidate selection.
type Config struct {
	// MinScore drops candidates scoring below it. Zero keeps every priced quote.
	MinScore float64
	// Timeout is the per-adapter lookup timeout. Zero uses the aggregator default.
	Timeout time.Duration
}

// Matcher ranks retailer products against an item name.
type Matcher struct {
	source Source
	cfg    Config
	logger *zap.Logger
}

// New builds a Matcher.
func New(source Source, cfg Config, logger *zap.Logger) (*Matcher, error) {
	if source == nil {
		return nil, errors.New("matcher: source is required")
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return nil, fmt.Errorf("matcher: min score must be in [0, 1], got %v", cfg.MinScore)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{source: source, cfg: cfg, logger: logger.Named("matcher")}, nil
}

// FindBest queries every retailer for name concurrently, scores one candidate
// per retailer that returned a usable quote and returns the best one with the
// full ranking (descending score). best is nil when nothing qualifies; a
// retailer without a price simply contributes no candidate.
func (m *Matcher) FindBest(
	ctx context.Context,
	name string,
	referencePrice decimal.Decimal,
) (*pricing.MatchCandidate, []pricing.MatchCandidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, pricing.ErrEmptyQuery
	}
	result := m.source.Aggregate(ctx, pricing.Query{Keyword: name}, aggregator.Options{Timeout: m.cfg.Timeout})
	ranked := Rank(name, referencePrice, result.Valid(), m.cfg.MinScore)

	m.logger.Debug("candidates ranked",
		zap.String("name", name),
		zap.Int("quotes", len(result.Quotes)),
		zap.Int("candidates", len(ranked)),
	)
	if len(ranked) == 0 {
		return nil, ranked, nil
	}
	best := ranked[0]
	return &best, ranked, nil
}

// Rank scores priced quotes and sorts them by descending score. Equal scores
// keep the input order.
func Rank(name string, referencePrice decimal.Decimal, quotes []pricing.PriceQuote, minScore float64) []pricing.MatchCandidate {
	out := make([]pricing.MatchCandidate, 0, len(quotes))
	for _, q := range quotes {
		if !q.Valid() {
			continue
		}
		title := q.TitleValue()
		score := Score(name, title, *q.Price, referencePrice)
		if score < minScore {
			continue
		}
		out = append(out, pricing.MatchCandidate{
			Retailer: q.Retailer,
			Title:    title,
			Price:    *q.Price,
			URL:      q.URLValue(),
			Score:    score,
		})
	}
	slices.SortStableFunc(out, func(a, b pricing.MatchCandidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return out
}

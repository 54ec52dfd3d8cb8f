package aggregator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seapigy/procuro-site-sub000/internal/alert"
	"github.com/seapigy/procuro-site-sub000/internal/metrics"
	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Alert metric results.
const (
	alertCreated        = "created"
	alertBelowThreshold = "below_threshold"
	alertSuppressed     = "suppressed"
	alertFailed         = "failed"
)

// Summary reports what one item evaluation did.
type Summary struct {
	ItemID           string                    `json:"itemId"`
	Result           pricing.AggregationResult `json:"-"`
	PricesPersisted  int                       `json:"persisted"`
	AlertsCreated    int                       `json:"alerts"`
	AlertsSuppressed int                       `json:"suppressed"`
	Failures         int                       `json:"failures"`
	Alerts           []pricing.Alert           `json:"createdAlerts,omitempty"`
}

// EvaluateItem aggregates quotes for the item's name, then persists one price
// record per valid quote and raises alerts for qualifying savings. Writes are
// sequential and happen after every adapter has settled. A failed write is
// logged and counted; it never stops the remaining quotes.
func (a *Aggregator) EvaluateItem(ctx context.Context, itemID string, opts Options) (Summary, error) {
	if !a.cfg.EvaluationEnabled {
		return Summary{}, pricing.ErrEvaluationDisabled
	}
	if a.deps.Store == nil {
		return Summary{}, errors.New("aggregator: store is not configured")
	}
	item, err := a.deps.Store.FindItem(ctx, itemID)
	if err != nil {
		return Summary{}, fmt.Errorf("find item %s: %w", itemID, err)
	}
	if err := item.Validate(); err != nil {
		return Summary{}, fmt.Errorf("item %s: %w", itemID, err)
	}

	result := a.Aggregate(ctx, pricing.Query{Keyword: item.Name}, opts)
	summary := Summary{ItemID: item.ID, Result: result}
	logger := a.logger.With(zap.String("item_id", item.ID))

	for _, quote := range result.Valid() {
		qlog := logger.With(zap.String("retailer", quote.Retailer))
		record := pricing.PriceRecord{
			ItemID:     item.ID,
			Retailer:   quote.Retailer,
			Price:      *quote.Price,
			URL:        quote.URLValue(),
			RecordedAt: a.now().UTC(),
		}
		if err := a.deps.Store.CreatePriceRecord(ctx, record); err != nil {
			qlog.Warn("persist price record failed", zap.Error(err))
			summary.Failures++
		} else {
			summary.PricesPersisted++
		}

		created, ok := a.deps.Alerts.Evaluate(item, quote)
		if !ok {
			metrics.ObserveAlert(quote.Retailer, alertBelowThreshold)
			continue
		}
		claimed, err := a.deps.Dedup.Claim(ctx, alert.Key(created))
		if err != nil {
			qlog.Warn("alert dedup unavailable; emitting anyway", zap.Error(err))
			claimed = true
		}
		if !claimed {
			qlog.Debug("alert suppressed by dedup window")
			summary.AlertsSuppressed++
			metrics.ObserveAlert(quote.Retailer, alertSuppressed)
			continue
		}
		if err := a.deps.Store.CreateAlert(ctx, created); err != nil {
			qlog.Warn("persist alert failed", zap.Error(err))
			if rerr := a.deps.Dedup.Release(ctx, alert.Key(created)); rerr != nil {
				qlog.Warn("alert dedup release failed", zap.Error(rerr))
			}
			summary.Failures++
			metrics.ObserveAlert(quote.Retailer, alertFailed)
			continue
		}
		summary.AlertsCreated++
		summary.Alerts = append(summary.Alerts, created)
		metrics.ObserveAlert(quote.Retailer, alertCreated)
		qlog.Info("savings alert created",
			zap.String("new_price", created.NewPrice.StringFixed(2)),
			zap.String("savings_per_order", created.SavingsPerOrder.StringFixed(2)),
		)
		a.notify(ctx, created)
	}

	logger.Info("item evaluated",
		zap.Int("valid_quotes", len(result.Valid())),
		zap.Int("persisted", summary.PricesPersisted),
		zap.Int("alerts", summary.AlertsCreated),
		zap.Int("failures", summary.Failures),
	)
	return summary, nil
}

// notify publishes a created alert. Delivery is best effort.
func (a *Aggregator) notify(ctx context.Context, created pricing.Alert) {
	if a.deps.Publisher == nil || a.cfg.AlertTopic == "" {
		return
	}
	id, err := a.deps.Publisher.Publish(ctx, a.cfg.AlertTopic, created)
	if err != nil {
		a.logger.Warn("publish alert failed",
			zap.String("item_id", created.ItemID),
			zap.String("retailer", created.Retailer),
			zap.Error(err),
		)
		return
	}
	a.logger.Debug("alert published", zap.String("message_id", id))
}

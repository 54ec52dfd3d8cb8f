// Package alert decides whether a discovered price is worth telling a
// purchaser about. The engine is pure; persistence, deduplication and
// notification are applied by the caller.
package alert

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// DefaultMinSavingsPercent is the savings fraction (5%) at which a quote becomes an alert.
const DefaultMinSavingsPercent = 0.05

var thirtyDays = decimal.NewFromInt(30)

// Engine evaluates quotes against an item's reference price.
type Engine struct {
	minPercent decimal.Decimal
	clock      pricing.Clock
}

// NewEngine builds an Engine. minSavingsPercent is a fraction in [0, 1).
func NewEngine(minSavingsPercent float64, clock pricing.Clock) (*Engine, error) {
	if minSavingsPercent < 0 || minSavingsPercent >= 1 {
		return nil, fmt.Errorf("alert: min savings percent must be in [0, 1), got %v", minSavingsPercent)
	}
	return &Engine{
		minPercent: decimal.NewFromFloat(minSavingsPercent),
		clock:      clock,
	}, nil
}

// MinSavingsPercent returns the configured threshold.
func (e *Engine) MinSavingsPercent() decimal.Decimal {
	return e.minPercent
}

// Evaluate returns an alert when quote undercuts the item's reference price by
// at least the configured fraction. It performs no I/O.
func (e *Engine) Evaluate(item pricing.Item, quote pricing.PriceQuote) (pricing.Alert, bool) {
	if item.Validate() != nil || !quote.Valid() {
		return pricing.Alert{}, false
	}
	savings := item.ReferencePrice.Sub(*quote.Price)
	if !savings.IsPositive() {
		return pricing.Alert{}, false
	}
	if savings.Div(item.ReferencePrice).LessThan(e.minPercent) {
		return pricing.Alert{}, false
	}
	return pricing.Alert{
		ItemID:                  item.ID,
		Retailer:                quote.Retailer,
		OldPrice:                item.ReferencePrice,
		NewPrice:                *quote.Price,
		SavingsPerOrder:         savings.Round(2),
		EstimatedMonthlySavings: MonthlySavings(savings, item.QuantityPerOrder, item.ReorderIntervalDays),
		URL:                     quote.URLValue(),
		AlertDate:               e.now(),
	}, true
}

// MonthlySavings projects a per-unit saving over a 30 day month:
// savings * quantity * (30 / intervalDays), rounded to cents.
func MonthlySavings(savings decimal.Decimal, quantity, intervalDays int) decimal.Decimal {
	if quantity < 1 || intervalDays < 1 {
		return decimal.Zero
	}
	return savings.
		Mul(decimal.NewFromInt(int64(quantity))).
		Mul(thirtyDays).
		Div(decimal.NewFromInt(int64(intervalDays))).
		Round(2)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock.Now().UTC()
	}
	return time.Now().UTC()
}

// Package pricing defines core types shared across subsystems.
package pricing

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Query selects what every adapter should look up. SKU wins when both are set.
type Query struct {
	Keyword string `json:"keyword,omitempty"`
	SKU     string `json:"sku,omitempty"`
}

// Empty reports whether the query carries neither a keyword nor a SKU.
func (q Query) Empty() bool {
	return q.Keyword == "" && q.SKU == ""
}

// Item is the procurement line-item used as the savings baseline.
type Item struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	ReferencePrice      decimal.Decimal `json:"referencePrice"`
	QuantityPerOrder    int             `json:"quantityPerOrder"`
	ReorderIntervalDays int             `json:"reorderIntervalDays"`
}

// Validate enforces the invariants the decision engine relies on.
func (i Item) Validate() error {
	if !i.ReferencePrice.IsPositive() {
		return errors.New("reference price must be > 0")
	}
	if i.QuantityPerOrder < 1 {
		return fmt.Errorf("quantity per order must be >= 1, got %d", i.QuantityPerOrder)
	}
	if i.ReorderIntervalDays < 1 {
		return fmt.Errorf("reorder interval must be >= 1 day, got %d", i.ReorderIntervalDays)
	}
	return nil
}

// MatchCandidate is a scored product produced by the matcher. Never persisted.
type MatchCandidate struct {
	Retailer string          `json:"retailer"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	URL      string          `json:"url"`
	Score    float64         `json:"score"`
}

// Alert is the savings notification handed to the store.
type Alert struct {
	ItemID                  string          `json:"itemId"`
	Retailer                string          `json:"retailer"`
	OldPrice                decimal.Decimal `json:"oldPrice"`
	NewPrice                decimal.Decimal `json:"newPrice"`
	SavingsPerOrder         decimal.Decimal `json:"savingsPerOrder"`
	EstimatedMonthlySavings decimal.Decimal `json:"estimatedMonthlySavings"`
	URL                     string          `json:"url"`
	Seen                    bool            `json:"seen"`
	Viewed                  bool            `json:"viewed"`
	AlertDate               time.Time       `json:"alertDate"`
}

// PriceRecord is a single price observation persisted per valid quote.
type PriceRecord struct {
	ItemID     string          `json:"itemId"`
	Retailer   string          `json:"retailer"`
	Price      decimal.Decimal `json:"price"`
	URL        string          `json:"url"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// FetchOptions tunes one resilient document fetch. A zero Timeout or a nil
// MaxRetries uses the fetcher default; Retries(0) disables retries.
type FetchOptions struct {
	Timeout    time.Duration
	MaxRetries *int
	Headers    http.Header
}

// Retries returns a MaxRetries value for FetchOptions.
func Retries(n int) *int {
	return &n
}

// Document is a fetched page that passed content validation.
type Document struct {
	Body       string
	FinalURL   string
	StatusCode int
}

// FetchRequest captures everything a transport needs for one attempt.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the result of a single transport attempt.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Probe bundles an adapter lookup with the raw document for debugging endpoints.
type Probe struct {
	SearchURL string
	HTML      string
	Quote     PriceQuote
}

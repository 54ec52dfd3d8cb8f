package pricing

import (
	"github.com/shopspring/decimal"
)

// PriceQuote is one retailer's normalized answer for a single query.
type PriceQuote struct {
	Retailer string           `json:"retailer"`
	Price    *decimal.Decimal `json:"price"`
	URL      *string          `json:"url"`
	Title    *string          `json:"title"`
	InStock  *bool            `json:"inStock"`
	ImageURL *string          `json:"imageUrl"`
	Error    string           `json:"error,omitempty"`
}

// QuoteFields carries the optional product attributes for NewQuote.
type QuoteFields struct {
	URL      string
	Title    string
	InStock  *bool
	ImageURL string
}

// NewQuote builds a quote. A non-positive price yields an empty quote instead.
func NewQuote(retailer string, price decimal.Decimal, fields QuoteFields) PriceQuote {
	if !price.IsPositive() {
		return EmptyQuote(retailer, "price must be positive")
	}
	p := price
	return PriceQuote{
		Retailer: retailer,
		Price:    &p,
		URL:      optional(fields.URL),
		Title:    optional(fields.Title),
		InStock:  fields.InStock,
		ImageURL: optional(fields.ImageURL),
	}
}

// EmptyQuote is the single external shape of every adapter failure.
func EmptyQuote(retailer, reason string) PriceQuote {
	if reason == "" {
		reason = "no data"
	}
	return PriceQuote{Retailer: retailer, Error: reason}
}

// Valid reports whether the quote carries a usable price.
func (q PriceQuote) Valid() bool {
	return q.Price != nil && q.Price.IsPositive()
}

// URLValue returns the URL or "".
func (q PriceQuote) URLValue() string {
	if q.URL == nil {
		return ""
	}
	return *q.URL
}

// TitleValue returns the title or "".
func (q PriceQuote) TitleValue() string {
	if q.Title == nil {
		return ""
	}
	return *q.Title
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AggregationResult holds valid quotes sorted by price followed by the no-data bucket.
type AggregationResult struct {
	Quotes []PriceQuote `json:"results"`
}

// Valid returns the priced prefix of the result.
func (r AggregationResult) Valid() []PriceQuote {
	for i, q := range r.Quotes {
		if !q.Valid() {
			return r.Quotes[:i]
		}
	}
	return r.Quotes
}

// NoData returns the quotes without a usable price.
func (r AggregationResult) NoData() []PriceQuote {
	return r.Quotes[len(r.Valid()):]
}

// Cheapest returns the lowest priced quote, if any.
func (r AggregationResult) Cheapest() (PriceQuote, bool) {
	valid := r.Valid()
	if len(valid) == 0 {
		return PriceQuote{}, false
	}
	return valid[0], true
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/seapigy/procuro-site-sub000/internal/aggregator"
	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

const (
	maxTimeout    = 2 * time.Minute
	maxMatchBytes = 64 << 10
)

type retailerResponse struct {
	Success bool                `json:"success"`
	HTML    *string             `json:"html,omitempty"`
	Parsed  *pricing.PriceQuote `json:"parsed"`
	URL     string              `json:"url"`
	Error   string              `json:"error,omitempty"`
}

type aggregateResponse struct {
	Results []pricing.PriceQuote `json:"results"`
	Count   int                  `json:"count"`
	Valid   int                  `json:"valid"`
}

type evaluateResponse struct {
	aggregator.Summary
	Results []pricing.PriceQuote `json:"results"`
	Count   int                  `json:"count"`
	Valid   int                  `json:"valid"`
}

type matchRequest struct {
	Name           string          `json:"name"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
}

type matchResponse struct {
	Best       *pricing.MatchCandidate  `json:"best"`
	Candidates []pricing.MatchCandidate `json:"candidates"`
}

// listRetailers handles GET /v1/retailers and returns {"retailers": [...]}
// in aggregation order.
func (s *Server) listRetailers(w http.ResponseWriter, _ *http.Request) {
	adapters := s.aggregator.Adapters()
	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"retailers": names})
}

// probeRetailer handles GET /v1/retailers/{retailer}?keyword=&html=. It
// returns 400 without a keyword and 404 for an unknown retailer. Adapter
// failures are reported as 200 with success=false.
func (s *Server) probeRetailer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "retailer")
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		s.writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	adapter, ok := s.aggregator.Adapter(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown retailer")
		return
	}
	includeHTML, err := parseBool(r, "html")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	probe := adapter.Probe(r.Context(), keyword)
	resp := retailerResponse{
		Success: probe.Quote.Valid(),
		URL:     probe.SearchURL,
		Error:   probe.Quote.Error,
	}
	if resp.Success {
		quote := probe.Quote
		resp.Parsed = &quote
	}
	if includeHTML {
		html := probe.HTML
		resp.HTML = &html
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// aggregate handles GET /v1/aggregate?keyword=|sku=&timeout_ms=. It returns
// every retailer's quote, cheapest first, with failures at the end.
func (s *Server) aggregate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := pricing.Query{
		Keyword: strings.TrimSpace(q.Get("keyword")),
		SKU:     strings.TrimSpace(q.Get("sku")),
	}
	if query.Empty() {
		s.writeError(w, http.StatusBadRequest, pricing.ErrEmptyQuery.Error())
		return
	}
	timeout, err := parseTimeout(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.aggregator.Aggregate(r.Context(), query, aggregator.Options{Timeout: timeout})
	s.writeJSON(w, http.StatusOK, aggregateResponse{
		Results: result.Quotes,
		Count:   len(result.Quotes),
		Valid:   len(result.Valid()),
	})
}

// evaluateItem handles POST /v1/items/{item_id}/evaluate?timeout_ms=. It
// returns the persistence summary, 404 for an unknown item and 403 when
// evaluation is disabled.
func (s *Server) evaluateItem(w http.ResponseWriter, r *http.Request) {
	itemID := strings.TrimSpace(chi.URLParam(r, "item_id"))
	if itemID == "" {
		s.writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	timeout, err := parseTimeout(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.aggregator.EvaluateItem(r.Context(), itemID, aggregator.Options{Timeout: timeout})
	switch {
	case errors.Is(err, pricing.ErrItemNotFound):
		s.writeError(w, http.StatusNotFound, "item not found")
		return
	case errors.Is(err, pricing.ErrEvaluationDisabled):
		s.writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		s.logger.Error("evaluate item failed", zap.String("item_id", itemID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to evaluate item")
		return
	}
	s.writeJSON(w, http.StatusOK, evaluateResponse{
		Summary: summary,
		Results: summary.Result.Quotes,
		Count:   len(summary.Result.Quotes),
		Valid:   len(summary.Result.Valid()),
	})
}

// match handles POST /v1/match with {"name", "reference_price"} and returns
// the best candidate (null when none qualifies) plus the full ranking.
func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	if s.matcher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "matcher unavailable")
		return
	}
	var req matchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMatchBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ReferencePrice.IsNegative() {
		s.writeError(w, http.StatusBadRequest, "reference_price must be >= 0")
		return
	}

	best, ranked, err := s.matcher.FindBest(r.Context(), req.Name, req.ReferencePrice)
	if err != nil {
		if errors.Is(err, pricing.ErrEmptyQuery) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("match failed", zap.String("name", req.Name), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to match")
		return
	}
	if ranked == nil {
		ranked = []pricing.MatchCandidate{}
	}
	s.writeJSON(w, http.StatusOK, matchResponse{Best: best, Candidates: ranked})
}

// parseTimeout reads timeout_ms. Zero means the aggregator default.
func parseTimeout(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout_ms")
	if raw == "" {
		return 0, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return 0, errors.New("invalid timeout_ms")
	}
	timeout := time.Duration(ms) * time.Millisecond
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	return timeout, nil
}

func parseBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("invalid " + key)
	}
	return v, nil
}

// Package fetcher implements the resilient document fetch used by every retailer
// adapter: per-attempt timeouts, bounded retries with exponential backoff,
// rotating browser profiles, content validation and optional headless rendering.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/seapigy/procuro-site-sub000/internal/metrics"
	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Config controls the resilient fetcher defaults.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    Backoff
	Validator  *Validator
	Profiles   *UserAgentPool
	// Renderer, when set, re-fetches JS shells with a headless browser.
	Renderer pricing.Fetcher
	// Limiter, when set, paces every transport attempt.
	Limiter Limiter
}

// Limiter paces outbound requests. *ratelimit.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Resilient implements pricing.DocumentFetcher on top of a single-attempt transport.
type Resilient struct {
	transport pricing.Fetcher
	renderer  pricing.Fetcher
	limiter   Limiter
	validator *Validator
	profiles  *UserAgentPool
	backoff   Backoff
	timeout   time.Duration
	retries   int
	logger    *zap.Logger
	sleep     func(context.Context, time.Duration) error
}

var _ pricing.DocumentFetcher = (*Resilient)(nil)

// New constructs a Resilient fetcher.
func New(transport pricing.Fetcher, cfg Config, logger *zap.Logger) (*Resilient, error) {
	if transport == nil {
		return nil, errors.New("fetcher: transport is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("fetcher: max retries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Validator == nil {
		cfg.Validator = NewValidator(DefaultMinBodyBytes, nil)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = NewUserAgentPool()
	}
	return &Resilient{
		transport: transport,
		renderer:  cfg.Renderer,
		limiter:   cfg.Limiter,
		validator: cfg.Validator,
		profiles:  cfg.Profiles,
		backoff:   cfg.Backoff,
		timeout:   cfg.Timeout,
		retries:   cfg.MaxRetries,
		logger:    logger,
		sleep:     sleepCtx,
	}, nil
}

// FetchDocument fetches rawURL until it yields a validated document, the retry
// budget is spent, or a terminal failure occurs. Errors are always *pricing.FetchError.
func (r *Resilient) FetchDocument(
	ctx context.Context,
	rawURL string,
	opts pricing.FetchOptions,
) (doc pricing.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("fetch panicked", zap.String("url", rawURL), zap.Any("panic", rec))
			doc = pricing.Document{}
			err = &pricing.FetchError{URL: rawURL, Kind: pricing.ErrTerminal, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if parsed, perr := url.Parse(rawURL); perr != nil || parsed.Scheme == "" || parsed.Host == "" {
		if perr == nil {
			perr = errors.New("absolute http(s) url required")
		}
		return pricing.Document{}, &pricing.FetchError{URL: rawURL, Attempts: 1, Kind: pricing.ErrTerminal, Err: perr}
	}

	timeout, retries := r.resolve(opts)
	var last *pricing.FetchError
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			metrics.ObserveFetchRetry(rawURL)
			if serr := r.sleep(ctx, r.backoff.Delay(attempt-1)); serr != nil {
				last.Attempts = attempt
				last.Kind = pricing.ErrTerminal
				last.Err = errors.Join(last.Err, serr)
				return pricing.Document{}, last
			}
		}

		doc, ferr := r.attempt(ctx, rawURL, timeout, opts.Headers)
		if ferr == nil {
			return doc, nil
		}
		ferr.Attempts = attempt + 1
		last = ferr
		r.logger.Debug("fetch attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Int("status", ferr.StatusCode),
			zap.Error(ferr),
		)
		if !retryable(ferr) || ctx.Err() != nil {
			break
		}
	}
	return pricing.Document{}, last
}

// resolve applies fetcher defaults to unset options.
func (r *Resilient) resolve(opts pricing.FetchOptions) (time.Duration, int) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	retries := r.retries
	if opts.MaxRetries != nil && *opts.MaxRetries >= 0 {
		retries = *opts.MaxRetries
	}
	return timeout, retries
}

func (r *Resilient) attempt(
	ctx context.Context,
	rawURL string,
	timeout time.Duration,
	extra http.Header,
) (pricing.Document, *pricing.FetchError) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, rawURL); err != nil {
			return pricing.Document{}, &pricing.FetchError{URL: rawURL, Kind: pricing.ErrTerminal, Err: err}
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	headers := r.profiles.Pick().Headers()
	for key, values := range extra {
		headers.Del(key)
		for _, v := range values {
			headers.Add(key, v)
		}
	}
	req := pricing.FetchRequest{URL: rawURL, Headers: headers, Timeout: timeout}

	resp, err := r.transport.Fetch(attemptCtx, req)
	if err != nil {
		kind := classifyTransportError(ctx, err)
		metrics.ObserveFetch(rawURL, outcomeLabel(kind), 0)
		return pricing.Document{}, &pricing.FetchError{URL: rawURL, Kind: kind, Err: err}
	}
	if kind := classifyStatus(resp.StatusCode); kind != nil {
		metrics.ObserveFetch(rawURL, outcomeLabel(kind), len(resp.Body))
		return pricing.Document{}, &pricing.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Kind: kind}
	}

	if verr := r.validator.Validate(resp.Body); verr != nil {
		rendered, ok := r.render(attemptCtx, req, resp.Body)
		if !ok {
			metrics.ObserveFetch(rawURL, "invalid", len(resp.Body))
			return pricing.Document{}, &pricing.FetchError{
				URL:        rawURL,
				StatusCode: resp.StatusCode,
				Kind:       pricing.ErrValidation,
				Err:        verr,
			}
		}
		resp = rendered
	}

	metrics.ObserveFetch(rawURL, "ok", len(resp.Body))
	finalURL := resp.URL
	if finalURL == "" {
		finalURL = rawURL
	}
	return pricing.Document{Body: string(resp.Body), FinalURL: finalURL, StatusCode: resp.StatusCode}, nil
}

// render asks the headless renderer for the page when the plain body looks
// like a JS shell. The rendered body must itself pass validation.
func (r *Resilient) render(ctx context.Context, req pricing.FetchRequest, body []byte) (pricing.FetchResponse, bool) {
	if r.renderer == nil || !NeedsRender(body) {
		return pricing.FetchResponse{}, false
	}
	metrics.ObserveHeadlessPromotion(req.URL)
	resp, err := r.renderer.Fetch(ctx, req)
	if err != nil {
		r.logger.Warn("headless render failed", zap.String("url", req.URL), zap.Error(err))
		return pricing.FetchResponse{}, false
	}
	if classifyStatus(resp.StatusCode) != nil || r.validator.Validate(resp.Body) != nil {
		return pricing.FetchResponse{}, false
	}
	return resp, true
}

func outcomeLabel(kind error) string {
	switch {
	case errors.Is(kind, pricing.ErrTransient):
		return "transient"
	case errors.Is(kind, pricing.ErrTerminal):
		return "terminal"
	default:
		return "error"
	}
}

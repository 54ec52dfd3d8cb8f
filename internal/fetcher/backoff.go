package fetcher

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Backoff computes exponential retry delays: base * 2^attempt, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff mirrors the http.backoff_* config defaults.
func DefaultBackoff() Backoff {
	return Backoff{Base: 250 * time.Millisecond, Max: 5 * time.Second}
}

// Delay returns the wait before retry number attempt (zero-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	return time.Duration(delay)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classifyStatus maps an HTTP status to a failure kind, or nil for success.
// 403/404-class responses are terminal; 408, 429 and 5xx are worth retrying.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return pricing.ErrTransient
	case code >= 500:
		return pricing.ErrTransient
	default:
		return pricing.ErrTerminal
	}
}

// classifyTransportError decides whether a transport failure is transient.
// A canceled parent context always ends the retry loop.
func classifyTransportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return pricing.ErrTerminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pricing.ErrTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return pricing.ErrTransient
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return pricing.ErrTransient
	}
	return pricing.ErrTerminal
}

func retryable(err *pricing.FetchError) bool {
	return errors.Is(err.Kind, pricing.ErrTransient) || errors.Is(err.Kind, pricing.ErrValidation)
}

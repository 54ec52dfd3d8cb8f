package pricing

import (
	"errors"
	"fmt"
)

// Failure kinds raised inside the fetch layer and adapters. None of them cross
// the adapter boundary; they collapse into EmptyQuote there.
var (
	ErrTransient   = errors.New("transient network error")
	ErrTerminal    = errors.New("terminal fetch error")
	ErrParse       = errors.New("structured data parse failed")
	ErrValidation  = errors.New("document failed validation")
	ErrNoCandidate = errors.New("no product with a usable price")
)

// Store and API level errors.
var (
	ErrItemNotFound       = errors.New("item not found")
	ErrEvaluationDisabled = errors.New("item evaluation is disabled")
	ErrEmptyQuery         = errors.New("keyword or sku required")
)

// FetchError is returned by the resilient fetch layer for every failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Kind       error
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s", e.URL)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Outcome is the coarse classification emitted at the adapter boundary.
type Outcome string

// Adapter outcomes.
const (
	OutcomeOK          Outcome = "ok"
	OutcomeFetchError  Outcome = "fetch_error"
	OutcomeValidation  Outcome = "validation_error"
	OutcomeParseError  Outcome = "parse_error"
	OutcomeNoCandidate Outcome = "no_candidate"
	OutcomeBadInput    Outcome = "bad_input"
	OutcomePanic       Outcome = "panic"
)

// Classify maps an adapter-internal error to its Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrValidation):
		return OutcomeValidation
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTerminal):
		return OutcomeFetchError
	case errors.Is(err, ErrNoCandidate):
		return OutcomeNoCandidate
	case errors.Is(err, ErrParse):
		return OutcomeParseError
	default:
		return OutcomeFetchError
	}
}

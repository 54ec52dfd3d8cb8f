package fetcher

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// DefaultMinBodyBytes is the smallest body accepted as a real retailer page.
const DefaultMinBodyBytes = 512

// DefaultWrongTargetMarkers fingerprint local dev servers answering in place of a retailer.
var DefaultWrongTargetMarkers = []string{
	"/@vite/client",
	"__vite_ping",
	"webpack-dev-server",
	"/@react-refresh",
	"localhost:5173",
}

var structuralMarkers = [][]byte{
	[]byte("<html"),
	[]byte("<body"),
	[]byte("<script"),
	[]byte("<!doctype"),
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

var (
	errBodyTooShort = errors.New("body below minimum length")
	errNoStructure  = errors.New("no html structure markers")
)

// Validator decides whether a 200 response is a usable retailer document.
type Validator struct {
	minBytes    int
	wrongTarget [][]byte
}

// NewValidator constructs a Validator. Zero minBytes selects the default; nil
// markers select DefaultWrongTargetMarkers.
func NewValidator(minBytes int, wrongTargetMarkers []string) *Validator {
	if minBytes <= 0 {
		minBytes = DefaultMinBodyBytes
	}
	if wrongTargetMarkers == nil {
		wrongTargetMarkers = DefaultWrongTargetMarkers
	}
	markers := make([][]byte, 0, len(wrongTargetMarkers))
	for _, m := range wrongTargetMarkers {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		markers = append(markers, bytes.ToLower([]byte(m)))
	}
	return &Validator{minBytes: minBytes, wrongTarget: markers}
}

// Validate returns nil when body looks like a real page.
func (v *Validator) Validate(body []byte) error {
	if v == nil {
		return nil
	}
	if len(body) < v.minBytes {
		return fmt.Errorf("%w: %d < %d bytes", errBodyTooShort, len(body), v.minBytes)
	}
	lower := bytes.ToLower(body)
	if !containsAny(lower, structuralMarkers) {
		return errNoStructure
	}
	for _, marker := range v.wrongTarget {
		if bytes.Contains(lower, marker) {
			return fmt.Errorf("wrong target marker %q present", marker)
		}
	}
	return nil
}

// NeedsRender reports whether body looks like an un-rendered JS shell that a
// headless browser could turn into a usable document.
func NeedsRender(body []byte) bool {
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	if containsAny(lower, spaMarkers) {
		return true
	}
	return scriptDensityHigh(lower)
}

func containsAny(haystack []byte, needles [][]byte) bool {
	for _, n := range needles {
		if len(n) > 0 && bytes.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script tags cover at least a quarter of
// the lowercased document.
func scriptDensityHigh(lower []byte) bool {
	total := len(lower)
	if total == 0 {
		return false
	}
	openTag := []byte("<script")
	closeTag := []byte("</script>")
	covered := 0
	pos := 0
	for pos < total {
		rel := bytes.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := bytes.Index(lower[start:], closeTag)
		if end == -1 {
			covered += total - start
			break
		}
		next := start + end + len(closeTag)
		covered += next - start
		pos = next
	}
	return covered*100/total >= 25
}

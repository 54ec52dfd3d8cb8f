package retailer

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// priceKeys are tried, in order, when a price is carried inside an object.
// The first key present decides the price.
var priceKeys = []string{"price", "value", "amount", "currentPrice", "finalPrice"}

const maxPriceDepth = 1

var (
	priceNumberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?|\.\d+`)
	plainPricePattern  = regexp.MustCompile(`^(?:\d[\d,]*(?:\.\d+)?|\.\d+)$`)
	currencyMarkers    = []string{"$", "€", "£", "USD", "EUR", "GBP"}
)

// ParsePrice converts the many shapes retailers use for money into a positive
// decimal. Numbers, json.Number, currency strings ("$1,234.56") and objects
// exposing price|value|amount|currentPrice|finalPrice are understood, with one
// level of recursion into nested objects. Free text must either be a bare
// number or carry a currency marker on its first number, so "Pack of 12" and
// "2 for $5" are not prices. Anything unparseable, non-finite or non-positive
// yields nil.
func ParsePrice(v any) *decimal.Decimal {
	return parsePrice(v, 0)
}

func parsePrice(v any, depth int) *decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		d = *x
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		d = decimal.NewFromFloat(x)
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case int32:
		d = decimal.NewFromInt32(x)
	case string:
		return parsePriceText(x)
	case map[string]any:
		if depth > maxPriceDepth {
			return nil
		}
		for _, key := range priceKeys {
			if val, ok := x[key]; ok && val != nil {
				return parsePrice(val, depth+1)
			}
		}
		return nil
	default:
		return nil
	}
	if err != nil || !d.IsPositive() {
		return nil
	}
	return &d
}

func parsePriceText(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var raw string
	if plainPricePattern.MatchString(s) {
		raw = s
	} else {
		loc := priceNumberPattern.FindStringIndex(s)
		if loc == nil {
			return nil
		}
		before := strings.TrimSpace(s[:loc[0]])
		after := strings.TrimSpace(s[loc[1]:])
		marker, prefixed := currencySuffix(before)
		if !prefixed && !hasCurrencyPrefix(after) {
			return nil
		}
		if prefixed {
			before = strings.TrimSpace(strings.TrimSuffix(before, marker))
		}
		if strings.HasSuffix(before, "-") || strings.HasSuffix(before, "−") {
			return nil
		}
		raw = s[loc[0]:loc[1]]
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil || !d.IsPositive() {
		return nil
	}
	return &d
}

func currencySuffix(s string) (string, bool) {
	for _, m := range currencyMarkers {
		if len(s) >= len(m) && strings.EqualFold(s[len(s)-len(m):], m) {
			return s[len(s)-len(m):], true
		}
	}
	return "", false
}

func hasCurrencyPrefix(s string) bool {
	for _, m := range currencyMarkers {
		if len(s) >= len(m) && strings.EqualFold(s[:len(m)], m) {
			return true
		}
	}
	return false
}

var (
	inStockWords    = []string{"instock", "in stock", "in_stock", "available", "limitedavailability", "limited stock", "onlyfewleft", "presale", "yes", "true"}
	outOfStockWords = []string{"outofstock", "out of stock", "out_of_stock", "unavailable", "not available", "soldout", "sold out", "discontinued", "no", "false"}
	stockKeys       = []string{"inStock", "isInStock", "available", "isAvailable", "availability", "availabilityStatus", "status", "value"}
)

// ParseStock normalizes stock signals (booleans, quantities, status strings,
// schema.org availability URLs, nested fulfillment objects) into a tri-state.
func ParseStock(v any) *bool {
	return parseStock(v, 2)
}

func parseStock(v any, depth int) *bool {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return &x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return boolPtr(f > 0)
	case float64:
		return boolPtr(x > 0)
	case int:
		return boolPtr(x > 0)
	case string:
		return parseStockText(x)
	case map[string]any:
		if depth <= 0 {
			return nil
		}
		for _, key := range stockKeys {
			if s := parseStock(x[key], depth-1); s != nil {
				return s
			}
		}
		return nil
	default:
		return nil
	}
}

func parseStockText(s string) *bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		s = s[idx+1:]
	}
	// Negative phrases first: "not available" contains "available".
	for _, w := range outOfStockWords {
		if s == w || (len(w) > 3 && strings.Contains(s, w)) {
			return boolPtr(false)
		}
	}
	for _, w := range inStockWords {
		if s == w || (len(w) > 3 && strings.Contains(s, w)) {
			return boolPtr(true)
		}
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}

// ResolveURL resolves raw against base and returns it only when the result is
// a well-formed absolute http(s) URL; otherwise it returns "".
func ResolveURL(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return ""
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	if ref.Host == "" {
		return ""
	}
	return ref.String()
}

// dig walks a decoded JSON value along a dotted path. Numeric segments index
// arrays.
func dig(v any, path string) any {
	if path == "" {
		return v
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			v = node[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			v = node[idx]
		default:
			return nil
		}
		if v == nil {
			return nil
		}
	}
	return v
}

// collect is dig with "*" wildcards that fan out over map values and array
// elements. Map values are visited in key order for deterministic output.
func collect(v any, path string) []any {
	if path == "" {
		return []any{v}
	}
	seg, rest, _ := strings.Cut(path, ".")
	if seg != "*" {
		next := dig(v, seg)
		if next == nil {
			return nil
		}
		return collect(next, rest)
	}
	var out []any
	switch node := v.(type) {
	case map[string]any:
		for _, key := range sortedKeys(node) {
			out = append(out, collect(node[key], rest)...)
		}
	case []any:
		for _, el := range node {
			out = append(out, collect(el, rest)...)
		}
	}
	return out
}

// firstString returns the first non-empty string found at any of the paths.
func firstString(obj any, paths []string) string {
	for _, p := range paths {
		switch s := dig(obj, p).(type) {
		case string:
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		case []any:
			for _, el := range s {
				if str, ok := el.(string); ok && strings.TrimSpace(str) != "" {
					return strings.TrimSpace(str)
				}
			}
		}
	}
	return ""
}

func firstPrice(obj any, paths []string) *decimal.Decimal {
	for _, p := range paths {
		if price := ParsePrice(dig(obj, p)); price != nil {
			return price
		}
	}
	return nil
}

func firstStock(obj any, paths []string) *bool {
	for _, p := range paths {
		if s := ParseStock(dig(obj, p)); s != nil {
			return s
		}
	}
	return nil
}

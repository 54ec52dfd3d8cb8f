package retailer

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Candidate is one product located in a retailer document.
type Candidate struct {
	Title    string
	Price    *decimal.Decimal
	URL      string
	ImageURL string
	InStock  *bool
}

// Page is a fetched document prepared for extraction.
type Page struct {
	Raw string
	DOM *goquery.Document
}

// Strategy is one named way of locating products in a page. Extract returns
// pricing.ErrParse when its anchor is missing or malformed and
// pricing.ErrNoCandidate when the anchor holds no products.
type Strategy struct {
	Name    string
	Extract func(page Page) ([]Candidate, error)
}

// FieldMap lists, per attribute, the dotted paths probed inside a product object.
type FieldMap struct {
	Title []string
	Price []string
	URL   []string
	Image []string
	Stock []string
}

// Cheapest returns the candidate with the lowest valid price. Ties keep the
// earliest candidate.
func Cheapest(candidates []Candidate) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, c := range candidates {
		if c.Price == nil || !c.Price.IsPositive() {
			continue
		}
		if !found || c.Price.LessThan(*best.Price) {
			best = c
			found = true
		}
	}
	return best, found
}

// ScriptByID reads JSON from <script id="..."> and probes the product paths.
func ScriptByID(id string, paths []string, fields FieldMap) Strategy {
	return Strategy{
		Name: "script#" + id,
		Extract: func(page Page) ([]Candidate, error) {
			if page.DOM == nil {
				return nil, fmt.Errorf("%w: no dom", pricing.ErrParse)
			}
			sel := page.DOM.Find(`script[id="` + id + `"]`).First()
			if sel.Length() == 0 {
				return nil, fmt.Errorf("%w: script#%s missing", pricing.ErrParse, id)
			}
			root, err := decodeJSON(sel.Text())
			if err != nil {
				return nil, fmt.Errorf("script#%s: %w", id, err)
			}
			return productsAt(root, paths, fields)
		},
	}
}

// GlobalAssignment reads a JS global such as window.__PRELOADED_STATE__ = {...}.
func GlobalAssignment(name string, paths []string, fields FieldMap) Strategy {
	pattern := assignmentPattern(name)
	return Strategy{
		Name: "global:" + name,
		Extract: func(page Page) ([]Candidate, error) {
			blob, err := extractAssignment(page.Raw, name, pattern)
			if err != nil {
				return nil, err
			}
			root, err := decodeJSON(blob)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return productsAt(root, paths, fields)
		},
	}
}

// LDJSON reads schema.org Product entries from application/ld+json blocks.
func LDJSON() Strategy {
	return Strategy{
		Name: "ld+json",
		Extract: func(page Page) ([]Candidate, error) {
			if page.DOM == nil {
				return nil, fmt.Errorf("%w: no dom", pricing.ErrParse)
			}
			blocks := page.DOM.Find(`script[type="application/ld+json"]`)
			if blocks.Length() == 0 {
				return nil, fmt.Errorf("%w: no ld+json blocks", pricing.ErrParse)
			}
			var (
				out    []Candidate
				parsed int
			)
			blocks.Each(func(_ int, s *goquery.Selection) {
				root, err := decodeJSON(s.Text())
				if err != nil {
					return
				}
				parsed++
				for _, product := range schemaProducts(root, 0) {
					out = append(out, ldCandidate(product))
				}
			})
			if parsed == 0 {
				return nil, fmt.Errorf("%w: ld+json blocks malformed", pricing.ErrParse)
			}
			return checkCandidates(out)
		},
	}
}

// CardSelectors describes server-rendered search result cards.
type CardSelectors struct {
	Card       string
	Title      string
	Price      string
	Link       string
	Image      string
	OutOfStock string
}

// HTMLCards scrapes product cards with goquery selectors.
func HTMLCards(name string, sel CardSelectors) Strategy {
	return Strategy{
		Name: "cards:" + name,
		Extract: func(page Page) ([]Candidate, error) {
			if page.DOM == nil {
				return nil, fmt.Errorf("%w: no dom", pricing.ErrParse)
			}
			cards := page.DOM.Find(sel.Card)
			if cards.Length() == 0 {
				return nil, fmt.Errorf("%w: no %s cards", pricing.ErrParse, name)
			}
			out := make([]Candidate, 0, cards.Length())
			cards.Each(func(_ int, card *goquery.Selection) {
				c := Candidate{
					Title: strings.Join(strings.Fields(card.Find(sel.Title).First().Text()), " "),
					Price: ParsePrice(strings.TrimSpace(card.Find(sel.Price).First().Text())),
				}
				if sel.Link != "" {
					c.URL, _ = card.Find(sel.Link).First().Attr("href")
				}
				if sel.Image != "" {
					img := card.Find(sel.Image).First()
					c.ImageURL = img.AttrOr("src", img.AttrOr("data-src", ""))
				}
				if sel.OutOfStock != "" {
					c.InStock = boolPtr(card.Find(sel.OutOfStock).Length() == 0)
				}
				out = append(out, c)
			})
			return checkCandidates(out)
		},
	}
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", pricing.ErrParse, err)
	}
	return v, nil
}

// productsAt gathers product objects from every path and maps them to candidates.
func productsAt(root any, paths []string, fields FieldMap) ([]Candidate, error) {
	var out []Candidate
	for _, path := range paths {
		for _, node := range collect(root, path) {
			switch v := node.(type) {
			case []any:
				for _, el := range v {
					if obj, ok := el.(map[string]any); ok {
						out = append(out, fieldCandidate(obj, fields))
					}
				}
			case map[string]any:
				out = append(out, fieldCandidate(v, fields))
			}
		}
	}
	return checkCandidates(out)
}

func fieldCandidate(obj map[string]any, fields FieldMap) Candidate {
	return Candidate{
		Title:    firstString(obj, fields.Title),
		Price:    firstPrice(obj, fields.Price),
		URL:      firstString(obj, fields.URL),
		ImageURL: firstString(obj, fields.Image),
		InStock:  firstStock(obj, fields.Stock),
	}
}

func checkCandidates(out []Candidate) ([]Candidate, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty results", pricing.ErrNoCandidate)
	}
	if _, ok := Cheapest(out); !ok {
		return out, fmt.Errorf("%w: all %d candidate prices invalid", pricing.ErrNoCandidate, len(out))
	}
	return out, nil
}

// schemaProducts walks a decoded ld+json value for Product nodes, descending
// through @graph arrays, ItemList elements and ListItem wrappers.
func schemaProducts(v any, depth int) []map[string]any {
	if depth > 6 {
		return nil
	}
	switch node := v.(type) {
	case []any:
		var out []map[string]any
		for _, el := range node {
			out = append(out, schemaProducts(el, depth+1)...)
		}
		return out
	case map[string]any:
		if hasType(node, "Product") {
			return []map[string]any{node}
		}
		var out []map[string]any
		for _, key := range []string{"@graph", "itemListElement", "item", "mainEntity"} {
			if child, ok := node[key]; ok {
				out = append(out, schemaProducts(child, depth+1)...)
			}
		}
		return out
	}
	return nil
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func ldCandidate(product map[string]any) Candidate {
	c := Candidate{
		Title: firstString(product, []string{"name"}),
		URL:   firstString(product, []string{"url", "offers.url", "offers.0.url"}),
	}
	switch img := product["image"].(type) {
	case string:
		c.ImageURL = img
	case []any:
		c.ImageURL = firstString(product, []string{"image"})
	case map[string]any:
		c.ImageURL = firstString(img, []string{"url", "contentUrl"})
	}
	offers := product["offers"]
	if list, ok := offers.([]any); ok {
		var cands []Candidate
		for _, o := range list {
			cands = append(cands, Candidate{
				Price:   firstPrice(o, []string{"price", "lowPrice", "priceSpecification.price"}),
				InStock: firstStock(o, []string{"availability"}),
			})
		}
		if best, ok := Cheapest(cands); ok {
			c.Price, c.InStock = best.Price, best.InStock
		}
		return c
	}
	c.Price = firstPrice(offers, []string{"price", "lowPrice", "priceSpecification.price"})
	c.InStock = firstStock(offers, []string{"availability"})
	return c
}

var errAssignmentMissing = errors.New("assignment not found")

// extractAssignment finds `window.NAME = {...}`, `window['NAME'] = {...}`,
// `NAME = {...}` or `NAME = JSON.parse("...")` and returns the JSON text.
func extractAssignment(raw, name string, pattern *regexp.Regexp) (string, error) {
	loc := pattern.FindStringIndex(raw)
	if loc == nil {
		return "", fmt.Errorf("%w: %s %w", pricing.ErrParse, name, errAssignmentMissing)
	}
	rest := strings.TrimLeft(raw[loc[1]:], " \t\r\n")
	if after, ok := strings.CutPrefix(rest, "JSON.parse("); ok {
		lit, err := balanced(strings.TrimLeft(after, " \t\r\n"))
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", pricing.ErrParse, name, err)
		}
		var decoded string
		if err := json.Unmarshal([]byte(normalizeQuotes(lit)), &decoded); err != nil {
			return "", fmt.Errorf("%w: %s: %w", pricing.ErrParse, name, err)
		}
		return decoded, nil
	}
	blob, err := balanced(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", pricing.ErrParse, name, err)
	}
	return blob, nil
}

func assignmentPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(
		`(?:window\.|window\[\s*['"]|\b(?:var|let|const)\s+|[;\s{(])` +
			regexp.QuoteMeta(name) + `(?:['"]\s*\])?\s*=\s*`,
	)
}

// balanced returns the leading JSON object, array or string literal of s.
func balanced(s string) (string, error) {
	if s == "" {
		return "", errors.New("empty value")
	}
	switch s[0] {
	case '"', '\'':
		quote := s[0]
		for i := 1; i < len(s); i++ {
			switch s[i] {
			case '\\':
				i++
			case quote:
				return s[:i+1], nil
			}
		}
		return "", errors.New("unterminated string literal")
	case '{', '[':
	default:
		return "", fmt.Errorf("unexpected value start %q", s[0])
	}
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch ch {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced braces")
}

// normalizeQuotes turns a single-quoted JS string literal into a JSON one.
func normalizeQuotes(lit string) string {
	if len(lit) < 2 || lit[0] != '\'' {
		return lit
	}
	body := lit[1 : len(lit)-1]
	body = strings.ReplaceAll(body, `\'`, `'`)
	body = strings.ReplaceAll(body, `"`, `\"`)
	return `"` + body + `"`
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

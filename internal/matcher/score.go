// Package matcher picks the retailer product that best matches an item name
// when no retailer result has been chosen yet. Candidates are scored on title
// similarity, price plausibility against a reference price and packaging size.
package matcher

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Score weights and bounds.
const (
	titleWeight = 0.6
	priceWeight = 0.2
	sizeWeight  = 0.2
	// neutralSize is used when either side lacks packaging text.
	neutralSize = 0.1

	containmentFactor = 0.95

	minPlausibleRatio = 0.25
	maxPlausibleRatio = 4.0
	// implausiblePenalty multiplies the whole composite, not only the price term.
	implausiblePenalty = 0.3
)

var stopwords = map[string]bool{
	"the":   true,
	"pack":  true,
	"box":   true,
	"case":  true,
	"count": true,
	"ct":    true,
	"of":    true,
	"a":     true,
	"an":    true,
}

// sizePattern matches a leading quantity followed by a packaging unit, e.g. "500 sheets", "12oz".
var sizePattern = regexp.MustCompile(`(\d+)\s*(sheet|count|ct|pack|oz|lb|kg|ml|g|l)s?\b`)

// Normalize folds a product title for comparison: compatibility decomposition
// with diacritics dropped, lowercase, punctuation as whitespace, stopwords
// removed and whitespace collapsed.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFKD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left by the decomposition
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte(' ')
		}
	}
	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Similarity compares two titles after normalization and returns a value in
// [0, 1]. A title with nothing left after normalization matches nothing.
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	short, long := a, b
	ls, ll := la, lb
	if la > lb {
		short, long = b, a
		ls, ll = lb, la
	}
	if strings.Contains(long, short) {
		return float64(ls) / float64(ll) * containmentFactor
	}
	return 1 - float64(Levenshtein(a, b))/float64(max(la, lb))
}

// Levenshtein returns the rune-level edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// PriceScore rates price against reference. plausible is false when the
// ratio falls outside [0.25, 4.0]; the score is then 0 and the caller
// penalizes the composite. A non-positive reference carries no signal.
func PriceScore(price, reference decimal.Decimal) (score float64, plausible bool) {
	if !reference.IsPositive() {
		return 0, true
	}
	ratio := price.Div(reference).InexactFloat64()
	if ratio < minPlausibleRatio || ratio > maxPlausibleRatio {
		return 0, false
	}
	diff := price.Sub(reference).Abs().Div(reference).InexactFloat64()
	return max(0, 1-diff), true
}

// SizeScore compares packaging quantities on a 0 to 0.2 scale. When either
// side has no recognizable size it returns the neutral 0.1.
func SizeScore(query, title string) float64 {
	a, okA := packageSize(query)
	b, okB := packageSize(title)
	if !okA || !okB {
		return neutralSize
	}
	return sizeWeight * float64(min(a, b)) / float64(max(a, b))
}

func packageSize(s string) (int, bool) {
	m := sizePattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Score is the composite 0.6*title + 0.2*price + size. An implausible price
// contributes nothing and multiplies the entire composite by 0.3.
func Score(query, title string, price, reference decimal.Decimal) float64 {
	priceScore, plausible := PriceScore(price, reference)
	score := titleWeight*Similarity(query, title) + priceWeight*priceScore + SizeScore(query, title)
	if !plausible {
		score *= implausiblePenalty
	}
	return min(max(score, 0), 1)
}

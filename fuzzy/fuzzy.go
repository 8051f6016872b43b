// Package fuzzy scores how well a query string matches a candidate field value.
//
// Two modes are supported. Exact mode is case-insensitive substring containment and
// scores either 0 or 100. Fuzzy mode is a weighted similarity ratio over normalized
// strings built on Levenshtein distance with insert/delete cost 1 and substitute
// cost 2, blended with token-order-insensitive and partial-window variants so that
// "Smith, John", "john smith" and "John Smith Jr" all score well against "John Smith".
//
// Distances are computed over the UTF-8 bytes of the normalized strings.
//
// All functions are pure and safe for concurrent use.
package fuzzy

import (
	"math"
	"slices"
	"strings"

	"github.com/xrash/smetrics"
)

// Mode selects the comparison used by Score.
type Mode int

const (
	Exact Mode = iota
	Fuzzy
)

func (m Mode) String() string {
	if m == Fuzzy {
		return "fuzzy"
	}
	return "exact"
}

const (
	insertCost     = 1
	deleteCost     = 1
	substituteCost = 2

	tokenScale       = 0.95
	partialScale     = 0.9
	farPartialScale  = 0.6
	partialLenRatio  = 1.5
	farPartialRatio  = 8.0
	differentMaximum = 99
)

// Query is a prepared query. Normalization and tokenization happen once in Prepare
// so that scoring many candidates does not repeat them.
type Query struct {
	mode   Mode
	raw    string
	folded string
	norm   string
	sorted string
	set    []string
}

// Prepare normalizes a query for repeated scoring.
func Prepare(query string, mode Mode) *Query {
	q := &Query{mode: mode, raw: query}
	if mode == Exact {
		q.folded = Fold(strings.TrimSpace(query))
		return q
	}
	q.norm = Normalize(query)
	tokens := strings.Fields(q.norm)
	slices.Sort(tokens)
	q.sorted = strings.Join(tokens, " ")
	q.set = slices.Compact(tokens)
	return q
}

func (q *Query) Mode() Mode     { return q.mode }
func (q *Query) String() string { return q.raw }

// Score compares query and candidate in the given mode.
func Score(query, candidate string, mode Mode) int {
	return Prepare(query, mode).Score(candidate)
}

// Score returns the similarity of candidate to the prepared query in 0..100.
func (q *Query) Score(candidate string) int {
	if q.mode == Exact {
		return q.exact(candidate)
	}
	return q.fuzzy(candidate)
}

func (q *Query) exact(candidate string) int {
	c := Fold(strings.TrimSpace(candidate))
	if q.folded == "" || c == "" {
		return 0
	}
	if strings.Contains(c, q.folded) {
		return 100
	}
	return 0
}

func (q *Query) fuzzy(candidate string) int {
	c := Normalize(candidate)
	if q.norm == c {
		if c == "" {
			return 0
		}
		return 100
	}
	if q.norm == "" || c == "" {
		return 0
	}

	cTokens := strings.Fields(c)
	slices.Sort(cTokens)
	cSorted := strings.Join(cTokens, " ")
	cSet := slices.Compact(cTokens)

	best := ratio(q.norm, c)

	shorter, longer := len(q.norm), len(c)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	lenRatio := float64(longer) / float64(shorter)

	if lenRatio < partialLenRatio {
		best = max(best,
			ratio(q.sorted, cSorted)*tokenScale,
			tokenSetRatio(q.set, cSet, ratio)*tokenScale,
		)
	} else {
		scale := partialScale
		if lenRatio > farPartialRatio {
			scale = farPartialScale
		}
		best = max(best,
			partialRatio(q.norm, c)*scale,
			partialRatio(q.sorted, cSorted)*tokenScale*scale,
			tokenSetRatio(q.set, cSet, partialRatio)*tokenScale*scale,
		)
	}

	score := int(math.Round(best))
	if score > differentMaximum {
		score = differentMaximum
	}
	return score
}

// ratio is the normalized Levenshtein similarity in 0..100.
func ratio(a, b string) float64 {
	lensum := len(a) + len(b)
	if lensum == 0 {
		return 100
	}
	dist := smetrics.WagnerFischer(a, b, insertCost, deleteCost, substituteCost)
	return 100 * float64(lensum-dist) / float64(lensum)
}

// partialRatio is the best ratio of the shorter string against every window of the
// longer string with the same length.
func partialRatio(a, b string) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		if len(b) == 0 {
			return 100
		}
		return 0
	}
	best := 0.0
	for i := 0; i+len(a) <= len(b); i++ {
		r := ratio(a, b[i:i+len(a)])
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// tokenSetRatio compares the shared tokens of two sorted, de-duplicated token lists
// against each side's shared-plus-remaining tokens and keeps the best result.
func tokenSetRatio(a, b []string, cmp func(string, string) float64) float64 {
	var common, onlyA, onlyB []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			common = append(common, a[i])
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)

	base := strings.Join(common, " ")
	withA := joinNonEmpty(base, strings.Join(onlyA, " "))
	withB := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := cmp(withA, withB)
	if base != "" {
		best = max(best, cmp(base, withA), cmp(base, withB))
	}
	return best
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

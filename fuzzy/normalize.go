package fuzzy

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Transformers and casers keep internal state, so each goroutine borrows its own.
var (
	stripPool = sync.Pool{New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	}}
	foldPool = sync.Pool{New: func() any {
		c := cases.Fold()
		return &c
	}}
)

// Fold case-folds s without any other change. Non-ASCII text is upper-cased
// first so letters whose lower and upper forms fold apart (Turkish ı and I)
// share a key.
func Fold(s string) string {
	if !isASCII(s) {
		s = strings.ToUpper(s)
	}
	c := foldPool.Get().(*cases.Caser)
	defer foldPool.Put(c)
	c.Reset()
	return c.String(s)
}

// Normalize trims, collapses internal whitespace, case-folds and strips combining
// marks so "  Ánna   WONG " and "anna wong" compare equal.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	if !isASCII(s) {
		t := stripPool.Get().(transform.Transformer)
		t.Reset()
		if out, _, err := transform.String(t, s); err == nil {
			s = out
		}
		stripPool.Put(t)
	}
	return Fold(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

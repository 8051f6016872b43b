package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
	"github.com/poiesic/rowseek/core"
)

// ErrUnparseableDate indicates text that no supported date layout accepts.
var ErrUnparseableDate = errors.New("unparseable date")

// fallbackLayouts are tried after dateparse gives up. Day-first forms come first;
// exports from European systems use them most.
var fallbackLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"02/01/06",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"02-Jan-2006",
	"2006.01.02",
	"20060102",
}

// ParseDate parses date text in UTC. It accepts anything araddon/dateparse accepts,
// retrying ambiguous month/day order, then a list of day-first and month-name layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrUnparseableDate)
	}
	if t, err := dateparse.ParseIn(s, time.UTC, dateparse.RetryAmbiguousDateWithSwap(true)); err == nil {
		// the day/month swap retry parses in the local zone; keep the wall clock in UTC
		if t.Location() == time.Local && time.Local != time.UTC {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		}
		return t, nil
	}
	cleaned := strings.ReplaceAll(s, ",", "")
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
}

// DateOf interprets a field value as a point in time.
func DateOf(v core.Value) (time.Time, error) {
	switch v.Kind() {
	case core.KindTime:
		return v.Time(), nil
	case core.KindString:
		return ParseDate(v.Str())
	case core.KindInt:
		text, _ := v.Render()
		return ParseDate(text)
	default:
		return time.Time{}, fmt.Errorf("%w: %s value", ErrUnparseableDate, v.Kind())
	}
}

// looksLikeDate is a cheap pre-check used when scanning every column for dates.
func looksLikeDate(s string) bool {
	if len(s) < 6 || len(s) > 40 {
		return false
	}
	digits, seps := 0, 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '-' || r == '/' || r == '.' || r == ' ' || r == ':' || r == 'T':
			seps++
		}
	}
	return digits >= 4 && seps > 0
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

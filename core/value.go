package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tags the scalar type held by a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged scalar. The zero Value is Absent.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

// Absent is the single sentinel for a missing field.
var Absent = Value{}

func StringValue(s string) Value  { return Value{kind: KindString, s: s} }
func IntValue(i int64) Value      { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value  { return Value{kind: KindFloat, f: f} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }
func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t} }
func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsAbsent() bool    { return v.kind == KindAbsent }
func (v Value) Str() string       { return v.s }
func (v Value) Int() int64        { return v.i }
func (v Value) Float() float64    { return v.f }
func (v Value) Bool() bool        { return v.b }
func (v Value) Time() time.Time   { return v.t }

// Markers is a set of placeholder strings that mean "no value".
type Markers map[string]struct{}

// NewMarkers builds a marker set. Entries are trimmed; matching is exact.
func NewMarkers(list ...string) Markers {
	m := make(Markers, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s != "" {
			m[s] = struct{}{}
		}
	}
	return m
}

// Has reports whether s (already trimmed) is a placeholder.
func (m Markers) Has(s string) bool {
	_, ok := m[s]
	return ok
}

// DefaultMissingMarkers are the placeholders spreadsheet and dataframe exports emit
// for empty cells.
var DefaultMissingMarkers = NewMarkers("nan", "NaN", "NAN", "NaT", "<NA>", "null", "NULL")

// ValueOf converts a raw field into a Value. nil, blank strings, placeholder markers
// and NaN floats all collapse to Absent; ok is false in that case.
func ValueOf(raw any, markers Markers) (Value, bool) {
	switch x := raw.(type) {
	case nil:
		return Absent, false
	case Value:
		return x, !x.IsAbsent()
	case string:
		return stringValue(x, markers)
	case []byte:
		return stringValue(string(x), markers)
	case bool:
		return BoolValue(x), true
	case int:
		return IntValue(int64(x)), true
	case int8:
		return IntValue(int64(x)), true
	case int16:
		return IntValue(int64(x)), true
	case int32:
		return IntValue(int64(x)), true
	case int64:
		return IntValue(x), true
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return IntValue(int64(x)), true
	case uint16:
		return IntValue(int64(x)), true
	case uint32:
		return IntValue(int64(x)), true
	case uint64:
		return uintValue(x)
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case time.Time:
		if x.IsZero() {
			return Absent, false
		}
		return TimeValue(x), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return Absent, false
		}
		return TimeValue(*x), true
	case fmt.Stringer:
		return stringValue(x.String(), markers)
	default:
		return stringValue(fmt.Sprint(x), markers)
	}
}

func stringValue(s string, markers Markers) (Value, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || markers.Has(trimmed) {
		return Absent, false
	}
	return StringValue(s), true
}

func uintValue(u uint64) (Value, bool) {
	if u > math.MaxInt64 {
		return StringValue(strconv.FormatUint(u, 10)), true
	}
	return IntValue(int64(u)), true
}

func floatValue(f float64) (Value, bool) {
	if math.IsNaN(f) {
		return Absent, false
	}
	return FloatValue(f), true
}

// Render returns the canonical text form used for matching and export.
func (v Value) Render() (string, error) {
	switch v.kind {
	case KindAbsent:
		return "", nil
	case KindString:
		return v.s, nil
	case KindInt:
		return strconv.FormatInt(v.i, 10), nil
	case KindFloat:
		if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
			return "", fmt.Errorf("%w: %v", ErrUnrenderable, v.f)
		}
		return strconv.FormatFloat(v.f, 'f', -1, 64), nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	case KindTime:
		if isMidnight(v.t) {
			return v.t.Format(time.DateOnly), nil
		}
		return v.t.Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnrenderable, v.kind)
	}
}

// Interface returns the Go value held, or nil when absent.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	default:
		return nil
	}
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

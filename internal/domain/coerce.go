package domain

import (
	"math"
	"strconv"
	"strings"
)

// nullSentinel is how several city exports spell a missing value.
const nullSentinel = "NULL"

// ParseIntOrZero parses s as an integer. Decimal strings are truncated toward
// zero and values beyond the int range saturate. Empty, "NULL" and
// unparseable input yield 0.
func ParseIntOrZero(s string) int {
	return ParseIntOr(s, 0)
}

// ParseIntOr is ParseIntOrZero with a caller-chosen fallback.
func ParseIntOr(s string, fallback int) int {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, nullSentinel) {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return saturateInt(f)
}

// saturateInt truncates f toward zero, clamping to the int range.
// float64(math.MaxInt) rounds up to 2^63, which int cannot hold.
func saturateInt(f float64) int {
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt
	case f <= float64(math.MinInt):
		return math.MinInt
	}
	return int(f)
}

// ParseFloatOrZero parses s as a float. NaN and infinities are rejected so the
// result is always JSON-encodable.
func ParseFloatOrZero(s string) float64 {
	return ParseFloatOr(s, 0)
}

// ParseFloatOr is ParseFloatOrZero with a caller-chosen fallback.
func ParseFloatOr(s string, fallback float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, nullSentinel) {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return f
}

// ParseCount parses human-formatted counts such as "1,234" and "12.5%".
// The second return value is false when nothing numeric is present.
func ParseCount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "%", "", "$", "").Replace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseFlag interprets the yes/no encodings used across city exports.
func ParseFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "YES", "TRUE", "1":
		return true
	}
	return false
}

// Round rounds x to the given number of decimal places, half away from zero.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

package chartdata

import (
	"math"
	"strings"
	"time"
)

// instantLayouts are tried in order for anything shaped like a full calendar
// timestamp, either carrying an explicit offset or after the UTC suffix has
// been applied to a naive string.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// fallbackLayouts are the generic last-resort parse attempts for strings
// outside the recognized shapes.
var fallbackLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
}

// NormalizeTimestamp parses one of the timestamp encodings the collector and
// the rollup tiers emit and returns the instant as epoch milliseconds.
//
// Recognized shapes, in order:
//
//	2024-01-12T10:00:00Z / 2024-01-12T10:00:00+02:00  absolute instant, as given
//	2024-01-12T10:00:00                               naive, interpreted as UTC
//	2024-01-12 10:00                                  hourly rollup, UTC start of minute
//	2024-01-12                                        daily rollup, UTC start of day
//	2024-01                                           monthly rollup, UTC start of month
//
// Naive strings are deliberately pinned to UTC rather than the viewer's zone:
// rollup timestamps are produced without zone information and the whole
// system standardizes on UTC, adjusting only at display time.
//
// Unparseable input yields NaN rather than an error so that one bad point
// degrades to a single gap instead of blanking the chart.
func NormalizeTimestamp(raw string) float64 {
	s := strings.TrimSpace(raw)
	switch {
	case hasExplicitOffset(s):
		// absolute instant, parse as given
	case strings.ContainsRune(s, 'T'):
		s += "Z"
	case len(s) == 16 && s[10] == ' ':
		s = s[:10] + "T" + s[11:] + ":00Z"
	case len(s) == 10 && strings.Count(s, "-") == 2:
		s += "T00:00:00Z"
	case len(s) == 7 && strings.Count(s, "-") == 1:
		s += "-01T00:00:00Z"
	default:
		return parseFallback(raw)
	}

	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixMilli())
		}
	}
	return parseFallback(raw)
}

// hasExplicitOffset reports whether the string pins its own zone. A '+' or
// '-' after the date/time separator can only belong to an offset suffix.
func hasExplicitOffset(s string) bool {
	if strings.HasSuffix(s, "Z") {
		return true
	}
	i := strings.IndexByte(s, 'T')
	if i < 0 {
		return false
	}
	return strings.ContainsAny(s[i+1:], "+-")
}

func parseFallback(raw string) float64 {
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return float64(t.UnixMilli())
		}
	}
	return math.NaN()
}

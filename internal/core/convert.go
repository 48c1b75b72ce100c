package core

// convert.go provides the field parsers used to turn raw CSV cells into
// numbers, durations and dates.
//
// These functions handle the messy reality of device and spreadsheet exports:
//   - Durations written as m:s or h:m:s, or as plain seconds
//   - Thousands separators and stray whitespace in numbers
//   - "--" placeholders for metrics the device did not record
//   - Excel formula prefixes (="value") and BOMs left in cells
//
// Parsers never fail loudly. An unparsable cell is reported as absent and
// the caller decides whether that matters.

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006/1/2", "2006.01.02", "2006年1月2日",
		"2006-01-02 15:04:05", "2006-01-02 15:04", "2006/01/02 15:04:05", "2006/01/02 15:04",
		"2006-01-02T15:04:05", "2006-01-02T15:04:05Z07:00",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// missingMarkers are cells devices write for metrics they did not record.
var missingMarkers = map[string]bool{"--": true, "-": true, "\u2014": true}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace and a leading BOM
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// isMissing reports whether a cleaned cell carries no value.
func isMissing(s string) bool {
	return s == "" || missingMarkers[s]
}

// parseNumber parses a cell as a finite float.
// Thousands separators and embedded spaces are ignored.
func parseNumber(s string) (float64, bool) {
	s = CleanCell(s)
	if isMissing(s) {
		return 0, false
	}
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "\u3000", "").Replace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDuration converts "m:s", "h:m:s" or a plain number to seconds.
// Seconds may carry a fraction ("4:05.3"). Anything else is absent.
func ParseDuration(s string) (float64, bool) {
	s = CleanCell(s)
	if isMissing(s) {
		return 0, false
	}

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		return parseNumber(parts[0])
	case 2, 3:
		var total float64
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				return 0, false
			}
			v, err := strconv.ParseFloat(p, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return 0, false
			}
			total = total*60 + v
		}
		return total, true
	default:
		return 0, false
	}
}

// ParsePace converts a per-kilometer pace ("4:00") to seconds per km.
// It accepts the same grammar as ParseDuration.
func ParsePace(s string) (float64, bool) {
	return ParseDuration(s)
}

// CoerceNumeric converts a value to int64 or float64 where possible.
// Numbers pass through, strings are cleaned and parsed, and integral values
// narrow to int64. NaN, infinities and unparsable input return nil.
func CoerceNumeric(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case float32:
		return finiteOrNil(float64(x))
	case float64:
		return finiteOrNil(x)
	case string:
		f, ok := parseNumber(x)
		if !ok {
			return nil
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	default:
		return nil
	}
}

func finiteOrNil(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// parseDate parses a date cell using the supported layouts.
// Supports multiple date formats and handles 2-digit years with pivot.
func parseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

func floatPtr(f float64) *float64 { return &f }

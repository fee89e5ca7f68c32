package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NormalizeID converts an id-like cell to a stable string. Spreadsheet ids
// frequently arrive as floats ("10086.0", "1.23e+10"); integral numerics are
// rendered without a fraction or exponent. Blank and nan cells become "".
func NormalizeID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) {
			return ""
		}
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

// ParseFloat parses a numeric cell; blank or unparseable cells are NaN.
func ParseFloat(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// dateLayouts covers the formats seen in exported workbooks.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01-02-06",
	"20060102",
}

// ParseDate parses a date cell against the known layouts.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseYesNo normalizes a yes/no cell to a boolean; unknown values read as
// no.
func ParseYesNo(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "是", "1", "1.0", "Y", "y", "true", "True":
		return true
	default:
		return false
	}
}

package core

// convert.go turns raw CSV cells into typed values.
//
// The rules are deliberately narrow so that inference is predictable:
//   - Blank cells are Null
//   - Only "true" and "false" (any case) are booleans
//   - Numbers may carry one layer of thousands separators; currency symbols are not stripped
//   - Dates must fully match one of dateLayouts and be a real calendar date
//
// Numbers are tried before dates so that "2024" stays a number.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a plain decimal or scientific number.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// thousandsRegex matches digit groups of three separated by commas, e.g. "-1,234,567.89".
var thousandsRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// dateLayouts are tried in order; the first full match wins.
var dateLayouts = []string{
	"2006-01-02", // YYYY-MM-DD
	"01/02/2006", // MM/DD/YYYY
	"1/2/2006",   // M/D/YYYY
}

// Infer classifies a raw cell and returns its typed value. It never fails;
// anything that is not null, boolean, numeric or a date is returned as the
// trimmed text.
func Infer(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Null()
	}

	if b, ok := parseBool(s); ok {
		return Bool(b)
	}

	if f, ok := parseNumber(s); ok {
		return Number(f)
	}

	if t, ok := parseDate(s); ok {
		return Date(t.Year(), t.Month(), t.Day())
	}

	return String(s)
}

func parseBool(s string) (bool, bool) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	default:
		return false, false
	}
}

// parseNumber strips a single layer of thousands separators and parses the
// remainder as a finite float64.
func parseNumber(s string) (float64, bool) {
	if thousandsRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// parseDate accepts only the layouts in dateLayouts. time.Parse rejects
// out-of-range months and days (including February 30).
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

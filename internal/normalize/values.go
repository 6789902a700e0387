package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reVintage     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	reFirstInt    = regexp.MustCompile(`-?\d+`)
	reNumber      = regexp.MustCompile(`-?\d[\d.,]*`)
	reDigitsOnly  = regexp.MustCompile(`^\d+$`)
	currencyStrip = strings.NewReplacer("€", "", "$", "", "£", "", " ", "", "\u00a0", "", "'", "")
)

// ParseVintage extracts the first 4-digit year in 1900-2099.
func ParseVintage(s string) (int, bool) {
	m := reVintage.FindString(s)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// ParseQty takes the first integer token: "12 bottiglie" is 12.
func ParseQty(s string) (int, bool) {
	m := reFirstInt.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDecimal reads a number written with either decimal convention and
// optional thousands separators: "1.234,50", "1,234.50", "8,50", "€ 12".
// When both separators appear the last one is the decimal mark; a single comma is
// decimal, repeated commas or dots are thousands separators.
func ParseDecimal(s string) (float64, bool) {
	s = currencyStrip.Replace(strings.TrimSpace(s))
	m := reNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	neg := strings.HasPrefix(m, "-")
	m = strings.TrimRight(strings.TrimPrefix(m, "-"), ".,")

	lastDot, lastComma := strings.LastIndex(m, "."), strings.LastIndex(m, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			m = strings.ReplaceAll(m, ".", "")
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(m, ",") > 1 {
			m = strings.ReplaceAll(m, ",", "")
		} else {
			m = strings.Replace(m, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(m, ".") > 1 {
			m = strings.ReplaceAll(m, ".", "")
		}
	}

	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// ParseAlcohol reads "14,5% vol" style values.
func ParseAlcohol(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.ToLower(s), "%", "")
	s = strings.ReplaceAll(s, "vol", "")
	return ParseDecimal(s)
}

// IsNumeric reports whether s only holds digits, as IDs in a producer column do.
func IsNumeric(s string) bool {
	return reDigitsOnly.MatchString(strings.TrimSpace(s))
}

package util

import (
	"regexp"
	"strconv"
	"strings"
)

var reThousandsDot = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

// ParseNumber converts a localized numeric token to a float. Spanish
// invoices write thousands with "." and decimals with ","
// ("12.500,45" -> 12500.45); plain and anglo forms are accepted too.
func ParseNumber(input string) (float64, bool) {
	token := strings.TrimSpace(input)
	token = strings.ReplaceAll(token, " ", "")
	token = strings.ReplaceAll(token, " ", "")
	token = strings.Trim(token, "€$")
	token = strings.TrimSuffix(strings.TrimSuffix(token, "EUR"), "eur")
	if token == "" {
		return 0, false
	}

	neg := strings.HasPrefix(token, "-")
	token = strings.TrimPrefix(token, "-")

	hasDot := strings.Contains(token, ".")
	hasComma := strings.Contains(token, ",")

	switch {
	case hasDot && hasComma:
		if strings.LastIndex(token, ",") > strings.LastIndex(token, ".") {
			// Spanish: "." thousands, "," decimal.
			token = strings.ReplaceAll(token, ".", "")
			token = strings.ReplaceAll(token, ",", ".")
		} else {
			// Anglo: "," thousands, "." decimal.
			token = strings.ReplaceAll(token, ",", "")
		}
	case hasComma:
		parts := strings.Split(token, ",")
		if len(parts[len(parts)-1]) <= 2 && len(parts) == 2 {
			token = strings.ReplaceAll(token, ",", ".")
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	case hasDot:
		if reThousandsDot.MatchString(token) {
			token = strings.ReplaceAll(token, ".", "")
		}
	}

	parsed, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		parsed = -parsed
	}
	return parsed, true
}

// Round2 rounds to two decimal places, the precision CO2e and monetary
// amounts are reported at.
func Round2(v float64) float64 {
	scaled := v * 100
	if scaled < 0 {
		return float64(int64(scaled-0.5)) / 100
	}
	return float64(int64(scaled+0.5)) / 100
}

func ParseFloatPtr(input string) *float64 {
	if v, ok := ParseNumber(input); ok {
		return FloatPtr(v)
	}
	return nil
}

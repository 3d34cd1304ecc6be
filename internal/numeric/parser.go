// Package numeric converts the numeric encodings found in bank POS exports
// into float64 values.
package numeric

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	currencyMarkers = strings.NewReplacer("₺", "", "TRY", "", "TL", "")
	spaceRemover    = strings.NewReplacer(" ", "", "\u00a0", "", "\t", "")
	zeroPadded      = regexp.MustCompile(`^0+\d`)
)

// Parse converts a cell value into a float64. It never fails: values that
// cannot be interpreted yield 0.
//
// Supported inputs are numbers (passed through), the signed zero-padded
// fixed-width format (+00000000000005038.80), Turkish grouping (1.234.567,89),
// Anglo grouping (1,234,567.89) and plain decimals with either separator.
func Parse(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case string:
		return ParseString(x)
	case fmt.Stringer:
		return ParseString(x.String())
	default:
		return ParseString(fmt.Sprint(x))
	}
}

// ParseString is Parse for string input.
func ParseString(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	s = strings.TrimSpace(currencyMarkers.Replace(s))

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")

	if zeroPadded.MatchString(s) {
		s = strings.TrimLeft(s, "0")
		if s == "" {
			s = "0"
		}
	}
	s = spaceRemover.Replace(s)
	s = normalizeSeparators(s)
	s = strings.TrimRight(s, ".")

	if s == "" || s == "." {
		return 0
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	f = finite(f)
	if negative {
		return -f
	}
	return f
}

// normalizeSeparators rewrites s so that '.' is the only decimal point and no
// grouping separators remain.
func normalizeSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		// Whichever separator occurs last is the decimal point.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.ReplaceAll(s, ",", ".")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots >= 1:
		parts := strings.Split(s, ".")
		for _, p := range parts[1:] {
			if len(p) != 3 || !allDigits(p) {
				return s
			}
		}
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FormatFixedWidth renders v in the signed zero-padded layout used by
// Vakıfbank exports: a sign, 17 integer digits and two decimals.
func FormatFixedWidth(v float64) string {
	sign := "+"
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%020.2f", sign, v)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	ratio := math.Pow(10, float64(places))
	return math.Round(v*ratio) / ratio
}

// Package geography converts TRI coordinate encodings and joins facility
// points against polygon regions.
package geography

import (
	"math"
	"strconv"
	"strings"
)

// TRI coordinate fields encode degrees-minutes-seconds as a single integer:
// the trailing two digits are seconds, the two before those are minutes, and
// everything in front is degrees. Sign is carried by a leading "-" character,
// not by numeric sign. Values shorter than the canonical width are right-padded
// with zeros before splitting. This is the fixed-width signed encoding of the
// latest TRI revision; earlier exports used narrower degree fields but parse
// identically under this rule.
const dmsMinWidth = 6

// DMSToDecimal converts a DMS-encoded value to signed decimal degrees, rounded
// to 8 decimal places. Unparseable or empty input yields NaN, never an error;
// callers treat NaN as the missing-coordinate marker.
func DMSToDecimal(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return math.NaN()
	}

	neg := strings.HasPrefix(value, "-")
	digits := strings.TrimPrefix(value, "-")

	// Numeric sources arrive stringified with a fractional tail; the
	// encoding is integral, so truncate it.
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		if _, err := strconv.ParseFloat(digits, 64); err != nil {
			return math.NaN()
		}
		digits = digits[:i]
	}
	if digits == "" || !isDigits(digits) {
		return math.NaN()
	}

	for len(digits) < dmsMinWidth {
		digits += "0"
	}

	degrees, _ := strconv.Atoi(digits[:len(digits)-4])
	minutes, _ := strconv.Atoi(digits[len(digits)-4 : len(digits)-2])
	seconds, _ := strconv.Atoi(digits[len(digits)-2:])

	dd := float64(degrees) + float64(minutes)/60 + float64(seconds)/3600
	if neg {
		dd = -dd
	}
	return math.Round(dd*1e8) / 1e8
}

// DMSFloatToDecimal converts a numeric DMS value. NaN propagates.
func DMSFloatToDecimal(value float64) float64 {
	if math.IsNaN(value) {
		return math.NaN()
	}
	return DMSToDecimal(strconv.FormatInt(int64(value), 10))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

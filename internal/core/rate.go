// Package core holds the pure domain of the tracker: entries, the piece
// rate, statistics, the work streak, and the month index. Nothing here
// performs I/O or reads the ambient clock.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultRatePerUnit is the canonical piece rate: 500 wrappers = 100 PHP.
const DefaultRatePerUnit = 0.20

// Rate maps a unit count to a monetary amount. It is stateless
// configuration, not a persisted entity.
type Rate struct {
	PerUnit  float64
	Currency string
	Symbol   string
}

// DefaultRate returns the built-in PHP piece rate.
func DefaultRate() Rate {
	return Rate{PerUnit: DefaultRatePerUnit, Currency: "PHP", Symbol: "₱"}
}

// Earnings computes the amount earned for count units, rounded to two
// decimal places half away from zero. Invalid counts yield 0 rather than
// an error.
func (r Rate) Earnings(count int) float64 {
	if !IsValidCount(float64(count)) {
		return 0
	}
	return math.Round(float64(count)*r.PerUnit*100) / 100
}

// FormatAmount renders amount with the currency symbol and exactly two
// decimal places. Non-numeric amounts format as zero.
func (r Rate) FormatAmount(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	return fmt.Sprintf("%s%.2f", r.Symbol, amount)
}

// IsValidCount reports whether v is usable as a unit count.
func IsValidCount(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= MaxUnitCount
}

// SanitizeCount normalizes raw user input to an integer unit count.
// Unparseable or negative input becomes 0; fractional counts are floored.
// A sanitized value can still exceed MaxUnitCount, so callers sanitize
// first and then check IsValidCount.
func SanitizeCount(raw string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return 0
	}
	return int(math.Floor(f))
}

// Package moneyutil holds the cents conversion, OCR digit-fix and pack-size
// heuristics shared by the header and line item parsers.
package moneyutil

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// O/I/l confusions are corrected only when adjacent to a digit so
	// legitimate alphabetic text is left alone.
	reOAfterDigit  = regexp.MustCompile(`([0-9])[Oo]`)
	reOBeforeDigit = regexp.MustCompile(`[Oo]([0-9])`)
	reIAfterDigit  = regexp.MustCompile(`([0-9])[Il]`)
	reIBeforeDigit = regexp.MustCompile(`[Il]([0-9])`)
	reThousands    = regexp.MustCompile(`(\d),(\d{3})`)
	reDollarSpace  = regexp.MustCompile(`\$\s+`)
)

// FixOCRDigits corrects a narrow set of OCR confusions (O vs 0, I/l vs 1)
// adjacent to digits, strips thousands-separator commas inside numeric runs,
// and collapses "$ " to "$".
func FixOCRDigits(text string) string {
	for {
		fixed := reOAfterDigit.ReplaceAllString(text, "${1}0")
		fixed = reOBeforeDigit.ReplaceAllString(fixed, "0$1")
		fixed = reIAfterDigit.ReplaceAllString(fixed, "${1}1")
		fixed = reIBeforeDigit.ReplaceAllString(fixed, "1$1")
		fixed = reThousands.ReplaceAllString(fixed, "$1$2")
		if fixed == text {
			break
		}
		text = fixed
	}
	return reDollarSpace.ReplaceAllString(text, "$$")
}

var centsFactor = decimal.NewFromInt(100)

// DollarsToCents converts a dollar amount string (thousands separators and a
// leading currency symbol allowed) to integer cents with half-up rounding.
// Empty or unparseable input yields 0 — a defined default, not an error.
func DollarsToCents(value string) int64 {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	// Round is half away from zero, i.e. standard half-up for positive amounts.
	return d.Mul(centsFactor).Round(0).IntPart()
}

// CentsTimesQuantity computes round(cents * qty) as integer cents.
func CentsTimesQuantity(cents int64, qty decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(qty).Round(0).IntPart()
}

// CentsDividedByQuantity computes round(cents / qty) as integer cents.
// Returns 0 when qty is not positive.
func CentsDividedByQuantity(cents int64, qty decimal.Decimal) int64 {
	if qty.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(cents).DivRound(qty, 0).IntPart()
}

var reQuantity = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseQuantity extracts a decimal quantity from a raw OCR quantity field,
// fixing digit confusions first. Returns zero when nothing numeric remains.
func ParseQuantity(raw string) decimal.Decimal {
	s := FixOCRDigits(strings.TrimSpace(raw))
	m := reQuantity.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}

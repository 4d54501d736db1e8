package moneyutil

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	rePackTimes = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*[x×]\s*(\d+(?:\.\d+)?)`)
	rePackSlash = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*/`)
	rePackCount = regexp.MustCompile(`(?i)^\s*(\d+)\s*(?:ct|pk|case)\b`)

	// sub-patterns scanned inside free-text descriptions, first match wins
	reExtractPack = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?\s*[a-z]*|\d+(?:\.\d+)?\s*/\s*[a-z0-9.]+|\d+\s*(?:ct|pk|case)\b`)
)

// ParsePackSizeMultiplier extracts the quantity multiplier encoded in a
// vendor pack-size string: "NxM" multiplies N*M ("6x2kg" -> 12), "N/unit"
// and "Nct" multiply by N. Anything else is a 1:1 pack.
func ParsePackSizeMultiplier(packSize string) decimal.Decimal {
	if packSize == "" {
		return decimal.NewFromInt(1)
	}
	s := packSize
	if m := rePackTimes.FindStringSubmatch(s); m != nil {
		n, err1 := decimal.NewFromString(m[1])
		k, err2 := decimal.NewFromString(m[2])
		if err1 == nil && err2 == nil {
			return n.Mul(k)
		}
	}
	if m := rePackSlash.FindStringSubmatch(s); m != nil {
		if n, err := decimal.NewFromString(m[1]); err == nil {
			return n
		}
	}
	if m := rePackCount.FindStringSubmatch(s); m != nil {
		if n, err := decimal.NewFromString(m[1]); err == nil {
			return n
		}
	}
	return decimal.NewFromInt(1)
}

// ExtractPackSize scans a free-text description for the first pack-size
// shaped token (pack×count, count/size, count+ct/pk/case). Returns "" when
// the description carries no pack information.
func ExtractPackSize(description string) string {
	return reExtractPack.FindString(description)
}

package constants

import (
	"strings"
)

type Category string

const (
	Meat             Category = "MEAT"
	Seafood          Category = "SEAFOOD"
	Produce          Category = "PRODUCE"
	Dairy            Category = "DAIRY"
	Bakery           Category = "BAKERY"
	Frozen           Category = "FROZEN"
	DryGrocery       Category = "DRY_GROCERY"
	Beverage         Category = "BEVERAGE"
	PaperDisposables Category = "PAPER_DISPOSABLES"
	Chemical         Category = "CHEMICAL"
	Smallwares       Category = "SMALLWARES"
	Uncategorized    Category = "UNCATEGORIZED"
)

var allCategories = []Category{
	Meat,
	Seafood,
	Produce,
	Dairy,
	Bakery,
	Frozen,
	DryGrocery,
	Beverage,
	PaperDisposables,
	Chemical,
	Smallwares,
	Uncategorized,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form category name (e.g. from a GFS category recap
// block) to an internal category. Returns Uncategorized when nothing matches.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Uncategorized, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// recap-label synonyms seen on vendor invoices
	synonyms := map[string]Category{
		"meats":               Meat,
		"beef":                Meat,
		"pork":                Meat,
		"poultry":             Meat,
		"fish":                Seafood,
		"fruits & vegetables": Produce,
		"fruits and vegetables": Produce,
		"dairy products":      Dairy,
		"bread":               Bakery,
		"bread & bakery":      Bakery,
		"frozen foods":        Frozen,
		"grocery":             DryGrocery,
		"dry goods":           DryGrocery,
		"beverages":           Beverage,
		"paper":               PaperDisposables,
		"disposables":         PaperDisposables,
		"paper & disposables": PaperDisposables,
		"chemicals":           Chemical,
		"janitorial":          Chemical,
		"cleaning supplies":   Chemical,
		"equipment & supplies": Smallwares,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) ||
			normalized == strings.ToLower(strings.ReplaceAll(string(cat), "_", " ")) {
			return cat, true
		}
	}

	return Uncategorized, false
}

package entity

import "time"

// ItemBankEntry maps a (vendor, product_code) pair to internal item identity.
// Read-only reference data.
type ItemBankEntry struct {
	Vendor       string `json:"vendor"`
	ProductCode  string `json:"product_code"`
	ItemID       string `json:"item_id"`
	CategoryCode string `json:"category_code"`
	TaxProfileID string `json:"tax_profile_id"`
	Active       bool   `json:"active"`
}

// MappingRule is one keyword/regex classification rule. Lower priority value
// means higher precedence. Read-only reference data.
type MappingRule struct {
	ID           int64   `json:"id"`
	Pattern      string  `json:"pattern"`
	IsRegex      bool    `json:"is_regex"`
	CategoryCode string  `json:"category_code"`
	TaxProfileID string  `json:"tax_profile_id"`
	Confidence   float64 `json:"confidence"`
	Priority     int     `json:"priority"`
	Vendor       string  `json:"vendor"` // empty = all vendors
	Active       bool    `json:"active"`
}

// VendorCategoryMap translates an invoice-provided category name (e.g. from a
// GFS category recap) into an internal category code.
type VendorCategoryMap struct {
	Vendor         string  `json:"vendor"`
	VendorCategory string  `json:"vendor_category"`
	CategoryCode   string  `json:"category_code"`
	TaxProfileID   string  `json:"tax_profile_id"`
	Confidence     float64 `json:"confidence"`
}

// UOMConversion resolves a raw unit string to a canonical unit and multiplier.
type UOMConversion struct {
	FromUOM    string  `json:"from_uom"`
	Vendor     string  `json:"vendor"` // empty = all vendors
	ToUOM      string  `json:"to_uom"`
	Multiplier float64 `json:"multiplier"`
}

// ManualMappingEntry is one unresolved line item queued for human mapping.
// Upserts are keyed on (vendor, product_code); repeat occurrences increment
// the counter and accumulate cents rather than duplicating rows.
type ManualMappingEntry struct {
	Vendor              string    `json:"vendor"`
	ProductCode         string    `json:"product_code"`
	Description         string    `json:"description"`
	Occurrences         int       `json:"occurrences"`
	AccumulatedCents    int64     `json:"accumulated_cents"`
	FirstSeen           time.Time `json:"first_seen"`
	LastSeen            time.Time `json:"last_seen"`
	LastInvoiceNumber   string    `json:"last_invoice_number"`
	SuggestedCategory   string    `json:"suggested_category,omitempty"`
	SuggestedConfidence float64   `json:"suggested_confidence,omitempty"`
}

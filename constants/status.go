package constants

// ValidationStatus is the canonical per-line-item status.
type ValidationStatus string

// Stable values (store these exact strings in DB).
const (
	StatusOK           ValidationStatus = "OK"
	StatusWarning      ValidationStatus = "WARNING"
	StatusError        ValidationStatus = "ERROR"
	StatusNeedsMapping ValidationStatus = "NEEDS_MAPPING"
)

// Severity classifies a validation finding. ERROR findings block an invoice;
// WARNING findings are surfaced for review only.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Finding codes emitted by the line item parser and totals reconciler.
const (
	CodeMissingDescription = "MISSING_DESCRIPTION"
	CodeInvalidQuantity    = "INVALID_QUANTITY"
	CodeNegativeLineTotal  = "NEGATIVE_LINE_TOTAL"
	CodeUnitPriceSanity    = "UNIT_PRICE_SANITY"
	CodeSubtotalMismatch   = "SUBTOTAL_MISMATCH"
	CodeTotalCalcVariance  = "TOTAL_CALC_VARIANCE"
)

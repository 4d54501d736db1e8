package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kitchenledger/invoice-pipeline/constants"
)

// lineItemNamespace seeds the deterministic v5 line item IDs so a
// reprocessing run reproduces the same ID for the same line.
var lineItemNamespace = uuid.MustParse("8a9e6fd4-3b1c-4f6e-9d2a-5c7b41e0a8d3")

// LineItemID derives the stable identifier for a line item from its invoice
// number, product code and description.
func LineItemID(invoiceNumber, productCode, description string) uuid.UUID {
	return uuid.NewSHA1(lineItemNamespace, []byte(invoiceNumber+"|"+productCode+"|"+description))
}

// LineItem is one normalized, categorized invoice line.
type LineItem struct {
	ID                 uuid.UUID                  `json:"id"`
	ProductCode        string                     `json:"productCode"`
	Description        string                     `json:"description"`
	CategoryCode       string                     `json:"categoryCode,omitempty"`
	TaxProfileID       string                     `json:"taxProfileId,omitempty"`
	RawQuantity        string                     `json:"rawQuantity"`
	RawUnit            string                     `json:"rawUnit"`
	PackSize           string                     `json:"packSize,omitempty"`
	NormalizedQuantity decimal.Decimal            `json:"normalizedQuantity"`
	NormalizedUOM      string                     `json:"normalizedUom"`
	UnitPriceCents     int64                      `json:"unitPriceCents"`
	LineTotalCents     int64                      `json:"lineTotalCents"`
	PriceStrategy      constants.PriceStrategy    `json:"priceStrategy"`
	MappingConfidence  float64                    `json:"mappingConfidence"`
	MappingSource      constants.MappingSource    `json:"mappingSource"`
	Status             constants.ValidationStatus `json:"validationStatus"`
}

// Finding is one typed validation error or warning.
type Finding struct {
	Code          string             `json:"code"`
	Severity      constants.Severity `json:"severity"`
	Message       string             `json:"message"`
	VarianceCents int64              `json:"varianceCents,omitempty"`
	ProductCode   string             `json:"productCode,omitempty"`
}

// ValidationReport reconciles computed sums against declared totals.
// IsValid is true iff no ERROR-severity findings exist.
type ValidationReport struct {
	Errors                []Finding `json:"errors"`
	Warnings              []Finding `json:"warnings"`
	IsValid               bool      `json:"isValid"`
	LineItemsSumCents     int64     `json:"lineItemsSumCents"`
	ExpectedTotalCents    int64     `json:"expectedTotalCents"`
	SubtotalVarianceCents int64     `json:"subtotalVariance"`
	TotalVarianceCents    int64     `json:"totalVariance"`
}

// Package parser turns raw OCR invoice records into currency-exact headers
// and normalized line items.
package parser

import (
	"regexp"
	"strings"

	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/moneyutil"
)

var reNonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Label-anchored total patterns, matched case-insensitively against the full
// extracted text. Each captures a $?NNN.NN group. An unmatched label means 0
// cents at this stage; the reconciler catches genuine mismatches later.
var (
	reSubtotal = regexp.MustCompile(`(?i)sub\s*total[^\d$\n]*\$?\s*([\d,]+\.\d{2})`)
	reGST      = regexp.MustCompile(`(?i)\bGST(?:\s*/\s*HST)?\b[^\d$\n]*\$?\s*([\d,]+\.\d{2})`)
	reQST      = regexp.MustCompile(`(?i)\b(?:PST\s*/\s*QST|QST|PST)\b[^\d$\n]*\$?\s*([\d,]+\.\d{2})`)
	reTotal    = regexp.MustCompile(`(?i)invoice\s*total[^\d$\n]*\$?\s*([\d,]+\.\d{2})`)
	reFreight  = regexp.MustCompile(`(?i)\bfreight\b[^\d$\n]*\$?\s*([\d,]+\.\d{2})`)
	reFuel     = regexp.MustCompile(`(?i)fuel\s*charge[^\d$\n]*\$?\s*([\d,]+\.\d{2})`)
)

var (
	reRecapAnchor = regexp.MustCompile(`(?i)category\s+recap`)
	reRecapLine   = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z &/.-]*?)\s+\$?\s*([\d,]+\.\d{2})\s*$`)
	reRecapEnd    = regexp.MustCompile(`(?i)^\s*(?:sub\s*)?total\b`)
)

// ParseHeader extracts invoice identity and anchored totals from a raw
// invoice record. Money fields are integer cents, never negative.
func ParseHeader(raw *entity.RawInvoice) *entity.InvoiceHeader {
	text := moneyutil.FixOCRDigits(raw.ExtractedText)

	h := &entity.InvoiceHeader{
		InvoiceNumber:  reNonAlnum.ReplaceAllString(raw.InvoiceNumber, ""),
		InvoiceDate:    moneyutil.ParseDate(raw.InvoiceDate),
		DueDate:        moneyutil.ParseDate(raw.DueDate),
		Vendor:         strings.TrimSpace(raw.Vendor),
		CustomerNumber: strings.TrimSpace(raw.CustomerNumber),
		PurchaseOrder:  strings.TrimSpace(raw.PurchaseOrder),
	}

	h.SubtotalCents = extractCents(reSubtotal, text)
	h.GSTCents = extractCents(reGST, text)
	h.QSTCents = extractCents(reQST, text)
	h.TotalCents = extractCents(reTotal, text)
	h.FreightCents = extractCents(reFreight, text)
	h.FuelChargeCents = extractCents(reFuel, text)
	h.CategoryRecap = parseCategoryRecap(text)

	return h
}

func extractCents(re *regexp.Regexp, text string) int64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return moneyutil.DollarsToCents(m[1])
}

// parseCategoryRecap reads the per-category subtotal block GFS invoices
// print between the "CATEGORY RECAP" anchor and the closing Total line.
func parseCategoryRecap(text string) map[string]int64 {
	loc := reRecapAnchor.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	recap := make(map[string]int64)
	for _, line := range strings.Split(text[loc[1]:], "\n") {
		if reRecapEnd.MatchString(line) {
			break
		}
		m := reRecapLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		recap[name] = moneyutil.DollarsToCents(m[2])
	}
	if len(recap) == 0 {
		return nil
	}
	return recap
}

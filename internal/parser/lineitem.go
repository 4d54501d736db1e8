package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/moneyutil"
	"github.com/kitchenledger/invoice-pipeline/internal/uom"
)

// reCurrencyToken matches currency-shaped tokens inside raw OCR line text.
var reCurrencyToken = regexp.MustCompile(`\$?\d[\d,]*\.\d{2}`)

// priceResolution is the tagged result of the price-derivation cascade,
// explicit about which strategy fired.
type priceResolution struct {
	UnitPriceCents int64
	LineTotalCents int64
	Strategy       constants.PriceStrategy
}

// resolvePrice derives unit price and line total with a strict precedence:
// declared line total first, then declared unit price, then the last two
// currency tokens of the raw line text. OCR prints totals in cleaner columns
// than unit prices, so the ordering must not be reversed.
func resolvePrice(raw entity.RawLineItem, qty decimal.Decimal) priceResolution {
	if total := strings.TrimSpace(raw.LineTotal.String()); total != "" {
		cents := moneyutil.DollarsToCents(moneyutil.FixOCRDigits(total))
		return priceResolution{
			UnitPriceCents: moneyutil.CentsDividedByQuantity(cents, qty),
			LineTotalCents: cents,
			Strategy:       constants.PriceFromLineTotal,
		}
	}

	if unit := strings.TrimSpace(raw.UnitPrice.String()); unit != "" {
		cents := moneyutil.DollarsToCents(moneyutil.FixOCRDigits(unit))
		return priceResolution{
			UnitPriceCents: cents,
			LineTotalCents: moneyutil.CentsTimesQuantity(cents, qty),
			Strategy:       constants.PriceFromUnitPrice,
		}
	}

	tokens := reCurrencyToken.FindAllString(moneyutil.FixOCRDigits(raw.RawText), -1)
	if n := len(tokens); n >= 2 {
		return priceResolution{
			UnitPriceCents: moneyutil.DollarsToCents(tokens[n-2]),
			LineTotalCents: moneyutil.DollarsToCents(tokens[n-1]),
			Strategy:       constants.PriceFromRawText,
		}
	}

	return priceResolution{Strategy: constants.PriceUnresolved}
}

// LineItemOptions carries the per-run tunables of the line item parser.
type LineItemOptions struct {
	// UnitPriceCeilingCents flags implausibly high unit prices. Warning
	// only, never blocking.
	UnitPriceCeilingCents int64
}

// ParseLineItem normalizes one raw line: quantity × pack multiplier × UOM
// conversion, price cascade, structural validation. The returned findings
// feed the invoice-level validation report.
func ParseLineItem(ctx context.Context, raw entity.RawLineItem, invoiceNumber, vendor string, conv *uom.Converter, opts LineItemOptions) (entity.LineItem, []entity.Finding) {
	desc := strings.TrimSpace(raw.Description)
	code := strings.TrimSpace(raw.ProductCode)

	qty := moneyutil.ParseQuantity(raw.Quantity.String())

	packSize := strings.TrimSpace(raw.PackSize)
	if packSize == "" {
		packSize = moneyutil.ExtractPackSize(desc)
	}
	qty = qty.Mul(moneyutil.ParsePackSizeMultiplier(packSize))

	normUOM, uomMult := conv.Convert(ctx, raw.Unit, vendor)
	normQty := qty.Mul(uomMult)

	price := resolvePrice(raw, normQty)

	li := entity.LineItem{
		ID:                 entity.LineItemID(invoiceNumber, code, desc),
		ProductCode:        code,
		Description:        desc,
		RawQuantity:        raw.Quantity.String(),
		RawUnit:            raw.Unit,
		PackSize:           packSize,
		NormalizedQuantity: normQty,
		NormalizedUOM:      normUOM,
		UnitPriceCents:     price.UnitPriceCents,
		LineTotalCents:     price.LineTotalCents,
		PriceStrategy:      price.Strategy,
		MappingSource:      constants.SourceUnmapped,
		Status:             constants.StatusOK,
	}

	var findings []entity.Finding
	addError := func(codeStr, msg string) {
		findings = append(findings, entity.Finding{
			Code:        codeStr,
			Severity:    constants.SeverityError,
			Message:     msg,
			ProductCode: code,
		})
		li.Status = constants.StatusError
	}

	if desc == "" {
		addError(constants.CodeMissingDescription, fmt.Sprintf("line item %s has no description", code))
	}
	if normQty.Sign() <= 0 {
		addError(constants.CodeInvalidQuantity, fmt.Sprintf("line item %s has non-positive quantity %s", code, normQty))
	}
	if li.LineTotalCents < 0 {
		addError(constants.CodeNegativeLineTotal, fmt.Sprintf("line item %s has negative total %s", code, money.New(li.LineTotalCents, money.CAD).Display()))
	}
	if opts.UnitPriceCeilingCents > 0 && li.UnitPriceCents > opts.UnitPriceCeilingCents {
		findings = append(findings, entity.Finding{
			Code:        constants.CodeUnitPriceSanity,
			Severity:    constants.SeverityWarning,
			Message:     fmt.Sprintf("line item %s unit price %s exceeds sanity ceiling %s", code, money.New(li.UnitPriceCents, money.CAD).Display(), money.New(opts.UnitPriceCeilingCents, money.CAD).Display()),
			ProductCode: code,
		})
		if li.Status == constants.StatusOK {
			li.Status = constants.StatusWarning
		}
	}

	return li, findings
}

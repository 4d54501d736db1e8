// Package fifo appends inventory cost layers from validated invoices.
// Layers are append-only; consumption and depletion live elsewhere.
package fifo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/moneyutil"
	"github.com/kitchenledger/invoice-pipeline/internal/repository"
)

// Builder turns the line items of an accepted invoice into cost layers.
//
// Idempotency policy: append-with-skip-on-duplicate, keyed on
// (invoice_number, product_code). Re-running the builder against an already
// processed invoice appends nothing.
type Builder struct {
	layers repository.FifoLayerRepository
	logger *slog.Logger
}

func NewBuilder(layers repository.FifoLayerRepository, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{layers: layers, logger: logger}
}

// BuildLayers appends one layer per (invoice, product) pair. Only invoices
// with a passing validation report are accepted; line items marked ERROR are
// excluded. Lines from the same invoice sharing a product code collapse into
// a single layer with summed quantity and a quantity-weighted unit cost.
//
// A line item without a real unit cost fails loudly rather than seeding the
// inventory with a placeholder.
func (b *Builder) BuildLayers(ctx context.Context, parsed *entity.ParsedInvoice) ([]*entity.FifoLayer, error) {
	if parsed == nil || parsed.Header == nil || parsed.Validation == nil {
		return nil, common.NewAppError("FIFO_INPUT", "parsed invoice is incomplete", common.ErrInvalidInput)
	}
	if !parsed.Validation.IsValid {
		return nil, common.NewAppError("INVOICE_NOT_VALID",
			fmt.Sprintf("invoice %s failed validation, refusing to build layers", parsed.Header.InvoiceNumber),
			common.ErrValidation)
	}

	type agg struct {
		quantity   decimal.Decimal
		totalCents int64
	}
	sums := make(map[string]*agg)
	var order []string
	for _, li := range parsed.LineItems {
		if li.Status == constants.StatusError {
			continue
		}
		if li.ProductCode == "" || li.NormalizedQuantity.Sign() <= 0 {
			continue
		}
		a, ok := sums[li.ProductCode]
		if !ok {
			a = &agg{quantity: decimal.Zero}
			sums[li.ProductCode] = a
			order = append(order, li.ProductCode)
		}
		a.quantity = a.quantity.Add(li.NormalizedQuantity)
		a.totalCents += li.LineTotalCents
	}

	invoiceNumber := parsed.Header.InvoiceNumber
	appended := make([]*entity.FifoLayer, 0, len(order))
	for _, code := range order {
		a := sums[code]
		unitCost := moneyutil.CentsDividedByQuantity(a.totalCents, a.quantity)
		if unitCost <= 0 {
			return appended, common.NewAppError("MISSING_UNIT_COST",
				fmt.Sprintf("invoice %s product %s has no usable unit cost", invoiceNumber, code),
				common.ErrInvalidInput)
		}

		exists, err := b.layers.Exists(ctx, invoiceNumber, code)
		if err != nil {
			return appended, common.WrapError(err, "check existing layer")
		}
		if exists {
			b.logger.Debug("fifo layer already present, skipping",
				"invoice_number", invoiceNumber, "product_code", code)
			continue
		}

		layer := &entity.FifoLayer{
			ProductCode:   code,
			Quantity:      a.quantity,
			UnitCostCents: unitCost,
			ReceivedDate:  parsed.Header.InvoiceDate,
			InvoiceNumber: invoiceNumber,
			Lot:           fmt.Sprintf("%s-%s", invoiceNumber, code),
		}
		if err := b.layers.Append(ctx, layer); err != nil {
			return appended, common.WrapError(err, "append layer")
		}
		appended = append(appended, layer)
	}

	b.logger.Info("fifo layers built",
		"invoice_number", invoiceNumber,
		"appended", len(appended),
		"products", len(order),
	)
	return appended, nil
}

// Package pipeline composes the parse, mapping, reconciliation and FIFO
// stages into per-invoice processing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/fifo"
	"github.com/kitchenledger/invoice-pipeline/internal/mapping"
	"github.com/kitchenledger/invoice-pipeline/internal/parser"
	"github.com/kitchenledger/invoice-pipeline/internal/reconcile"
)

// Processor coordinates header/line parsing, the category cascade, totals
// reconciliation and FIFO layer building for one invoice at a time.
// Invoices are independent units of work; a Processor is safe for
// concurrent use across a worker pool.
type Processor struct {
	parser     *parser.Parser
	mapper     *mapping.Mapper
	reconciler *reconcile.Reconciler
	builder    *fifo.Builder
	logger     *slog.Logger
}

func NewProcessor(p *parser.Parser, m *mapping.Mapper, r *reconcile.Reconciler, b *fifo.Builder, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{parser: p, mapper: m, reconciler: r, builder: b, logger: logger}
}

// Result is the outcome of processing one invoice. Layers is nil when the
// invoice failed validation or FIFO building was not requested.
type Result struct {
	Parsed *entity.ParsedInvoice
	Layers []*entity.FifoLayer
}

// ParseInvoice runs parse -> map -> reconcile and returns the combined parse
// result. A panic inside parsing becomes a structured error so one broken
// invoice never takes down a batch run.
func (p *Processor) ParseInvoice(ctx context.Context, raw *entity.RawInvoice) (parsed *entity.ParsedInvoice, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while parsing invoice",
				"invoice_number", raw.InvoiceNumber,
				"request_id", common.RequestIDFromContext(ctx),
				"panic", r)
			parsed = nil
			err = common.NewAppError("PARSE_PANIC",
				fmt.Sprintf("invoice %s: %v", raw.InvoiceNumber, r), common.ErrInternal)
		}
	}()

	header, items, structural := p.parser.Parse(ctx, raw)

	for i := range items {
		vendorCategory := ""
		if i < len(raw.LineItems) {
			vendorCategory = raw.LineItems[i].Category
		}
		// queue failures are logged inside the mapper; classification
		// degrades to defaults rather than aborting the invoice
		_ = p.mapper.MapLineItem(ctx, header.Vendor, header.InvoiceNumber, vendorCategory, &items[i])
	}

	report := p.reconciler.Reconcile(header, items, structural)

	return &entity.ParsedInvoice{
		Header:     header,
		LineItems:  items,
		Validation: report,
	}, nil
}

// Process parses one invoice and, when it validates cleanly, appends its
// FIFO layers.
func (p *Processor) Process(ctx context.Context, raw *entity.RawInvoice) (*Result, error) {
	parsed, err := p.ParseInvoice(ctx, raw)
	if err != nil {
		return nil, err
	}

	res := &Result{Parsed: parsed}
	if !parsed.Validation.IsValid {
		p.logger.Warn("invoice not accepted, skipping fifo layers",
			"invoice_number", parsed.Header.InvoiceNumber,
			"request_id", common.RequestIDFromContext(ctx),
			"errors", len(parsed.Validation.Errors),
		)
		return res, nil
	}

	layers, err := p.builder.BuildLayers(ctx, parsed)
	if err != nil {
		return res, common.WrapError(err, "build fifo layers")
	}
	res.Layers = layers
	return res, nil
}

package parser

import (
	"context"
	"log/slog"

	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/uom"
)

// Parser extracts a header and normalized line items from one raw invoice.
// Purely functional over the input plus read-only reference lookups; safe to
// run across invoices concurrently.
type Parser struct {
	conv   *uom.Converter
	logger *slog.Logger
	opts   LineItemOptions
}

func New(conv *uom.Converter, logger *slog.Logger, opts LineItemOptions) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{conv: conv, logger: logger, opts: opts}
}

// Parse runs the header and line item parsers over one invoice and returns
// the structural findings collected along the way. Category mapping and
// totals reconciliation run afterwards on this output.
func (p *Parser) Parse(ctx context.Context, raw *entity.RawInvoice) (*entity.InvoiceHeader, []entity.LineItem, []entity.Finding) {
	header := ParseHeader(raw)

	items := make([]entity.LineItem, 0, len(raw.LineItems))
	var findings []entity.Finding
	for _, rawItem := range raw.LineItems {
		li, f := ParseLineItem(ctx, rawItem, header.InvoiceNumber, header.Vendor, p.conv, p.opts)
		items = append(items, li)
		findings = append(findings, f...)
	}

	p.logger.Debug("parsed invoice",
		"invoice_number", header.InvoiceNumber,
		"vendor", header.Vendor,
		"line_items", len(items),
		"structural_findings", len(findings),
	)
	return header, items, findings
}

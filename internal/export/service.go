// Package export renders batch parse results as XLSX workbooks for review.
package export

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/xuri/excelize/v2"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

// Service produces XLSX bytes from parsed invoices: one sheet of line items,
// one of validation findings.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

const (
	lineItemsSheet = "Line Items"
	findingsSheet  = "Validation"
)

// ExportInvoicesXLSX returns an XLSX workbook (as bytes) for a batch of
// parse results.
func (s *Service) ExportInvoicesXLSX(invoices []*entity.ParsedInvoice) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", lineItemsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(findingsSheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}

	itemHeaders := []string{
		"Invoice #",
		"Invoice Date",
		"Vendor",
		"Product Code",
		"Description",
		"Category",
		"Qty",
		"UOM",
		"Unit Price",
		"Line Total",
		"Mapping Source",
		"Confidence",
		"Status",
	}
	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(lineItemsSheet, cell, h)
	}

	findingHeaders := []string{"Invoice #", "Severity", "Code", "Variance", "Message"}
	for i, h := range findingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(findingsSheet, cell, h)
	}

	itemRow, findingRow := 2, 2
	var rows, findings int
	for _, inv := range invoices {
		if inv == nil || inv.Header == nil {
			continue
		}
		h := inv.Header
		date := ""
		if !h.InvoiceDate.IsZero() {
			date = h.InvoiceDate.Format("2006-01-02")
		}

		for _, li := range inv.LineItems {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, itemRow)
				_ = f.SetCellValue(lineItemsSheet, cell, v)
			}
			write(1, h.InvoiceNumber)
			write(2, date)
			write(3, h.Vendor)
			write(4, li.ProductCode)
			write(5, truncate(li.Description, 140))
			write(6, li.CategoryCode)
			write(7, li.NormalizedQuantity.String())
			write(8, li.NormalizedUOM)
			write(9, money.New(li.UnitPriceCents, money.CAD).Display())
			write(10, money.New(li.LineTotalCents, money.CAD).Display())
			write(11, string(li.MappingSource))
			write(12, li.MappingConfidence)
			write(13, string(li.Status))
			itemRow++
			rows++
		}

		if inv.Validation == nil {
			continue
		}
		all := append(append([]entity.Finding{}, inv.Validation.Errors...), inv.Validation.Warnings...)
		for _, fd := range all {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, findingRow)
				_ = f.SetCellValue(findingsSheet, cell, v)
			}
			write(1, h.InvoiceNumber)
			write(2, string(fd.Severity))
			write(3, fd.Code)
			if fd.VarianceCents != 0 {
				write(4, money.New(fd.VarianceCents, money.CAD).Display())
			}
			write(5, truncate(fd.Message, 200))
			findingRow++
			findings++
		}
	}

	// Category cells get a drop-down of the known categories so reviewers
	// can correct misclassified lines in place.
	if itemRow > 2 {
		dv := excelize.NewDataValidation(true)
		dv.Sqref = fmt.Sprintf("F2:F%d", itemRow-1)
		if err := dv.SetDropList(constants.AsStringSlice()); err != nil {
			return nil, fmt.Errorf("category drop list: %w", err)
		}
		if err := f.AddDataValidation(lineItemsSheet, dv); err != nil {
			return nil, fmt.Errorf("category validation: %w", err)
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(lineItemsSheet, "A", "A", 14)
	_ = f.SetColWidth(lineItemsSheet, "C", "C", 22)
	_ = f.SetColWidth(lineItemsSheet, "E", "E", 42)
	_ = f.SetColWidth(lineItemsSheet, "I", "J", 14)
	_ = f.SetColWidth(findingsSheet, "E", "E", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"invoices", len(invoices),
		"line_items", rows,
		"findings", findings,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
// Counting runes keeps multi-byte text intact.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// Package reconcile compares summed line items against the declared header
// totals within a configurable cents tolerance.
package reconcile

import (
	"fmt"
	"log/slog"

	"github.com/Rhymond/go-money"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

// DefaultToleranceCents is the variance allowed before findings fire.
const DefaultToleranceCents = 50

// Reconciler produces the validation report for one parsed invoice.
//
// The asymmetry is deliberate: a subtotal mismatch indicates a parsing
// defect in the line items and blocks the invoice, while total variance can
// legitimately come from charges not itemized in the text and only warns.
type Reconciler struct {
	toleranceCents int64
	logger         *slog.Logger
}

func NewReconciler(toleranceCents int64, logger *slog.Logger) *Reconciler {
	if toleranceCents <= 0 {
		toleranceCents = DefaultToleranceCents
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{toleranceCents: toleranceCents, logger: logger}
}

// Reconcile sums the line items, checks them against the header, and folds
// in the structural findings collected during line parsing. Summation order
// is irrelevant; only the total matters.
func (r *Reconciler) Reconcile(header *entity.InvoiceHeader, items []entity.LineItem, structural []entity.Finding) *entity.ValidationReport {
	report := &entity.ValidationReport{
		Errors:   []entity.Finding{},
		Warnings: []entity.Finding{},
	}

	for _, f := range structural {
		if f.Severity == constants.SeverityError {
			report.Errors = append(report.Errors, f)
		} else {
			report.Warnings = append(report.Warnings, f)
		}
	}

	var sum int64
	for _, li := range items {
		sum += li.LineTotalCents
	}
	report.LineItemsSumCents = sum
	report.SubtotalVarianceCents = sum - header.SubtotalCents

	if abs(report.SubtotalVarianceCents) > r.toleranceCents {
		report.Errors = append(report.Errors, entity.Finding{
			Code:          constants.CodeSubtotalMismatch,
			Severity:      constants.SeverityError,
			VarianceCents: report.SubtotalVarianceCents,
			Message: fmt.Sprintf("line items sum %s does not match declared subtotal %s (variance %s, tolerance %s)",
				display(sum), display(header.SubtotalCents),
				display(report.SubtotalVarianceCents), display(r.toleranceCents)),
		})
	}

	report.ExpectedTotalCents = header.SubtotalCents + header.GSTCents + header.QSTCents +
		header.FreightCents + header.FuelChargeCents
	report.TotalVarianceCents = report.ExpectedTotalCents - header.TotalCents

	if abs(report.TotalVarianceCents) > r.toleranceCents {
		report.Warnings = append(report.Warnings, entity.Finding{
			Code:          constants.CodeTotalCalcVariance,
			Severity:      constants.SeverityWarning,
			VarianceCents: report.TotalVarianceCents,
			Message: fmt.Sprintf("computed total %s differs from declared total %s (variance %s)",
				display(report.ExpectedTotalCents), display(header.TotalCents),
				display(report.TotalVarianceCents)),
		})
	}

	report.IsValid = len(report.Errors) == 0

	if !report.IsValid {
		r.logger.Debug("invoice failed reconciliation",
			"invoice_number", header.InvoiceNumber,
			"errors", len(report.Errors),
			"subtotal_variance_cents", report.SubtotalVarianceCents,
		)
	}
	return report
}

func display(cents int64) string {
	return money.New(cents, money.CAD).Display()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

package reconcile

import (
	"testing"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

func items(cents ...int64) []entity.LineItem {
	out := make([]entity.LineItem, len(cents))
	for i, c := range cents {
		out[i] = entity.LineItem{LineTotalCents: c}
	}
	return out
}

func TestReconcileWithinTolerance(t *testing.T) {
	r := NewReconciler(50, nil)
	header := &entity.InvoiceHeader{
		InvoiceNumber: "INV1",
		SubtotalCents: 10000,
		GSTCents:      500,
		QSTCents:      998,
		TotalCents:    11498,
	}

	// 50 cents over subtotal, exactly at the tolerance boundary.
	report := r.Reconcile(header, items(6000, 4050), nil)

	if !report.IsValid {
		t.Fatalf("report invalid at tolerance boundary: %+v", report.Errors)
	}
	if report.LineItemsSumCents != 10050 {
		t.Errorf("LineItemsSumCents = %d, want 10050", report.LineItemsSumCents)
	}
	if report.SubtotalVarianceCents != 50 {
		t.Errorf("SubtotalVarianceCents = %d, want 50", report.SubtotalVarianceCents)
	}
	if report.ExpectedTotalCents != 11498 {
		t.Errorf("ExpectedTotalCents = %d, want 11498", report.ExpectedTotalCents)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", report.Warnings)
	}
}

func TestReconcileSubtotalMismatch(t *testing.T) {
	r := NewReconciler(50, nil)
	header := &entity.InvoiceHeader{InvoiceNumber: "INV2", SubtotalCents: 10000, TotalCents: 10000}

	report := r.Reconcile(header, items(6000, 4101), nil)

	if report.IsValid {
		t.Fatal("101 cents over a 50 cent tolerance must invalidate the invoice")
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one SUBTOTAL_MISMATCH", report.Errors)
	}
	f := report.Errors[0]
	if f.Code != constants.CodeSubtotalMismatch {
		t.Errorf("Code = %s, want SUBTOTAL_MISMATCH", f.Code)
	}
	if f.VarianceCents != 101 {
		t.Errorf("VarianceCents = %d, want 101", f.VarianceCents)
	}
}

func TestReconcileTotalVarianceWarnsOnly(t *testing.T) {
	r := NewReconciler(50, nil)
	header := &entity.InvoiceHeader{
		InvoiceNumber: "INV3",
		SubtotalCents: 10000,
		GSTCents:      500,
		TotalCents:    12000, // declared total off by 1500 from computed
	}

	report := r.Reconcile(header, items(10000), nil)

	if !report.IsValid {
		t.Fatalf("total variance must warn, not block: %+v", report.Errors)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", report.Warnings)
	}
	w := report.Warnings[0]
	if w.Code != constants.CodeTotalCalcVariance {
		t.Errorf("Code = %s, want TOTAL_CALC_VARIANCE", w.Code)
	}
	if w.VarianceCents != -1500 {
		t.Errorf("VarianceCents = %d, want -1500", w.VarianceCents)
	}
}

func TestReconcileOrderInvariant(t *testing.T) {
	r := NewReconciler(50, nil)
	header := &entity.InvoiceHeader{InvoiceNumber: "INV4", SubtotalCents: 15000, TotalCents: 15000}

	a := r.Reconcile(header, items(5000, 7000, 3000), nil)
	b := r.Reconcile(header, items(3000, 5000, 7000), nil)

	if a.LineItemsSumCents != b.LineItemsSumCents || a.IsValid != b.IsValid {
		t.Errorf("summation must be order invariant: %+v vs %+v", a, b)
	}
}

func TestReconcileFoldsStructuralFindings(t *testing.T) {
	r := NewReconciler(50, nil)
	header := &entity.InvoiceHeader{InvoiceNumber: "INV5", SubtotalCents: 5000, TotalCents: 5000}

	structural := []entity.Finding{
		{Code: constants.CodeMissingDescription, Severity: constants.SeverityError},
		{Code: constants.CodeUnitPriceSanity, Severity: constants.SeverityWarning},
	}
	report := r.Reconcile(header, items(5000), structural)

	if report.IsValid {
		t.Fatal("a structural ERROR finding must invalidate the invoice")
	}
	if len(report.Errors) != 1 || report.Errors[0].Code != constants.CodeMissingDescription {
		t.Errorf("Errors = %v", report.Errors)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Code != constants.CodeUnitPriceSanity {
		t.Errorf("Warnings = %v", report.Warnings)
	}
}

package fifo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/repository"
)

func validParsed() *entity.ParsedInvoice {
	return &entity.ParsedInvoice{
		Header: &entity.InvoiceHeader{
			InvoiceNumber: "INV100",
			InvoiceDate:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		LineItems: []entity.LineItem{
			{
				ProductCode:        "1001",
				NormalizedQuantity: decimal.NewFromInt(10),
				LineTotalCents:     5000,
				Status:             constants.StatusOK,
			},
			{
				ProductCode:        "2002",
				NormalizedQuantity: decimal.NewFromInt(4),
				LineTotalCents:     1200,
				Status:             constants.StatusOK,
			},
		},
		Validation: &entity.ValidationReport{IsValid: true},
	}
}

func TestBuildLayers(t *testing.T) {
	store := repository.NewMemoryStore()
	b := NewBuilder(store, nil)
	ctx := context.Background()

	layers, err := b.BuildLayers(ctx, validParsed())
	if err != nil {
		t.Fatalf("BuildLayers: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("appended %d layers, want 2", len(layers))
	}
	l := layers[0]
	if l.ProductCode != "1001" || l.UnitCostCents != 500 {
		t.Errorf("layer = %+v, want product 1001 at 500 cents/unit", l)
	}
	if l.Lot != "INV100-1001" {
		t.Errorf("Lot = %q, want INV100-1001", l.Lot)
	}
	if layers[1].UnitCostCents != 300 {
		t.Errorf("layer 2 unit cost = %d, want 300", layers[1].UnitCostCents)
	}
}

func TestBuildLayersIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	b := NewBuilder(store, nil)
	ctx := context.Background()

	if _, err := b.BuildLayers(ctx, validParsed()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	again, err := b.BuildLayers(ctx, validParsed())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("rerun appended %d layers, want 0", len(again))
	}

	all, err := store.ListByProduct(ctx, "")
	if err != nil {
		t.Fatalf("ListByProduct: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("store has %d layers after rerun, want 2", len(all))
	}
}

func TestBuildLayersCollapsesSameProduct(t *testing.T) {
	store := repository.NewMemoryStore()
	b := NewBuilder(store, nil)

	parsed := validParsed()
	// Two lines of the same product: 10 units at $50 + 5 units at $40.
	parsed.LineItems = []entity.LineItem{
		{ProductCode: "1001", NormalizedQuantity: decimal.NewFromInt(10), LineTotalCents: 5000, Status: constants.StatusOK},
		{ProductCode: "1001", NormalizedQuantity: decimal.NewFromInt(5), LineTotalCents: 4000, Status: constants.StatusOK},
	}

	layers, err := b.BuildLayers(context.Background(), parsed)
	if err != nil {
		t.Fatalf("BuildLayers: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("appended %d layers, want 1 collapsed layer", len(layers))
	}
	l := layers[0]
	if got := l.Quantity.String(); got != "15" {
		t.Errorf("Quantity = %s, want 15", got)
	}
	// Weighted: 9000 cents over 15 units.
	if l.UnitCostCents != 600 {
		t.Errorf("UnitCostCents = %d, want 600", l.UnitCostCents)
	}
}

func TestBuildLayersRejectsInvalidInvoice(t *testing.T) {
	b := NewBuilder(repository.NewMemoryStore(), nil)

	parsed := validParsed()
	parsed.Validation.IsValid = false

	_, err := b.BuildLayers(context.Background(), parsed)
	if err == nil {
		t.Fatal("invalid invoice must not build layers")
	}
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVOICE_NOT_VALID" {
		t.Errorf("err = %v, want INVOICE_NOT_VALID", err)
	}
}

func TestBuildLayersMissingUnitCost(t *testing.T) {
	b := NewBuilder(repository.NewMemoryStore(), nil)

	parsed := validParsed()
	parsed.LineItems = []entity.LineItem{
		{ProductCode: "3003", NormalizedQuantity: decimal.NewFromInt(6), LineTotalCents: 0, Status: constants.StatusOK},
	}

	_, err := b.BuildLayers(context.Background(), parsed)
	if err == nil {
		t.Fatal("zero line total must fail loudly, not seed a placeholder cost")
	}
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "MISSING_UNIT_COST" {
		t.Errorf("err = %v, want MISSING_UNIT_COST", err)
	}
}

func TestBuildLayersSkipsErrorAndCodelessLines(t *testing.T) {
	store := repository.NewMemoryStore()
	b := NewBuilder(store, nil)

	parsed := validParsed()
	parsed.LineItems = append(parsed.LineItems,
		entity.LineItem{ProductCode: "4004", NormalizedQuantity: decimal.NewFromInt(2), LineTotalCents: 800, Status: constants.StatusError},
		entity.LineItem{ProductCode: "", NormalizedQuantity: decimal.NewFromInt(2), LineTotalCents: 800, Status: constants.StatusOK},
	)

	layers, err := b.BuildLayers(context.Background(), parsed)
	if err != nil {
		t.Fatalf("BuildLayers: %v", err)
	}
	if len(layers) != 2 {
		t.Errorf("appended %d layers, want 2: ERROR and codeless lines excluded", len(layers))
	}
}

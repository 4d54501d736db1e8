package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteItemBank(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	_, err := s.DB().ExecContext(ctx,
		`INSERT INTO item_bank (vendor, product_code, item_id, category_code, active) VALUES (?, ?, ?, ?, 1)`,
		"GFS", "1001", "ITEM-1", "MEAT")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	e, err := s.FindByVendorAndCode(ctx, "gfs", "1001")
	if err != nil {
		t.Fatalf("FindByVendorAndCode: %v", err)
	}
	if e.ItemID != "ITEM-1" || e.CategoryCode != "MEAT" {
		t.Errorf("entry = %+v", e)
	}

	_, err = s.FindByVendorAndCode(ctx, "GFS", "9999")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("miss = %v, want ErrNotFound", err)
	}
}

func TestSQLiteMappingRulesOrdered(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	for _, row := range []struct {
		pattern  string
		priority int
		vendor   string
	}{
		{"sauce", 30, ""},
		{"striploin", 10, "GFS"},
		{"napkin", 20, ""},
		{"other-vendor-only", 5, "SYSCO"},
	} {
		_, err := s.DB().ExecContext(ctx,
			`INSERT INTO mapping_rules (pattern, category_code, confidence, priority, vendor, active) VALUES (?, 'X', 0.9, ?, ?, 1)`,
			row.pattern, row.priority, row.vendor)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rules, err := s.ListForVendor(ctx, "GFS")
	if err != nil {
		t.Fatalf("ListForVendor: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("got %d rules, want 3 (other vendor excluded)", len(rules))
	}
	if rules[0].Pattern != "striploin" || rules[1].Pattern != "napkin" || rules[2].Pattern != "sauce" {
		t.Errorf("rules out of priority order: %v, %v, %v",
			rules[0].Pattern, rules[1].Pattern, rules[2].Pattern)
	}
}

func TestSQLiteManualMappingUpsertAccumulates(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := entity.ManualMappingEntry{
		Vendor: "GFS", ProductCode: "7777", Description: "HOT SAUCE",
		AccumulatedCents: 2400, FirstSeen: now, LastSeen: now, LastInvoiceNumber: "INV1",
	}
	if err := s.Upsert(ctx, entry); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	entry.AccumulatedCents = 4800
	entry.LastInvoiceNumber = "INV2"
	if err := s.Upsert(ctx, entry); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	entries, err := s.List(ctx, "GFS")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Occurrences != 2 || e.AccumulatedCents != 7200 {
		t.Errorf("entry = %d occurrences / %d cents, want 2 / 7200", e.Occurrences, e.AccumulatedCents)
	}
	if e.LastInvoiceNumber != "INV2" {
		t.Errorf("LastInvoiceNumber = %q, want INV2", e.LastInvoiceNumber)
	}
}

func TestSQLiteFifoLayers(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	layer := &entity.FifoLayer{
		InvoiceNumber: "INV100",
		ProductCode:   "1001",
		Quantity:      decimal.RequireFromString("15.5"),
		UnitCostCents: 600,
		ReceivedDate:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Lot:           "INV100-1001",
	}
	if err := s.Append(ctx, layer); err != nil {
		t.Fatalf("Append: %v", err)
	}

	exists, err := s.Exists(ctx, "INV100", "1001")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; want true", exists, err)
	}
	exists, _ = s.Exists(ctx, "INV100", "2002")
	if exists {
		t.Error("Exists reported a layer that was never appended")
	}

	// The primary key enforces append-only per (invoice, product).
	if err := s.Append(ctx, layer); err == nil {
		t.Error("duplicate append must fail")
	}

	layers, err := s.ListByProduct(ctx, "1001")
	if err != nil {
		t.Fatalf("ListByProduct: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}
	if got := layers[0].Quantity.String(); got != "15.5" {
		t.Errorf("Quantity round-tripped as %s, want 15.5", got)
	}
	if layers[0].UnitCostCents != 600 {
		t.Errorf("UnitCostCents = %d, want 600", layers[0].UnitCostCents)
	}
}

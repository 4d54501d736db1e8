package mapping

import (
	"context"
	"testing"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/repository"
)

func seededStore() *repository.MemoryStore {
	store := repository.NewMemoryStore()
	store.SeedItemBank(entity.ItemBankEntry{
		Vendor: "GFS", ProductCode: "1001", ItemID: "ITEM-1",
		CategoryCode: string(constants.Meat), TaxProfileID: "TP-ZERO", Active: true,
	})
	store.SeedVendorCategories(entity.VendorCategoryMap{
		Vendor: "GFS", VendorCategory: "Groceries & Bakery",
		CategoryCode: string(constants.DryGrocery), TaxProfileID: "TP-ZERO", Confidence: 0.98,
	})
	store.SeedRules(
		entity.MappingRule{
			ID: 1, Pattern: "striploin", CategoryCode: string(constants.Meat),
			TaxProfileID: "TP-ZERO", Confidence: 0.97, Priority: 10, Active: true,
		},
		entity.MappingRule{
			ID: 2, Pattern: `\bnapkin(s)?\b`, IsRegex: true,
			CategoryCode: string(constants.PaperDisposables),
			Confidence:   0.99, Priority: 20, Active: true,
		},
		entity.MappingRule{
			ID: 3, Pattern: "sauce", CategoryCode: string(constants.DryGrocery),
			Confidence: 0.60, Priority: 30, Active: true,
		},
	)
	return store
}

func newTestMapper(store *repository.MemoryStore) *Mapper {
	return NewMapper(store, store, store, store, 0.95, nil)
}

func TestMapLineItemItemBank(t *testing.T) {
	store := seededStore()
	m := newTestMapper(store)

	li := entity.LineItem{ProductCode: "1001", Description: "BEEF STRIPLOIN AAA", Status: constants.StatusOK}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.MappingSource != constants.SourceItemBank {
		t.Errorf("MappingSource = %s, want ITEM_BANK", li.MappingSource)
	}
	if li.CategoryCode != string(constants.Meat) {
		t.Errorf("CategoryCode = %s, want MEAT", li.CategoryCode)
	}
	if li.MappingConfidence != 1.0 {
		t.Errorf("MappingConfidence = %v, want 1.0", li.MappingConfidence)
	}
	if li.Status != constants.StatusOK {
		t.Errorf("Status = %s, want OK", li.Status)
	}
}

func TestMapLineItemVendorCategory(t *testing.T) {
	store := seededStore()
	m := newTestMapper(store)

	li := entity.LineItem{ProductCode: "9999", Description: "FLOUR ALL PURPOSE", Status: constants.StatusOK}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "Groceries & Bakery", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.MappingSource != constants.SourceGFSCategory {
		t.Errorf("MappingSource = %s, want GFS_CATEGORY", li.MappingSource)
	}
	if li.CategoryCode != string(constants.DryGrocery) {
		t.Errorf("CategoryCode = %s, want DRY_GROCERY", li.CategoryCode)
	}
	if li.MappingConfidence != 0.98 {
		t.Errorf("MappingConfidence = %v, want 0.98", li.MappingConfidence)
	}
}

func TestMapLineItemCanonicalCategoryFallback(t *testing.T) {
	store := seededStore()
	m := newTestMapper(store)

	// "Meats" has no row in the vendor category table but resolves through
	// the recap-label synonym table.
	li := entity.LineItem{ProductCode: "9999", Description: "PORK TENDERLOIN", Status: constants.StatusOK}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "Meats", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.MappingSource != constants.SourceGFSCategory {
		t.Errorf("MappingSource = %s, want GFS_CATEGORY", li.MappingSource)
	}
	if li.CategoryCode != string(constants.Meat) {
		t.Errorf("CategoryCode = %s, want MEAT", li.CategoryCode)
	}
	if li.MappingConfidence != canonicalCategoryConfidence {
		t.Errorf("MappingConfidence = %v, want %v", li.MappingConfidence, canonicalCategoryConfidence)
	}
	if li.Status != constants.StatusOK {
		t.Errorf("Status = %s, want OK", li.Status)
	}

	// The vendor's own mapping still takes precedence over the synonym
	// table; "Groceries & Bakery" resolves through the seeded row.
	li = entity.LineItem{ProductCode: "9999", Description: "FLOUR ALL PURPOSE", Status: constants.StatusOK}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "Groceries & Bakery", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.MappingConfidence != 0.98 {
		t.Errorf("MappingConfidence = %v, want the seeded row's 0.98", li.MappingConfidence)
	}

	// An unknown label falls through to the rule tier.
	li = entity.LineItem{ProductCode: "9999", Description: "DINNER NAPKINS WHITE", Status: constants.StatusOK}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "Miscellaneous", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.MappingSource != constants.SourceMappingRule {
		t.Errorf("MappingSource = %s, want MAPPING_RULE for an unknown label", li.MappingSource)
	}
	if li.CategoryCode != string(constants.PaperDisposables) {
		t.Errorf("CategoryCode = %s, want PAPER_DISPOSABLES", li.CategoryCode)
	}
}

func TestMapLineItemRuleMatch(t *testing.T) {
	store := seededStore()
	m := newTestMapper(store)

	// Keyword rule, case-insensitive substring.
	li := entity.LineItem{ProductCode: "9999", Description: "BEEF STRIPLOIN AAA 5KG", Status: constants.StatusOK}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.MappingSource != constants.SourceMappingRule {
		t.Errorf("MappingSource = %s, want MAPPING_RULE", li.MappingSource)
	}
	if li.CategoryCode != string(constants.Meat) {
		t.Errorf("CategoryCode = %s, want MEAT", li.CategoryCode)
	}
	if li.Status != constants.StatusOK {
		t.Errorf("confident rule hit must not change status, got %s", li.Status)
	}

	// Regex rule.
	li = entity.LineItem{ProductCode: "9998", Description: "DINNER NAPKINS WHITE", Status: constants.StatusOK}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.CategoryCode != string(constants.PaperDisposables) {
		t.Errorf("CategoryCode = %s, want PAPER_DISPOSABLES", li.CategoryCode)
	}
}

func TestMapLineItemLowConfidenceQueues(t *testing.T) {
	store := seededStore()
	m := newTestMapper(store)
	ctx := context.Background()

	li := entity.LineItem{
		ProductCode: "7777", Description: "HOT SAUCE 12x150ml",
		LineTotalCents: 2400, Status: constants.StatusOK,
	}
	if err := m.MapLineItem(ctx, "GFS", "INV1", "", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	// Suggestion retained, but routed to manual review.
	if li.CategoryCode != string(constants.DryGrocery) {
		t.Errorf("CategoryCode = %s, want the low-confidence suggestion kept", li.CategoryCode)
	}
	if li.Status != constants.StatusNeedsMapping {
		t.Errorf("Status = %s, want NEEDS_MAPPING", li.Status)
	}

	entries, err := store.List(ctx, "GFS")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("queue has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Occurrences != 1 || e.AccumulatedCents != 2400 {
		t.Errorf("entry = %d occurrences / %d cents, want 1 / 2400", e.Occurrences, e.AccumulatedCents)
	}
	if e.SuggestedCategory != string(constants.DryGrocery) {
		t.Errorf("SuggestedCategory = %q", e.SuggestedCategory)
	}

	// Second sighting accumulates instead of duplicating.
	li2 := entity.LineItem{
		ProductCode: "7777", Description: "HOT SAUCE 12x150ml",
		LineTotalCents: 4800, Status: constants.StatusOK,
	}
	if err := m.MapLineItem(ctx, "GFS", "INV2", "", &li2); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	entries, _ = store.List(ctx, "GFS")
	if len(entries) != 1 {
		t.Fatalf("queue has %d entries after repeat, want 1", len(entries))
	}
	if entries[0].Occurrences != 2 || entries[0].AccumulatedCents != 7200 {
		t.Errorf("entry = %d occurrences / %d cents, want 2 / 7200",
			entries[0].Occurrences, entries[0].AccumulatedCents)
	}
	if entries[0].LastInvoiceNumber != "INV2" {
		t.Errorf("LastInvoiceNumber = %q, want INV2", entries[0].LastInvoiceNumber)
	}
}

func TestMapLineItemUnmapped(t *testing.T) {
	store := seededStore()
	m := newTestMapper(store)
	ctx := context.Background()

	li := entity.LineItem{ProductCode: "0000", Description: "UNKNOWN WIDGET", Status: constants.StatusOK}
	if err := m.MapLineItem(ctx, "GFS", "INV1", "", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.MappingSource != constants.SourceUnmapped {
		t.Errorf("MappingSource = %s, want UNMAPPED", li.MappingSource)
	}
	if li.Status != constants.StatusNeedsMapping {
		t.Errorf("Status = %s, want NEEDS_MAPPING", li.Status)
	}
	entries, _ := store.List(ctx, "GFS")
	if len(entries) != 1 {
		t.Errorf("unmapped line must land in the manual queue")
	}
}

func TestMapLineItemErrorOutranksNeedsMapping(t *testing.T) {
	store := seededStore()
	m := newTestMapper(store)

	li := entity.LineItem{ProductCode: "0000", Description: "", Status: constants.StatusError}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.Status != constants.StatusError {
		t.Errorf("Status = %s, structural ERROR must not be demoted", li.Status)
	}
}

func TestMatchRuleHighestConfidenceWins(t *testing.T) {
	store := repository.NewMemoryStore()
	store.SeedRules(
		entity.MappingRule{
			ID: 1, Pattern: "smoked", CategoryCode: string(constants.DryGrocery),
			Confidence: 0.80, Priority: 10, Active: true,
		},
		entity.MappingRule{
			ID: 2, Pattern: "salmon", CategoryCode: string(constants.Seafood),
			Confidence: 0.99, Priority: 20, Active: true,
		},
	)
	m := newTestMapper(store)

	li := entity.LineItem{ProductCode: "5", Description: "SMOKED SALMON 1KG", Status: constants.StatusOK}
	if err := m.MapLineItem(context.Background(), "GFS", "INV1", "", &li); err != nil {
		t.Fatalf("MapLineItem: %v", err)
	}
	if li.CategoryCode != string(constants.Seafood) {
		t.Errorf("CategoryCode = %s, want SEAFOOD: both rules match, higher confidence wins", li.CategoryCode)
	}
}

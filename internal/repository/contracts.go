// Package repository defines the store contracts the parsing core depends
// on, plus Postgres, SQLite and in-memory implementations. The core treats
// Item Bank, mapping rules and UOM conversions as external reference data it
// queries, never owns.
package repository

import (
	"context"

	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

// ItemBankRepository resolves vendor product codes to internal item identity.
type ItemBankRepository interface {
	// FindByVendorAndCode returns common.ErrNotFound (wrapped) when no active
	// entry exists for the pair.
	FindByVendorAndCode(ctx context.Context, vendor, productCode string) (*entity.ItemBankEntry, error)
}

// MappingRuleRepository lists classification rules for a vendor.
type MappingRuleRepository interface {
	// ListForVendor returns active rules scoped to the vendor (plus
	// vendor-agnostic rules), ordered by ascending priority.
	ListForVendor(ctx context.Context, vendor string) ([]*entity.MappingRule, error)
}

// VendorCategoryRepository translates invoice-provided category names.
type VendorCategoryRepository interface {
	FindByVendorCategory(ctx context.Context, vendor, vendorCategory string) (*entity.VendorCategoryMap, error)
}

// UOMConversionRepository resolves raw unit strings.
type UOMConversionRepository interface {
	// Find looks up (fromUOM, vendor), then (fromUOM, "") as the
	// vendor-agnostic fallback. Returns common.ErrNotFound on a miss.
	Find(ctx context.Context, fromUOM, vendor string) (*entity.UOMConversion, error)
}

// ManualMappingQueue stores line items awaiting human classification.
// Upsert is idempotent on (vendor, product_code): repeats increment the
// occurrence counter and accumulate cents.
type ManualMappingQueue interface {
	Upsert(ctx context.Context, e entity.ManualMappingEntry) error
	List(ctx context.Context, vendor string) ([]*entity.ManualMappingEntry, error)
}

// FifoLayerRepository is the append-only cost layer store.
type FifoLayerRepository interface {
	Exists(ctx context.Context, invoiceNumber, productCode string) (bool, error)
	Append(ctx context.Context, layer *entity.FifoLayer) error
	ListByProduct(ctx context.Context, productCode string) ([]*entity.FifoLayer, error)
}

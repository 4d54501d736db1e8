package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

// SeedFile is the on-disk shape of a reference-data seed document.
type SeedFile struct {
	ItemBank         []entity.ItemBankEntry     `json:"item_bank"`
	MappingRules     []entity.MappingRule       `json:"mapping_rules"`
	VendorCategories []entity.VendorCategoryMap `json:"vendor_categories"`
	UOMConversions   []entity.UOMConversion     `json:"uom_conversions"`
}

// SeedFromFile loads a JSON seed document into a memory store. Rules are
// sorted by ascending priority so lookups see them in match order.
func SeedFromFile(store *MemoryStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}

	sort.SliceStable(seed.MappingRules, func(i, j int) bool {
		return seed.MappingRules[i].Priority < seed.MappingRules[j].Priority
	})

	store.SeedItemBank(seed.ItemBank...)
	store.SeedRules(seed.MappingRules...)
	store.SeedVendorCategories(seed.VendorCategories...)
	store.SeedUOMConversions(seed.UOMConversions...)
	return nil
}

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

// MemoryStore is an in-memory implementation of every store contract,
// used by tests and by batch runs without a database.
type MemoryStore struct {
	mu sync.RWMutex

	itemBank   map[string]*entity.ItemBankEntry // vendor \x00 code
	rules      []*entity.MappingRule
	vendorCats map[string]*entity.VendorCategoryMap // vendor \x00 category
	uoms       map[string]*entity.UOMConversion     // from \x00 vendor
	queue      map[string]*entity.ManualMappingEntry
	layers     map[string]*entity.FifoLayer // invoice \x00 code
	layerOrder []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		itemBank:   make(map[string]*entity.ItemBankEntry),
		vendorCats: make(map[string]*entity.VendorCategoryMap),
		uoms:       make(map[string]*entity.UOMConversion),
		queue:      make(map[string]*entity.ManualMappingEntry),
		layers:     make(map[string]*entity.FifoLayer),
	}
}

func key2(a, b string) string {
	return strings.ToUpper(a) + "\x00" + strings.ToUpper(b)
}

// SeedItemBank loads item bank entries; for tests and local runs.
func (s *MemoryStore) SeedItemBank(entries ...entity.ItemBankEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range entries {
		e := entries[i]
		s.itemBank[key2(e.Vendor, e.ProductCode)] = &e
	}
}

// SeedRules loads mapping rules.
func (s *MemoryStore) SeedRules(rules ...entity.MappingRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rules {
		r := rules[i]
		s.rules = append(s.rules, &r)
	}
}

// SeedVendorCategories loads vendor category translations.
func (s *MemoryStore) SeedVendorCategories(maps ...entity.VendorCategoryMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range maps {
		m := maps[i]
		s.vendorCats[key2(m.Vendor, m.VendorCategory)] = &m
	}
}

// SeedUOMConversions loads unit conversions.
func (s *MemoryStore) SeedUOMConversions(convs ...entity.UOMConversion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range convs {
		c := convs[i]
		s.uoms[key2(c.FromUOM, c.Vendor)] = &c
	}
}

func (s *MemoryStore) FindByVendorAndCode(_ context.Context, vendor, productCode string) (*entity.ItemBankEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.itemBank[key2(vendor, productCode)]
	if !ok || !e.Active {
		return nil, common.WrapError(common.ErrNotFound, "item bank")
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) ListForVendor(_ context.Context, vendor string) ([]*entity.MappingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.MappingRule, 0, len(s.rules))
	for _, r := range s.rules {
		if !r.Active {
			continue
		}
		if r.Vendor != "" && !strings.EqualFold(r.Vendor, vendor) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *MemoryStore) FindByVendorCategory(_ context.Context, vendor, vendorCategory string) (*entity.VendorCategoryMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.vendorCats[key2(vendor, vendorCategory)]; ok {
		cp := *m
		return &cp, nil
	}
	if m, ok := s.vendorCats[key2("", vendorCategory)]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, common.WrapError(common.ErrNotFound, "vendor category")
}

func (s *MemoryStore) Find(_ context.Context, fromUOM, vendor string) (*entity.UOMConversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.uoms[key2(fromUOM, vendor)]; ok {
		cp := *c
		return &cp, nil
	}
	if c, ok := s.uoms[key2(fromUOM, "")]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, common.WrapError(common.ErrNotFound, "uom conversion")
}

func (s *MemoryStore) Upsert(_ context.Context, e entity.ManualMappingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(e.Vendor, e.ProductCode)
	if existing, ok := s.queue[k]; ok {
		existing.Occurrences++
		existing.AccumulatedCents += e.AccumulatedCents
		existing.LastSeen = e.LastSeen
		existing.LastInvoiceNumber = e.LastInvoiceNumber
		if e.SuggestedCategory != "" {
			existing.SuggestedCategory = e.SuggestedCategory
			existing.SuggestedConfidence = e.SuggestedConfidence
		}
		return nil
	}
	if e.Occurrences == 0 {
		e.Occurrences = 1
	}
	if e.FirstSeen.IsZero() {
		e.FirstSeen = time.Now().UTC()
	}
	s.queue[k] = &e
	return nil
}

func (s *MemoryStore) List(_ context.Context, vendor string) ([]*entity.ManualMappingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.ManualMappingEntry, 0, len(s.queue))
	for _, e := range s.queue {
		if vendor != "" && !strings.EqualFold(e.Vendor, vendor) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductCode < out[j].ProductCode })
	return out, nil
}

func (s *MemoryStore) Exists(_ context.Context, invoiceNumber, productCode string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.layers[key2(invoiceNumber, productCode)]
	return ok, nil
}

func (s *MemoryStore) Append(_ context.Context, layer *entity.FifoLayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(layer.InvoiceNumber, layer.ProductCode)
	if _, ok := s.layers[k]; ok {
		return common.NewAppError("DUPLICATE_LAYER", "fifo layer already exists for "+layer.Lot, common.ErrInvalidInput)
	}
	cp := *layer
	s.layers[k] = &cp
	s.layerOrder = append(s.layerOrder, k)
	return nil
}

func (s *MemoryStore) ListByProduct(_ context.Context, productCode string) ([]*entity.FifoLayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.FifoLayer
	for _, k := range s.layerOrder {
		l := s.layers[k]
		if productCode == "" || strings.EqualFold(l.ProductCode, productCode) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Package mapping classifies line items through a cascading lookup: item
// bank, vendor-provided category, keyword/regex rules, then the manual
// mapping queue. First hit wins; every tier carries a confidence score.
package mapping

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/repository"
)

// DefaultMinConfidence is the floor below which a rule hit still goes to
// manual review.
const DefaultMinConfidence = 0.95

// canonicalCategoryConfidence is assigned when a printed category name
// resolves through the built-in recap-label synonym table rather than a
// row the vendor's own category map.
const canonicalCategoryConfidence = 0.90

type compiledRule struct {
	rule *entity.MappingRule
	re   *regexp.Regexp // nil for plain keyword rules
}

// Mapper runs the classification cascade. Rule lists are cached per vendor
// for the duration of a batch run.
type Mapper struct {
	itemBank      repository.ItemBankRepository
	vendorCats    repository.VendorCategoryRepository
	rules         repository.MappingRuleRepository
	queue         repository.ManualMappingQueue
	minConfidence float64
	logger        *slog.Logger

	mu        sync.Mutex
	ruleCache map[string][]compiledRule
}

func NewMapper(
	itemBank repository.ItemBankRepository,
	vendorCats repository.VendorCategoryRepository,
	rules repository.MappingRuleRepository,
	queue repository.ManualMappingQueue,
	minConfidence float64,
	logger *slog.Logger,
) *Mapper {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		itemBank:      itemBank,
		vendorCats:    vendorCats,
		rules:         rules,
		queue:         queue,
		minConfidence: minConfidence,
		logger:        logger,
		ruleCache:     make(map[string][]compiledRule),
	}
}

// MapLineItem classifies one line item in place. vendorCategory is the
// invoice-provided category name for the line, empty when the invoice did
// not print one. Lookup failures degrade to the next tier, never abort.
func (m *Mapper) MapLineItem(ctx context.Context, vendor, invoiceNumber, vendorCategory string, li *entity.LineItem) error {
	// Tier 1: item bank exact match on (vendor, product_code).
	if li.ProductCode != "" {
		entry, err := m.itemBank.FindByVendorAndCode(ctx, vendor, li.ProductCode)
		if err == nil {
			li.CategoryCode = entry.CategoryCode
			li.TaxProfileID = entry.TaxProfileID
			li.MappingConfidence = 1.0
			li.MappingSource = constants.SourceItemBank
			return nil
		}
	}

	// Tier 2: invoice-provided category through the vendor category table,
	// then through the recap-label synonym table when the vendor has no
	// explicit mapping for the printed name.
	if vendorCategory != "" {
		vc, err := m.vendorCats.FindByVendorCategory(ctx, vendor, vendorCategory)
		if err == nil {
			li.CategoryCode = vc.CategoryCode
			li.TaxProfileID = vc.TaxProfileID
			li.MappingConfidence = vc.Confidence
			li.MappingSource = constants.SourceGFSCategory
			return nil
		}
		if cat, ok := constants.Canonicalize(vendorCategory); ok {
			li.CategoryCode = string(cat)
			li.MappingConfidence = canonicalCategoryConfidence
			li.MappingSource = constants.SourceGFSCategory
			return nil
		}
	}

	// Tier 3: keyword/regex rules, ascending priority; among matches the
	// highest-confidence rule wins.
	if best := m.matchRule(ctx, vendor, li.Description); best != nil {
		li.CategoryCode = best.CategoryCode
		li.TaxProfileID = best.TaxProfileID
		li.MappingConfidence = best.Confidence
		li.MappingSource = constants.SourceMappingRule
		if best.Confidence >= m.minConfidence {
			return nil
		}
		// Low-confidence hit: keep the suggestion but route to manual review.
		return m.enqueue(ctx, vendor, invoiceNumber, li, best.CategoryCode, best.Confidence)
	}

	li.MappingConfidence = 0
	li.MappingSource = constants.SourceUnmapped
	return m.enqueue(ctx, vendor, invoiceNumber, li, "", 0)
}

func (m *Mapper) enqueue(ctx context.Context, vendor, invoiceNumber string, li *entity.LineItem, suggested string, confidence float64) error {
	// A structural ERROR on the line outranks NEEDS_MAPPING.
	if li.Status != constants.StatusError {
		li.Status = constants.StatusNeedsMapping
	}
	now := time.Now().UTC()
	err := m.queue.Upsert(ctx, entity.ManualMappingEntry{
		Vendor:              vendor,
		ProductCode:         li.ProductCode,
		Description:         li.Description,
		Occurrences:         1,
		AccumulatedCents:    li.LineTotalCents,
		FirstSeen:           now,
		LastSeen:            now,
		LastInvoiceNumber:   invoiceNumber,
		SuggestedCategory:   suggested,
		SuggestedConfidence: confidence,
	})
	if err != nil {
		m.logger.Warn("manual mapping queue upsert failed",
			"vendor", vendor, "product_code", li.ProductCode, "error", err)
	}
	return err
}

// matchRule evaluates the vendor's rule set against a description. Rules are
// pre-sorted by ascending priority; ties on confidence resolve to the
// earlier (higher-precedence) rule.
func (m *Mapper) matchRule(ctx context.Context, vendor, description string) *entity.MappingRule {
	if description == "" {
		return nil
	}
	rules := m.rulesForVendor(ctx, vendor)
	lower := strings.ToLower(description)

	var best *entity.MappingRule
	for _, cr := range rules {
		matched := false
		if cr.re != nil {
			matched = cr.re.MatchString(description)
		} else {
			matched = strings.Contains(lower, strings.ToLower(cr.rule.Pattern))
		}
		if matched && (best == nil || cr.rule.Confidence > best.Confidence) {
			best = cr.rule
		}
	}
	return best
}

func (m *Mapper) rulesForVendor(ctx context.Context, vendor string) []compiledRule {
	key := strings.ToUpper(vendor)
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.ruleCache[key]; ok {
		return cached
	}

	rules, err := m.rules.ListForVendor(ctx, vendor)
	if err != nil {
		m.logger.Warn("mapping rule lookup failed, treating as empty rule set",
			"vendor", vendor, "error", err)
		m.ruleCache[key] = nil
		return nil
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{rule: r}
		if r.IsRegex {
			re, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				m.logger.Warn("skipping rule with invalid regex",
					"rule_id", r.ID, "pattern", r.Pattern, "error", err)
				continue
			}
			cr.re = re
		}
		compiled = append(compiled, cr)
	}
	m.ruleCache[key] = compiled
	return compiled
}

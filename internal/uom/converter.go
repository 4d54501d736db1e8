// Package uom resolves raw unit strings against the UOM conversion reference
// table. An unknown unit never blocks parsing: the lookup degrades to the
// uppercased input at multiplier 1.0.
package uom

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/repository"
)

// Converter caches conversion lookups for the duration of a batch run.
// Reference data is read-mostly; invalidation on rule changes is the
// caller's concern.
type Converter struct {
	repo   repository.UOMConversionRepository
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*entity.UOMConversion
}

func NewConverter(repo repository.UOMConversionRepository, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		repo:   repo,
		logger: logger,
		cache:  make(map[string]*entity.UOMConversion),
	}
}

// Convert resolves (fromUOM, vendor) to a canonical unit and multiplier.
// Lookup misses and repository failures both fall back to
// (UPPER(fromUOM), 1.0) so parsing continues with reduced fidelity.
func (c *Converter) Convert(ctx context.Context, fromUOM, vendor string) (string, decimal.Decimal) {
	from := strings.ToUpper(strings.TrimSpace(fromUOM))
	one := decimal.NewFromInt(1)
	if from == "" {
		return "", one
	}

	key := from + "\x00" + vendor
	c.mu.RLock()
	conv, cached := c.cache[key]
	c.mu.RUnlock()

	if !cached {
		found, err := c.repo.Find(ctx, from, vendor)
		if err != nil {
			c.logger.Debug("uom lookup miss, using identity conversion",
				"from_uom", from, "vendor", vendor, "error", err)
			found = nil
		}
		c.mu.Lock()
		c.cache[key] = found
		c.mu.Unlock()
		conv = found
	}

	if conv == nil {
		return from, one
	}
	return strings.ToUpper(conv.ToUOM), decimal.NewFromFloat(conv.Multiplier)
}

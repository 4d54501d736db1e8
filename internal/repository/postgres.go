package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

// PostgresStore implements every store contract against Postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) FindByVendorAndCode(ctx context.Context, vendor, productCode string) (*entity.ItemBankEntry, error) {
	const q = `
		SELECT vendor, product_code, item_id, category_code, tax_profile_id, active
		FROM item_bank
		WHERE UPPER(vendor) = UPPER($1) AND UPPER(product_code) = UPPER($2) AND active`
	var e entity.ItemBankEntry
	err := s.pool.QueryRow(ctx, q, vendor, productCode).Scan(
		&e.Vendor, &e.ProductCode, &e.ItemID, &e.CategoryCode, &e.TaxProfileID, &e.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "item bank")
	}
	if err != nil {
		return nil, common.WrapError(err, "query item bank")
	}
	return &e, nil
}

func (s *PostgresStore) ListForVendor(ctx context.Context, vendor string) ([]*entity.MappingRule, error) {
	const q = `
		SELECT id, pattern, is_regex, category_code, tax_profile_id, confidence, priority, vendor, active
		FROM mapping_rules
		WHERE active AND (vendor = '' OR UPPER(vendor) = UPPER($1))
		ORDER BY priority ASC, id ASC`
	rows, err := s.pool.Query(ctx, q, vendor)
	if err != nil {
		return nil, common.WrapError(err, "query mapping rules")
	}
	defer rows.Close()

	var out []*entity.MappingRule
	for rows.Next() {
		var r entity.MappingRule
		if err := rows.Scan(&r.ID, &r.Pattern, &r.IsRegex, &r.CategoryCode, &r.TaxProfileID,
			&r.Confidence, &r.Priority, &r.Vendor, &r.Active); err != nil {
			return nil, common.WrapError(err, "scan mapping rule")
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByVendorCategory(ctx context.Context, vendor, vendorCategory string) (*entity.VendorCategoryMap, error) {
	const q = `
		SELECT vendor, vendor_category, category_code, tax_profile_id, confidence
		FROM vendor_categories
		WHERE UPPER(vendor_category) = UPPER($2) AND (UPPER(vendor) = UPPER($1) OR vendor = '')
		ORDER BY vendor DESC
		LIMIT 1`
	var m entity.VendorCategoryMap
	err := s.pool.QueryRow(ctx, q, vendor, vendorCategory).Scan(
		&m.Vendor, &m.VendorCategory, &m.CategoryCode, &m.TaxProfileID, &m.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "vendor category")
	}
	if err != nil {
		return nil, common.WrapError(err, "query vendor category")
	}
	return &m, nil
}

func (s *PostgresStore) Find(ctx context.Context, fromUOM, vendor string) (*entity.UOMConversion, error) {
	const q = `
		SELECT from_uom, vendor, to_uom, multiplier
		FROM uom_conversions
		WHERE UPPER(from_uom) = UPPER($1) AND (UPPER(vendor) = UPPER($2) OR vendor = '')
		ORDER BY vendor DESC
		LIMIT 1`
	var c entity.UOMConversion
	err := s.pool.QueryRow(ctx, q, fromUOM, vendor).Scan(&c.FromUOM, &c.Vendor, &c.ToUOM, &c.Multiplier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "uom conversion")
	}
	if err != nil {
		return nil, common.WrapError(err, "query uom conversion")
	}
	return &c, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, e entity.ManualMappingEntry) error {
	const q = `
		INSERT INTO manual_mapping_queue
			(vendor, product_code, description, occurrences, accumulated_cents,
			 first_seen, last_seen, last_invoice_number, suggested_category, suggested_confidence)
		VALUES ($1, $2, $3, 1, $4, $5, $5, $6, $7, $8)
		ON CONFLICT (vendor, product_code) DO UPDATE SET
			occurrences        = manual_mapping_queue.occurrences + 1,
			accumulated_cents  = manual_mapping_queue.accumulated_cents + EXCLUDED.accumulated_cents,
			last_seen          = EXCLUDED.last_seen,
			last_invoice_number = EXCLUDED.last_invoice_number,
			suggested_category = COALESCE(NULLIF(EXCLUDED.suggested_category, ''), manual_mapping_queue.suggested_category),
			suggested_confidence = EXCLUDED.suggested_confidence`
	_, err := s.pool.Exec(ctx, q,
		e.Vendor, e.ProductCode, e.Description, e.AccumulatedCents,
		e.LastSeen, e.LastInvoiceNumber, e.SuggestedCategory, e.SuggestedConfidence)
	return common.WrapError(err, "upsert manual mapping")
}

func (s *PostgresStore) List(ctx context.Context, vendor string) ([]*entity.ManualMappingEntry, error) {
	const q = `
		SELECT vendor, product_code, description, occurrences, accumulated_cents,
		       first_seen, last_seen, last_invoice_number, suggested_category, suggested_confidence
		FROM manual_mapping_queue
		WHERE $1 = '' OR UPPER(vendor) = UPPER($1)
		ORDER BY product_code ASC`
	rows, err := s.pool.Query(ctx, q, vendor)
	if err != nil {
		return nil, common.WrapError(err, "query manual mapping queue")
	}
	defer rows.Close()

	var out []*entity.ManualMappingEntry
	for rows.Next() {
		var e entity.ManualMappingEntry
		if err := rows.Scan(&e.Vendor, &e.ProductCode, &e.Description, &e.Occurrences,
			&e.AccumulatedCents, &e.FirstSeen, &e.LastSeen, &e.LastInvoiceNumber,
			&e.SuggestedCategory, &e.SuggestedConfidence); err != nil {
			return nil, common.WrapError(err, "scan manual mapping entry")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Exists(ctx context.Context, invoiceNumber, productCode string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM fifo_layers WHERE invoice_number = $1 AND product_code = $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, invoiceNumber, productCode).Scan(&exists); err != nil {
		return false, common.WrapError(err, "check fifo layer")
	}
	return exists, nil
}

func (s *PostgresStore) Append(ctx context.Context, layer *entity.FifoLayer) error {
	const q = `
		INSERT INTO fifo_layers (invoice_number, product_code, quantity, unit_cost_cents, received_date, lot)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, q,
		layer.InvoiceNumber, layer.ProductCode, layer.Quantity.String(),
		layer.UnitCostCents, layer.ReceivedDate, layer.Lot)
	return common.WrapError(err, "append fifo layer")
}

func (s *PostgresStore) ListByProduct(ctx context.Context, productCode string) ([]*entity.FifoLayer, error) {
	const q = `
		SELECT invoice_number, product_code, quantity::text, unit_cost_cents, received_date, lot
		FROM fifo_layers
		WHERE $1 = '' OR UPPER(product_code) = UPPER($1)
		ORDER BY received_date ASC, lot ASC`
	rows, err := s.pool.Query(ctx, q, productCode)
	if err != nil {
		return nil, common.WrapError(err, "query fifo layers")
	}
	defer rows.Close()

	var out []*entity.FifoLayer
	for rows.Next() {
		var l entity.FifoLayer
		var qty string
		if err := rows.Scan(&l.InvoiceNumber, &l.ProductCode, &qty, &l.UnitCostCents,
			&l.ReceivedDate, &l.Lot); err != nil {
			return nil, common.WrapError(err, "scan fifo layer")
		}
		d, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, common.WrapError(err, "parse layer quantity")
		}
		l.Quantity = d
		out = append(out, &l)
	}
	return out, rows.Err()
}

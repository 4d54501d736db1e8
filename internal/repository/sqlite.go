package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
)

// SQLiteStore implements every store contract against a local SQLite
// database, used by batch runs without a Postgres instance.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) a SQLite database and ensures the schema.
// Pass ":memory:" for an ephemeral run.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(err, "open sqlite")
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("sqlite database ready", "path", path)
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// DB exposes the underlying handle for callers that seed reference data.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS item_bank (
		vendor TEXT NOT NULL,
		product_code TEXT NOT NULL,
		item_id TEXT NOT NULL,
		category_code TEXT NOT NULL,
		tax_profile_id TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (vendor, product_code)
	);
	CREATE TABLE IF NOT EXISTS mapping_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern TEXT NOT NULL,
		is_regex INTEGER NOT NULL DEFAULT 0,
		category_code TEXT NOT NULL,
		tax_profile_id TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL,
		priority INTEGER NOT NULL DEFAULT 100,
		vendor TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE TABLE IF NOT EXISTS vendor_categories (
		vendor TEXT NOT NULL DEFAULT '',
		vendor_category TEXT NOT NULL,
		category_code TEXT NOT NULL,
		tax_profile_id TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL,
		PRIMARY KEY (vendor, vendor_category)
	);
	CREATE TABLE IF NOT EXISTS uom_conversions (
		from_uom TEXT NOT NULL,
		vendor TEXT NOT NULL DEFAULT '',
		to_uom TEXT NOT NULL,
		multiplier REAL NOT NULL,
		PRIMARY KEY (from_uom, vendor)
	);
	CREATE TABLE IF NOT EXISTS manual_mapping_queue (
		vendor TEXT NOT NULL,
		product_code TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		occurrences INTEGER NOT NULL DEFAULT 1,
		accumulated_cents INTEGER NOT NULL DEFAULT 0,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		last_invoice_number TEXT NOT NULL DEFAULT '',
		suggested_category TEXT NOT NULL DEFAULT '',
		suggested_confidence REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (vendor, product_code)
	);
	CREATE TABLE IF NOT EXISTS fifo_layers (
		invoice_number TEXT NOT NULL,
		product_code TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_cost_cents INTEGER NOT NULL,
		received_date TIMESTAMP,
		lot TEXT NOT NULL,
		PRIMARY KEY (invoice_number, product_code)
	);`
	_, err := s.db.ExecContext(ctx, ddl)
	return common.WrapError(err, "ensure schema")
}

func (s *SQLiteStore) FindByVendorAndCode(ctx context.Context, vendor, productCode string) (*entity.ItemBankEntry, error) {
	const q = `
		SELECT vendor, product_code, item_id, category_code, tax_profile_id, active
		FROM item_bank
		WHERE UPPER(vendor) = UPPER(?) AND UPPER(product_code) = UPPER(?) AND active = 1`
	var e entity.ItemBankEntry
	err := s.db.QueryRowContext(ctx, q, vendor, productCode).Scan(
		&e.Vendor, &e.ProductCode, &e.ItemID, &e.CategoryCode, &e.TaxProfileID, &e.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "item bank")
	}
	if err != nil {
		return nil, common.WrapError(err, "query item bank")
	}
	return &e, nil
}

func (s *SQLiteStore) ListForVendor(ctx context.Context, vendor string) ([]*entity.MappingRule, error) {
	const q = `
		SELECT id, pattern, is_regex, category_code, tax_profile_id, confidence, priority, vendor, active
		FROM mapping_rules
		WHERE active = 1 AND (vendor = '' OR UPPER(vendor) = UPPER(?))
		ORDER BY priority ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, vendor)
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

func (s *SQLiteStore) FindByVendorCategory(ctx context.Context, vendor, vendorCategory string) (*entity.VendorCategoryMap, error) {
	const q = `
		SELECT vendor, vendor_category, category_code, tax_profile_id, confidence
		FROM vendor_categories
		WHERE UPPER(vendor_category) = UPPER(?) AND (UPPER(vendor) = UPPER(?) OR vendor = '')
		ORDER BY vendor DESC
		LIMIT 1`
	var m entity.VendorCategoryMap
	err := s.db.QueryRowContext(ctx, q, vendorCategory, vendor).Scan(
		&m.Vendor, &m.VendorCategory, &m.CategoryCode, &m.TaxProfileID, &m.Confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "vendor category")
	}
	if err != nil {
		return nil, common.WrapError(err, "query vendor category")
	}
	return &m, nil
}

func (s *SQLiteStore) Find(ctx context.Context, fromUOM, vendor string) (*entity.UOMConversion, error) {
	const q = `
		SELECT from_uom, vendor, to_uom, multiplier
		FROM uom_conversions
		WHERE UPPER(from_uom) = UPPER(?) AND (UPPER(vendor) = UPPER(?) OR vendor = '')
		ORDER BY vendor DESC
		LIMIT 1`
	var c entity.UOMConversion
	err := s.db.QueryRowContext(ctx, q, fromUOM, vendor).Scan(&c.FromUOM, &c.Vendor, &c.ToUOM, &c.Multiplier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "uom conversion")
	}
	if err != nil {
		return nil, common.WrapError(err, "query uom conversion")
	}
	return &c, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, e entity.ManualMappingEntry) error {
	const q = `
		INSERT INTO manual_mapping_queue
			(vendor, product_code, description, occurrences, accumulated_cents,
			 first_seen, last_seen, last_invoice_number, suggested_category, suggested_confidence)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vendor, product_code) DO UPDATE SET
			occurrences         = occurrences + 1,
			accumulated_cents   = accumulated_cents + excluded.accumulated_cents,
			last_seen           = excluded.last_seen,
			last_invoice_number = excluded.last_invoice_number,
			suggested_category  = CASE WHEN excluded.suggested_category != '' THEN excluded.suggested_category ELSE suggested_category END,
			suggested_confidence = excluded.suggested_confidence`
	_, err := s.db.ExecContext(ctx, q,
		e.Vendor, e.ProductCode, e.Description, e.AccumulatedCents,
		e.LastSeen, e.LastSeen, e.LastInvoiceNumber, e.SuggestedCategory, e.SuggestedConfidence)
	return common.WrapError(err, "upsert manual mapping")
}

func (s *SQLiteStore) List(ctx context.Context, vendor string) ([]*entity.ManualMappingEntry, error) {
	const q = `
		SELECT vendor, product_code, description, occurrences, accumulated_cents,
		       first_seen, last_seen, last_invoice_number, suggested_category, suggested_confidence
		FROM manual_mapping_queue
		WHERE ? = '' OR UPPER(vendor) = UPPER(?)
		ORDER BY product_code ASC`
	rows, err := s.db.QueryContext(ctx, q, vendor, vendor)
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

func (s *SQLiteStore) Exists(ctx context.Context, invoiceNumber, productCode string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM fifo_layers WHERE invoice_number = ? AND product_code = ?)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, invoiceNumber, productCode).Scan(&exists); err != nil {
		return false, common.WrapError(err, "check fifo layer")
	}
	return exists, nil
}

func (s *SQLiteStore) Append(ctx context.Context, layer *entity.FifoLayer) error {
	const q = `
		INSERT INTO fifo_layers (invoice_number, product_code, quantity, unit_cost_cents, received_date, lot)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		layer.InvoiceNumber, layer.ProductCode, layer.Quantity.String(),
		layer.UnitCostCents, layer.ReceivedDate, layer.Lot)
	return common.WrapError(err, "append fifo layer")
}

func (s *SQLiteStore) ListByProduct(ctx context.Context, productCode string) ([]*entity.FifoLayer, error) {
	const q = `
		SELECT invoice_number, product_code, quantity, unit_cost_cents, received_date, lot
		FROM fifo_layers
		WHERE ? = '' OR UPPER(product_code) = UPPER(?)
		ORDER BY received_date ASC, lot ASC`
	rows, err := s.db.QueryContext(ctx, q, productCode, productCode)
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

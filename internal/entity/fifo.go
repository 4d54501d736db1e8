package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// FifoLayer is one append-only inventory cost lot. Layers are created once
// per (invoice, product) pair and never mutated; consumption is a separate
// concern outside this pipeline.
type FifoLayer struct {
	ProductCode   string          `json:"product_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCostCents int64           `json:"unit_cost_cents"`
	ReceivedDate  time.Time       `json:"received_date"`
	InvoiceNumber string          `json:"invoice_number"`
	Lot           string          `json:"lot"`
}

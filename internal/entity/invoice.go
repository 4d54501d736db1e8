package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexString decodes a JSON field that OCR extraction emits either as a
// string or a bare number. The value is kept as its raw textual form so
// digit-fix heuristics can run before numeric parsing.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// RawInvoice is one OCR-extracted invoice document as received from the
// extraction source. Immutable once received.
type RawInvoice struct {
	InvoiceNumber  string        `json:"invoice_number"`
	InvoiceDate    string        `json:"invoice_date"`
	DueDate        string        `json:"due_date"`
	Vendor         string        `json:"vendor"`
	CustomerNumber string        `json:"customer_number"`
	PurchaseOrder  string        `json:"purchase_order"`
	ExtractedText  string        `json:"extracted_text"`
	LineItems      []RawLineItem `json:"line_items"`
}

// RawLineItem is one extracted invoice line before normalization.
type RawLineItem struct {
	ProductCode string     `json:"product_code"`
	Description string     `json:"description"`
	Quantity    FlexString `json:"quantity"`
	Unit        string     `json:"unit"`
	PackSize    string     `json:"pack_size"`
	UnitPrice   FlexString `json:"unit_price,omitempty"`
	LineTotal   FlexString `json:"line_total,omitempty"`
	RawText     string     `json:"raw_text,omitempty"`
	Category    string     `json:"category,omitempty"`
	Brand       string     `json:"brand,omitempty"`
	Barcode     string     `json:"barcode,omitempty"`
}

// InvoiceHeader is the parsed invoice identity plus anchored totals.
// All money fields are integer cents and never negative.
type InvoiceHeader struct {
	InvoiceNumber   string           `json:"invoiceNumber"`
	InvoiceDate     time.Time        `json:"invoiceDate"`
	DueDate         time.Time        `json:"dueDate"`
	Vendor          string           `json:"vendor"`
	CustomerNumber  string           `json:"customerNumber,omitempty"`
	PurchaseOrder   string           `json:"purchaseOrder,omitempty"`
	SubtotalCents   int64            `json:"subtotalCents"`
	GSTCents        int64            `json:"gstCents"`
	QSTCents        int64            `json:"qstCents"`
	FreightCents    int64            `json:"freightCents"`
	FuelChargeCents int64            `json:"fuelChargeCents"`
	TotalCents      int64            `json:"totalCents"`
	CategoryRecap   map[string]int64 `json:"categoryRecap,omitempty"`
}

// ParsedInvoice is the complete parse result for one invoice.
type ParsedInvoice struct {
	Header     *InvoiceHeader    `json:"header"`
	LineItems  []LineItem        `json:"lineItems"`
	Validation *ValidationReport `json:"validation"`
}

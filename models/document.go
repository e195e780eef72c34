package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DocumentHeader carries the fields every numbered business document shares.
// Embedded into the concrete document models so the void engine and the
// number series can treat them uniformly.
type DocumentHeader struct {
	ID             int            `gorm:"primary_key" json:"id"`
	PartyId        int            `gorm:"not null;index" json:"party_id"`
	Party          *Party         `json:"party,omitempty"`
	DocumentDate   time.Time      `gorm:"not null;index" json:"document_date"`
	SequenceNo     int64          `gorm:"not null" json:"sequence_no"`
	DocumentNumber string         `gorm:"size:50;not null" json:"document_number"`
	CurrentStatus  DocumentStatus `gorm:"size:20;not null;index" json:"current_status"`
	VoidReason     string         `gorm:"size:255;default:null" json:"void_reason"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (h *DocumentHeader) header() *DocumentHeader { return h }

// voidable is implemented by every document model the void engine can reverse.
type voidable interface {
	header() *DocumentHeader
	documentKind() DocumentKind
	// guardVoid rejects voiding when downstream records depend on the
	// document, e.g. an invoice that already has payments applied.
	guardVoid() error
	// reverse writes the compensating inventory and ledger rows. It runs
	// inside the void transaction, after the status flip.
	reverse(tx *gorm.DB) error
}

// lineTotals accumulates per-line GST breakups into document totals.
type lineTotals struct {
	Subtotal      decimal.Decimal
	CentralTax    decimal.Decimal
	StateTax      decimal.Decimal
	IntegratedTax decimal.Decimal
	GrandTotal    decimal.Decimal
}

func (t *lineTotals) add(b GSTBreakup) {
	t.Subtotal = t.Subtotal.Add(b.TaxableAmount)
	t.CentralTax = t.CentralTax.Add(b.CentralTax)
	t.StateTax = t.StateTax.Add(b.StateTax)
	t.IntegratedTax = t.IntegratedTax.Add(b.IntegratedTax)
	t.GrandTotal = t.GrandTotal.Add(b.TotalWithTax)
}

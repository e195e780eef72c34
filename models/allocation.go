package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/distro_backend/config"
)

// PaymentAllocation records one application of a payment or advance against
// an invoice. Rows are written inside the source document's transaction.
type PaymentAllocation struct {
	ID          int             `gorm:"primary_key" json:"id"`
	SourceKind  DocumentKind    `gorm:"size:30;not null;index:idx_alloc_source" json:"source_kind"`
	SourceId    int             `gorm:"not null;index:idx_alloc_source" json:"source_id"`
	InvoiceKind DocumentKind    `gorm:"size:30;not null;index:idx_alloc_invoice" json:"invoice_kind"`
	InvoiceId   int             `gorm:"not null;index:idx_alloc_invoice" json:"invoice_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// openInvoiceRef is one invoice eligible for allocation, already ordered
// oldest first.
type openInvoiceRef struct {
	Id               int             `gorm:"column:id"`
	DocumentNumber   string          `gorm:"column:document_number"`
	AmountPaid       decimal.Decimal `gorm:"column:amount_paid"`
	RemainingBalance decimal.Decimal `gorm:"column:remaining_balance"`
}

type allocationSlice struct {
	Invoice openInvoiceRef
	Amount  decimal.Decimal
}

// planAllocation walks the open invoices oldest first and carves the amount
// into per-invoice slices. No slice ever exceeds an invoice's remaining
// balance; whatever cannot be placed is returned as leftover.
func planAllocation(amount decimal.Decimal, open []openInvoiceRef) ([]allocationSlice, decimal.Decimal) {
	var plan []allocationSlice
	left := amount
	for _, inv := range open {
		if !left.IsPositive() {
			break
		}
		if !inv.RemainingBalance.IsPositive() {
			continue
		}
		slice := decimal.Min(left, inv.RemainingBalance)
		plan = append(plan, allocationSlice{Invoice: inv, Amount: slice})
		left = left.Sub(slice)
	}
	return plan, left
}

// invoiceTableForPartyKind: dealer money comes in against sales invoices,
// supplier money goes out against purchase invoices.
func invoiceTableForPartyKind(kind PartyKind) (string, DocumentKind) {
	if kind == PartyKindSupplier {
		return "purchase_invoices", DocumentKindPurchaseInvoice
	}
	return "sales_invoices", DocumentKindSalesInvoice
}

// applyAllocationFIFO locks the party's open invoices oldest first (by
// document date, then sequence number for same-day ties), plans the split
// and applies it: invoice paid amounts, statuses and allocation rows all
// move in the caller's transaction. Returns the amount actually applied.
func applyAllocationFIFO(tx *gorm.DB, sourceKind DocumentKind, sourceId int, party *Party, amount decimal.Decimal) (decimal.Decimal, error) {
	table, invoiceKind := invoiceTableForPartyKind(party.Kind)

	var open []openInvoiceRef
	err := tx.Table(table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id, document_number, amount_paid, remaining_balance").
		Where("party_id = ? AND current_status IN ? AND remaining_balance > 0",
			party.ID, []DocumentStatus{DocumentStatusIssued, DocumentStatusPartialPaid}).
		Order("document_date, sequence_no").
		Scan(&open).Error
	if err != nil {
		return decimal.Zero, err
	}

	plan, _ := planAllocation(amount, open)
	applied := decimal.Zero
	for _, s := range plan {
		newPaid := s.Invoice.AmountPaid.Add(s.Amount)
		newRemaining := s.Invoice.RemainingBalance.Sub(s.Amount)
		status := DocumentStatusPartialPaid
		if newRemaining.IsZero() {
			status = DocumentStatusPaid
		}
		err := tx.Table(table).Where("id = ?", s.Invoice.Id).Updates(map[string]interface{}{
			"amount_paid":       newPaid,
			"remaining_balance": newRemaining,
			"current_status":    status,
		}).Error
		if err != nil {
			return decimal.Zero, err
		}
		alloc := PaymentAllocation{
			SourceKind:  sourceKind,
			SourceId:    sourceId,
			InvoiceKind: invoiceKind,
			InvoiceId:   s.Invoice.Id,
			Amount:      s.Amount,
		}
		if err := tx.Create(&alloc).Error; err != nil {
			return decimal.Zero, err
		}
		applied = applied.Add(s.Amount)
	}
	return applied, nil
}

// reopenInvoiceBalance puts a previously settled amount back on an invoice's
// open balance, recomputing the status from the paid amount. Used when a
// credit or debit note that shrank the balance is voided. Void invoices are
// left alone.
func reopenInvoiceBalance(tx *gorm.DB, table string, invoiceId int, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	var inv struct {
		AmountPaid       decimal.Decimal `gorm:"column:amount_paid"`
		RemainingBalance decimal.Decimal `gorm:"column:remaining_balance"`
		CurrentStatus    DocumentStatus  `gorm:"column:current_status"`
	}
	err := tx.Table(table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("amount_paid, remaining_balance, current_status").
		Where("id = ?", invoiceId).
		Scan(&inv).Error
	if err != nil {
		return err
	}
	if inv.CurrentStatus == DocumentStatusVoid {
		return nil
	}
	status := DocumentStatusPartialPaid
	if !inv.AmountPaid.IsPositive() {
		status = DocumentStatusIssued
	}
	return tx.Table(table).Where("id = ?", invoiceId).Updates(map[string]interface{}{
		"remaining_balance": inv.RemainingBalance.Add(amount),
		"current_status":    status,
	}).Error
}

// unwindAllocations rolls back every application a source document made:
// invoice balances reopen and the allocation rows are marked reversed by
// deletion. Used when voiding a payment or advance receipt.
func unwindAllocations(tx *gorm.DB, sourceKind DocumentKind, sourceId int) error {
	var allocs []PaymentAllocation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("source_kind = ? AND source_id = ?", sourceKind, sourceId).
		Find(&allocs).Error
	if err != nil {
		return err
	}
	for _, a := range allocs {
		table := "sales_invoices"
		if a.InvoiceKind == DocumentKindPurchaseInvoice {
			table = "purchase_invoices"
		}
		var inv openInvoiceRef
		err := tx.Table(table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id, document_number, amount_paid, remaining_balance").
			Where("id = ?", a.InvoiceId).
			Scan(&inv).Error
		if err != nil {
			return err
		}
		newPaid := inv.AmountPaid.Sub(a.Amount)
		status := DocumentStatusPartialPaid
		if !newPaid.IsPositive() {
			status = DocumentStatusIssued
		}
		err = tx.Table(table).Where("id = ?", a.InvoiceId).Updates(map[string]interface{}{
			"amount_paid":       newPaid,
			"remaining_balance": inv.RemainingBalance.Add(a.Amount),
			"current_status":    status,
		}).Error
		if err != nil {
			return err
		}
		if err := tx.Delete(&PaymentAllocation{}, a.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetAllocationsForSource lists where a payment or advance went.
func GetAllocationsForSource(ctx context.Context, sourceKind DocumentKind, sourceId int) ([]*PaymentAllocation, error) {
	db := config.GetDB()
	var allocs []*PaymentAllocation
	err := db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", sourceKind, sourceId).
		Order("id").
		Find(&allocs).Error
	if err != nil {
		return nil, err
	}
	return allocs, nil
}

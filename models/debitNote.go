package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// DebitNote reverses part or all of a purchase invoice: rejected goods
// leave their batches and the supplier's ledger is debited.
type DebitNote struct {
	DocumentHeader     `gorm:"embedded"`
	PurchaseInvoiceId  int               `gorm:"index;not null" json:"purchase_invoice_id"`
	Reason             string            `gorm:"size:255;not null" json:"reason"`
	NoteSubtotal       decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"note_subtotal"`
	TotalCentralTax    decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_central_tax"`
	TotalStateTax      decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_state_tax"`
	TotalIntegratedTax decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_integrated_tax"`
	NoteTotalAmount    decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"note_total_amount"`
	InvoiceAdjusted    decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"invoice_adjusted"`
	Details            []DebitNoteDetail `gorm:"foreignKey:DebitNoteId" json:"details"`
}

type DebitNoteDetail struct {
	ID                      int             `gorm:"primary_key" json:"id"`
	DebitNoteId             int             `gorm:"index;not null" json:"debit_note_id"`
	PurchaseInvoiceDetailId int             `gorm:"index;not null" json:"purchase_invoice_detail_id"`
	ProductId               int             `gorm:"not null" json:"product_id"`
	BatchId                 int             `gorm:"not null" json:"batch_id"`
	ProductName             string          `gorm:"size:255;not null" json:"product_name"`
	HsnCode                 string          `gorm:"size:8;not null" json:"hsn_code"`
	Qty                     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Rate                    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rate"`
	TaxRate                 decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	TaxableAmount           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"taxable_amount"`
	CentralTax              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"central_tax"`
	StateTax                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"state_tax"`
	IntegratedTax           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"integrated_tax"`
	DetailTotalAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
}

type NewDebitNote struct {
	PurchaseInvoiceId int                  `json:"purchase_invoice_id" binding:"required"`
	NoteDate          time.Time            `json:"note_date" binding:"required"`
	Reason            string               `json:"reason" binding:"required"`
	Details           []NewDebitNoteDetail `json:"details" binding:"required,dive"`
}

type NewDebitNoteDetail struct {
	PurchaseInvoiceDetailId int             `json:"purchase_invoice_detail_id" binding:"required"`
	Qty                     decimal.Decimal `json:"qty" binding:"required"`
}

func debitedQtySoFar(tx *gorm.DB, invoiceDetailId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&DebitNoteDetail{}).
		Select("SUM(debit_note_details.qty)").
		Joins("JOIN debit_notes ON debit_notes.id = debit_note_details.debit_note_id").
		Where("debit_note_details.purchase_invoice_detail_id = ?", invoiceDetailId).
		Where("debit_notes.current_status <> ?", DocumentStatusVoid).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func CreateDebitNote(ctx context.Context, input *NewDebitNote) (*DebitNote, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var note *DebitNote
	err := runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		invoice, err := utils.FetchModelForUpdate[PurchaseInvoice](tx, input.PurchaseInvoiceId, "Details")
		if err != nil {
			return nil, err
		}
		if invoice.CurrentStatus == DocumentStatusVoid {
			return nil, errors.New("cannot debit a void purchase invoice")
		}
		party, err := fetchActiveParty(tx.Statement.Context, invoice.PartyId, PartyKindSupplier)
		if err != nil {
			return nil, err
		}
		fy, err := financialYearForDate(tx, input.NoteDate)
		if err != nil {
			return nil, err
		}

		invoiceLines := make(map[int]PurchaseInvoiceDetail, len(invoice.Details))
		for _, d := range invoice.Details {
			invoiceLines[d.ID] = d
		}

		var totals lineTotals
		details := make([]DebitNoteDetail, 0, len(input.Details))
		for _, d := range input.Details {
			line, ok := invoiceLines[d.PurchaseInvoiceDetailId]
			if !ok {
				return nil, fmt.Errorf("purchase invoice detail %d is not on invoice %s", d.PurchaseInvoiceDetailId, invoice.DocumentNumber)
			}
			if !d.Qty.IsPositive() {
				return nil, errors.New("debit note qty must be positive")
			}
			debited, err := debitedQtySoFar(tx, d.PurchaseInvoiceDetailId)
			if err != nil {
				return nil, err
			}
			if debited.Add(d.Qty).GreaterThan(line.Qty) {
				return nil, fmt.Errorf("debit qty %s exceeds remaining received qty %s for %s",
					d.Qty, line.Qty.Sub(debited), line.ProductName)
			}

			taxable := d.Qty.Mul(line.Rate).Round(2)
			breakup := CalculateGST(taxable, line.TaxRate, party.StateCode, config.HomeStateCode())
			totals.add(breakup)
			details = append(details, DebitNoteDetail{
				PurchaseInvoiceDetailId: line.ID,
				ProductId:               line.ProductId,
				BatchId:                 line.BatchId,
				ProductName:             line.ProductName,
				HsnCode:                 line.HsnCode,
				Qty:                     d.Qty,
				Rate:                    line.Rate,
				TaxRate:                 line.TaxRate,
				TaxableAmount:           breakup.TaxableAmount,
				CentralTax:              breakup.CentralTax,
				StateTax:                breakup.StateTax,
				IntegratedTax:           breakup.IntegratedTax,
				DetailTotalAmount:       breakup.TotalWithTax,
			})
		}

		seqNo, number, err := NextDocumentNumber(tx, SeriesDebitNote, fy.Code)
		if err != nil {
			return nil, err
		}

		note = &DebitNote{
			DocumentHeader: DocumentHeader{
				PartyId:        party.ID,
				DocumentDate:   input.NoteDate,
				SequenceNo:     seqNo,
				DocumentNumber: number,
				CurrentStatus:  DocumentStatusIssued,
			},
			PurchaseInvoiceId:  invoice.ID,
			Reason:             input.Reason,
			NoteSubtotal:       totals.Subtotal,
			TotalCentralTax:    totals.CentralTax,
			TotalStateTax:      totals.StateTax,
			TotalIntegratedTax: totals.IntegratedTax,
			NoteTotalAmount:    totals.GrandTotal,
			InvoiceAdjusted:    decimal.Min(totals.GrandTotal, invoice.RemainingBalance),
			Details:            details,
		}
		if err := tx.Create(note).Error; err != nil {
			return nil, err
		}

		// The debited amount is no longer payable on the purchase invoice.
		if note.InvoiceAdjusted.IsPositive() {
			newRemaining := invoice.RemainingBalance.Sub(note.InvoiceAdjusted)
			status := invoice.CurrentStatus
			if newRemaining.IsZero() {
				status = DocumentStatusPaid
			}
			err := tx.Model(&PurchaseInvoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
				"remaining_balance": newRemaining,
				"current_status":    status,
			}).Error
			if err != nil {
				return nil, err
			}
		}

		// Rejected goods leave stock; this can fail when they were sold on.
		for _, d := range note.Details {
			err := DebitStock(tx, d.BatchId, d.Qty, InventoryTxnTypePurchaseReturn, DocumentKindDebitNote, note.ID, input.Reason)
			if err != nil {
				return nil, err
			}
		}

		err = PostLedger(tx, party.ID, input.NoteDate, LedgerEntryTypeDebitNote,
			note.NoteTotalAmount, decimal.Zero, DocumentKindDebitNote, note.ID,
			"debit note "+number+" against "+invoice.DocumentNumber)
		if err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "debit_notes",
			RecordId:    note.ID,
			After:       note,
			Description: "created debit note " + number + " against " + invoice.DocumentNumber,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func GetDebitNote(ctx context.Context, id int) (*DebitNote, error) {
	return utils.FetchModel[DebitNote](ctx, id, "Details", "Party")
}

func (n *DebitNote) documentKind() DocumentKind { return DocumentKindDebitNote }

func (n *DebitNote) guardVoid() error { return nil }

func (n *DebitNote) reverse(tx *gorm.DB) error {
	for _, d := range n.Details {
		err := CreditStock(tx, d.BatchId, d.Qty, InventoryTxnTypeReversal,
			DocumentKindDebitNote, n.ID, "void "+n.DocumentNumber)
		if err != nil {
			return err
		}
	}
	if err := reopenInvoiceBalance(tx, "purchase_invoices", n.PurchaseInvoiceId, n.InvoiceAdjusted); err != nil {
		return err
	}
	return PostLedger(tx, n.PartyId, utils.TruncateToDate(time.Now()), LedgerEntryTypeReversal,
		decimal.Zero, n.NoteTotalAmount, DocumentKindDebitNote, n.ID,
		"void "+n.DocumentNumber)
}

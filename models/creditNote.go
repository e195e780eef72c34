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

// CreditNote reverses part or all of a sales invoice: returned goods go
// back into their batches and the dealer's ledger is credited. Lines always
// reference the original invoice lines, at the original rate and tax rate.
type CreditNote struct {
	DocumentHeader     `gorm:"embedded"`
	SalesInvoiceId     int                `gorm:"index;not null" json:"sales_invoice_id"`
	Reason             string             `gorm:"size:255;not null" json:"reason"`
	NoteSubtotal       decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"note_subtotal"`
	TotalCentralTax    decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_central_tax"`
	TotalStateTax      decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_state_tax"`
	TotalIntegratedTax decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_integrated_tax"`
	NoteTotalAmount    decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"note_total_amount"`
	InvoiceAdjusted    decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"invoice_adjusted"`
	Details            []CreditNoteDetail `gorm:"foreignKey:CreditNoteId" json:"details"`
}

type CreditNoteDetail struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	CreditNoteId         int             `gorm:"index;not null" json:"credit_note_id"`
	SalesInvoiceDetailId int             `gorm:"index;not null" json:"sales_invoice_detail_id"`
	ProductId            int             `gorm:"not null" json:"product_id"`
	BatchId              int             `gorm:"not null" json:"batch_id"`
	ProductName          string          `gorm:"size:255;not null" json:"product_name"`
	HsnCode              string          `gorm:"size:8;not null" json:"hsn_code"`
	Qty                  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Rate                 decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rate"`
	TaxRate              decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	TaxableAmount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"taxable_amount"`
	CentralTax           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"central_tax"`
	StateTax             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"state_tax"`
	IntegratedTax        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"integrated_tax"`
	DetailTotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
}

type NewCreditNote struct {
	SalesInvoiceId int                   `json:"sales_invoice_id" binding:"required"`
	NoteDate       time.Time             `json:"note_date" binding:"required"`
	Reason         string                `json:"reason" binding:"required"`
	Details        []NewCreditNoteDetail `json:"details" binding:"required,dive"`
}

type NewCreditNoteDetail struct {
	SalesInvoiceDetailId int             `json:"sales_invoice_detail_id" binding:"required"`
	Qty                  decimal.Decimal `json:"qty" binding:"required"`
}

// creditedQtySoFar sums the already-credited quantity against one invoice
// line, across all non-void credit notes.
func creditedQtySoFar(tx *gorm.DB, invoiceDetailId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&CreditNoteDetail{}).
		Select("SUM(credit_note_details.qty)").
		Joins("JOIN credit_notes ON credit_notes.id = credit_note_details.credit_note_id").
		Where("credit_note_details.sales_invoice_detail_id = ?", invoiceDetailId).
		Where("credit_notes.current_status <> ?", DocumentStatusVoid).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func CreateCreditNote(ctx context.Context, input *NewCreditNote) (*CreditNote, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var note *CreditNote
	err := runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		invoice, err := utils.FetchModelForUpdate[SalesInvoice](tx, input.SalesInvoiceId, "Details")
		if err != nil {
			return nil, err
		}
		if invoice.CurrentStatus == DocumentStatusVoid {
			return nil, errors.New("cannot credit a void invoice")
		}
		party, err := fetchActiveParty(tx.Statement.Context, invoice.PartyId, PartyKindDealer)
		if err != nil {
			return nil, err
		}
		fy, err := financialYearForDate(tx, input.NoteDate)
		if err != nil {
			return nil, err
		}

		invoiceLines := make(map[int]SalesInvoiceDetail, len(invoice.Details))
		for _, d := range invoice.Details {
			invoiceLines[d.ID] = d
		}

		var totals lineTotals
		details := make([]CreditNoteDetail, 0, len(input.Details))
		for _, d := range input.Details {
			line, ok := invoiceLines[d.SalesInvoiceDetailId]
			if !ok {
				return nil, fmt.Errorf("invoice detail %d is not on invoice %s", d.SalesInvoiceDetailId, invoice.DocumentNumber)
			}
			if !d.Qty.IsPositive() {
				return nil, errors.New("credit note qty must be positive")
			}
			credited, err := creditedQtySoFar(tx, d.SalesInvoiceDetailId)
			if err != nil {
				return nil, err
			}
			if credited.Add(d.Qty).GreaterThan(line.Qty) {
				return nil, fmt.Errorf("credit qty %s exceeds remaining invoiced qty %s for %s",
					d.Qty, line.Qty.Sub(credited), line.ProductName)
			}

			taxable := d.Qty.Mul(line.Rate).Round(2)
			breakup := CalculateGST(taxable, line.TaxRate, party.StateCode, config.HomeStateCode())
			totals.add(breakup)
			details = append(details, CreditNoteDetail{
				SalesInvoiceDetailId: line.ID,
				ProductId:            line.ProductId,
				BatchId:              line.BatchId,
				ProductName:          line.ProductName,
				HsnCode:              line.HsnCode,
				Qty:                  d.Qty,
				Rate:                 line.Rate,
				TaxRate:              line.TaxRate,
				TaxableAmount:        breakup.TaxableAmount,
				CentralTax:           breakup.CentralTax,
				StateTax:             breakup.StateTax,
				IntegratedTax:        breakup.IntegratedTax,
				DetailTotalAmount:    breakup.TotalWithTax,
			})
		}

		seqNo, number, err := NextDocumentNumber(tx, SeriesCreditNote, fy.Code)
		if err != nil {
			return nil, err
		}

		note = &CreditNote{
			DocumentHeader: DocumentHeader{
				PartyId:        party.ID,
				DocumentDate:   input.NoteDate,
				SequenceNo:     seqNo,
				DocumentNumber: number,
				CurrentStatus:  DocumentStatusIssued,
			},
			SalesInvoiceId:     invoice.ID,
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

		// The credited amount is no longer receivable on the invoice, so the
		// open balance shrinks the same way a payment application would.
		if note.InvoiceAdjusted.IsPositive() {
			newRemaining := invoice.RemainingBalance.Sub(note.InvoiceAdjusted)
			status := invoice.CurrentStatus
			if newRemaining.IsZero() {
				status = DocumentStatusPaid
			}
			err := tx.Model(&SalesInvoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
				"remaining_balance": newRemaining,
				"current_status":    status,
			}).Error
			if err != nil {
				return nil, err
			}
		}

		for _, d := range note.Details {
			err := CreditStock(tx, d.BatchId, d.Qty, InventoryTxnTypeSalesReturn, DocumentKindCreditNote, note.ID, input.Reason)
			if err != nil {
				return nil, err
			}
		}

		err = PostLedger(tx, party.ID, input.NoteDate, LedgerEntryTypeCreditNote,
			decimal.Zero, note.NoteTotalAmount, DocumentKindCreditNote, note.ID,
			"credit note "+number+" against "+invoice.DocumentNumber)
		if err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "credit_notes",
			RecordId:    note.ID,
			After:       note,
			Description: "created credit note " + number + " against " + invoice.DocumentNumber,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func GetCreditNote(ctx context.Context, id int) (*CreditNote, error) {
	return utils.FetchModel[CreditNote](ctx, id, "Details", "Party")
}

func (n *CreditNote) documentKind() DocumentKind { return DocumentKindCreditNote }

func (n *CreditNote) guardVoid() error { return nil }

// reverse takes the returned goods back out of stock, debits the dealer
// again and reopens the credited amount on the invoice. Fails when the
// returned quantity has since been sold.
func (n *CreditNote) reverse(tx *gorm.DB) error {
	for _, d := range n.Details {
		err := DebitStock(tx, d.BatchId, d.Qty, InventoryTxnTypeReversal,
			DocumentKindCreditNote, n.ID, "void "+n.DocumentNumber)
		if err != nil {
			return err
		}
	}
	if err := reopenInvoiceBalance(tx, "sales_invoices", n.SalesInvoiceId, n.InvoiceAdjusted); err != nil {
		return err
	}
	return PostLedger(tx, n.PartyId, utils.TruncateToDate(time.Now()), LedgerEntryTypeReversal,
		n.NoteTotalAmount, decimal.Zero, DocumentKindCreditNote, n.ID,
		"void "+n.DocumentNumber)
}

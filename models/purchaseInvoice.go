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

// PurchaseInvoice records goods received from a supplier. Booking one
// credits batch stock (creating the batch on first receipt) and credits the
// supplier's ledger for the grand total.
type PurchaseInvoice struct {
	DocumentHeader        `gorm:"embedded"`
	SupplierInvoiceNumber string                  `gorm:"size:100;default:null" json:"supplier_invoice_number"`
	Notes                 string                  `gorm:"type:text;default:null" json:"notes"`
	InvoiceDueDate        *time.Time              `json:"invoice_due_date"`
	InvoiceSubtotal       decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"invoice_subtotal"`
	TotalCentralTax       decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"total_central_tax"`
	TotalStateTax         decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"total_state_tax"`
	TotalIntegratedTax    decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"total_integrated_tax"`
	InvoiceTotalAmount    decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"invoice_total_amount"`
	AmountPaid            decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	RemainingBalance      decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"remaining_balance"`
	Details               []PurchaseInvoiceDetail `gorm:"foreignKey:PurchaseInvoiceId" json:"details"`
}

type PurchaseInvoiceDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PurchaseInvoiceId int             `gorm:"index;not null" json:"purchase_invoice_id"`
	ProductId         int             `gorm:"not null" json:"product_id"`
	BatchId           int             `gorm:"not null" json:"batch_id"`
	ProductName       string          `gorm:"size:255;not null" json:"product_name"`
	HsnCode           string          `gorm:"size:8;not null" json:"hsn_code"`
	Qty               decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Rate              decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rate"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	TaxableAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"taxable_amount"`
	CentralTax        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"central_tax"`
	StateTax          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"state_tax"`
	IntegratedTax     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"integrated_tax"`
	DetailTotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
}

type NewPurchaseInvoice struct {
	PartyId               int                        `json:"party_id" binding:"required"`
	InvoiceDate           time.Time                  `json:"invoice_date" binding:"required"`
	SupplierInvoiceNumber string                     `json:"supplier_invoice_number"`
	Notes                 string                     `json:"notes"`
	Details               []NewPurchaseInvoiceDetail `json:"details" binding:"required,dive"`
}

// NewPurchaseInvoiceDetail identifies the batch by number; the batch row is
// created on first receipt. Purchase invoices are the only place batches
// come into existence.
type NewPurchaseInvoiceDetail struct {
	ProductId   int             `json:"product_id" binding:"required"`
	BatchNumber string          `json:"batch_number" binding:"required"`
	Qty         decimal.Decimal `json:"qty" binding:"required"`
	Rate        decimal.Decimal `json:"rate" binding:"required"`
	MfgDate     *time.Time      `json:"mfg_date"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
}

func CreatePurchaseInvoice(ctx context.Context, input *NewPurchaseInvoice) (*PurchaseInvoice, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	party, err := fetchActiveParty(ctx, input.PartyId, PartyKindSupplier)
	if err != nil {
		return nil, err
	}

	var invoice *PurchaseInvoice
	err = runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		fy, err := financialYearForDate(tx, input.InvoiceDate)
		if err != nil {
			return nil, err
		}

		var totals lineTotals
		details := make([]PurchaseInvoiceDetail, 0, len(input.Details))
		for _, d := range input.Details {
			if err := validateLineAmounts(d.Qty, d.Rate); err != nil {
				return nil, err
			}
			product, err := utils.FetchModel[Product](tx.Statement.Context, d.ProductId)
			if err != nil {
				return nil, fmt.Errorf("product %d: %w", d.ProductId, err)
			}
			batch, err := fetchOrCreateBatch(tx, product.ID, d.BatchNumber, d.Rate, d.MfgDate, d.ExpiryDate)
			if err != nil {
				return nil, err
			}

			taxable := d.Qty.Mul(d.Rate).Round(2)
			breakup := CalculateGST(taxable, product.GstRate, party.StateCode, config.HomeStateCode())
			totals.add(breakup)
			details = append(details, PurchaseInvoiceDetail{
				ProductId:         product.ID,
				BatchId:           batch.ID,
				ProductName:       product.Name,
				HsnCode:           product.HsnCode,
				Qty:               d.Qty,
				Rate:              d.Rate,
				TaxRate:           product.GstRate,
				TaxableAmount:     breakup.TaxableAmount,
				CentralTax:        breakup.CentralTax,
				StateTax:          breakup.StateTax,
				IntegratedTax:     breakup.IntegratedTax,
				DetailTotalAmount: breakup.TotalWithTax,
			})
		}

		seqNo, number, err := NextDocumentNumber(tx, SeriesPurchaseInvoice, fy.Code)
		if err != nil {
			return nil, err
		}

		invoice = &PurchaseInvoice{
			DocumentHeader: DocumentHeader{
				PartyId:        party.ID,
				DocumentDate:   input.InvoiceDate,
				SequenceNo:     seqNo,
				DocumentNumber: number,
				CurrentStatus:  DocumentStatusIssued,
			},
			SupplierInvoiceNumber: input.SupplierInvoiceNumber,
			Notes:                 input.Notes,
			InvoiceDueDate:        calculateDueDate(input.InvoiceDate, party.PaymentTermDays),
			InvoiceSubtotal:       totals.Subtotal,
			TotalCentralTax:       totals.CentralTax,
			TotalStateTax:         totals.StateTax,
			TotalIntegratedTax:    totals.IntegratedTax,
			InvoiceTotalAmount:    totals.GrandTotal,
			RemainingBalance:      totals.GrandTotal,
			Details:               details,
		}
		if err := tx.Create(invoice).Error; err != nil {
			return nil, err
		}

		for _, d := range invoice.Details {
			err := CreditStock(tx, d.BatchId, d.Qty, InventoryTxnTypePurchase, DocumentKindPurchaseInvoice, invoice.ID, "")
			if err != nil {
				return nil, err
			}
		}

		err = PostLedger(tx, party.ID, input.InvoiceDate, LedgerEntryTypePurchaseInvoice,
			decimal.Zero, invoice.InvoiceTotalAmount, DocumentKindPurchaseInvoice, invoice.ID,
			"purchase invoice "+number)
		if err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "purchase_invoices",
			RecordId:    invoice.ID,
			After:       invoice,
			Description: "created purchase invoice " + number,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func GetPurchaseInvoice(ctx context.Context, id int) (*PurchaseInvoice, error) {
	return utils.FetchModel[PurchaseInvoice](ctx, id, "Details", "Party")
}

func (inv *PurchaseInvoice) documentKind() DocumentKind { return DocumentKindPurchaseInvoice }

func (inv *PurchaseInvoice) guardVoid() error {
	if inv.AmountPaid.IsPositive() {
		return errors.New("purchase invoice has payments applied; void the payments first")
	}
	return nil
}

// reverse removes the received quantities again and posts the compensating
// debit. Fails with ErrInsufficientStock when the received goods were
// already sold on.
func (inv *PurchaseInvoice) reverse(tx *gorm.DB) error {
	for _, d := range inv.Details {
		err := DebitStock(tx, d.BatchId, d.Qty, InventoryTxnTypeReversal,
			DocumentKindPurchaseInvoice, inv.ID, "void "+inv.DocumentNumber)
		if err != nil {
			return err
		}
	}
	return PostLedger(tx, inv.PartyId, utils.TruncateToDate(time.Now()), LedgerEntryTypeReversal,
		inv.InvoiceTotalAmount, decimal.Zero, DocumentKindPurchaseInvoice, inv.ID,
		"void "+inv.DocumentNumber)
}

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

// SalesInvoice is the dealer-facing tax invoice. Issuing one debits batch
// stock and debits the dealer's ledger for the grand total; both happen in
// the same transaction as the invoice row, so a failed stock check aborts
// the whole document.
type SalesInvoice struct {
	DocumentHeader     `gorm:"embedded"`
	SalesOrderId       int                  `gorm:"default:null" json:"sales_order_id"`
	ReferenceNumber    string               `gorm:"size:100;default:null" json:"reference_number"`
	VehicleNumber      string               `gorm:"size:20;default:null" json:"vehicle_number"`
	Notes              string               `gorm:"type:text;default:null" json:"notes"`
	InvoiceDueDate     *time.Time           `json:"invoice_due_date"`
	InvoiceSubtotal    decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_subtotal"`
	TotalCentralTax    decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_central_tax"`
	TotalStateTax      decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_state_tax"`
	TotalIntegratedTax decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_integrated_tax"`
	InvoiceTotalAmount decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"invoice_total_amount"`
	AmountPaid         decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	RemainingBalance   decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"remaining_balance"`
	Details            []SalesInvoiceDetail `gorm:"foreignKey:SalesInvoiceId" json:"details"`
}

// SalesInvoiceDetail snapshots product name, HSN and tax rate at issue time
// so later catalog edits cannot change a filed invoice.
type SalesInvoiceDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId    int             `gorm:"index;not null" json:"sales_invoice_id"`
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

type NewSalesInvoice struct {
	PartyId         int                     `json:"party_id" binding:"required"`
	InvoiceDate     time.Time               `json:"invoice_date" binding:"required"`
	ReferenceNumber string                  `json:"reference_number"`
	VehicleNumber   string                  `json:"vehicle_number"`
	Notes           string                  `json:"notes"`
	Details         []NewSalesInvoiceDetail `json:"details" binding:"required,dive"`
}

type NewSalesInvoiceDetail struct {
	ProductId int             `json:"product_id" binding:"required"`
	BatchId   int             `json:"batch_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	Rate      decimal.Decimal `json:"rate" binding:"required"`
}

// buildSalesInvoice does the actual issue inside an open transaction. Shared
// by direct creation and order conversion.
func buildSalesInvoice(tx *gorm.DB, party *Party, input *NewSalesInvoice) (*SalesInvoice, error) {
	fy, err := financialYearForDate(tx, input.InvoiceDate)
	if err != nil {
		return nil, err
	}

	var totals lineTotals
	details := make([]SalesInvoiceDetail, 0, len(input.Details))
	for _, d := range input.Details {
		if err := validateLineAmounts(d.Qty, d.Rate); err != nil {
			return nil, err
		}
		product, err := utils.FetchModel[Product](tx.Statement.Context, d.ProductId)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", d.ProductId, err)
		}
		var batch ProductBatch
		if err := tx.First(&batch, d.BatchId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("batch %d: %w", d.BatchId, utils.ErrorRecordNotFound)
			}
			return nil, err
		}
		if batch.ProductId != product.ID {
			return nil, fmt.Errorf("batch %d does not belong to product %d", d.BatchId, d.ProductId)
		}

		taxable := d.Qty.Mul(d.Rate).Round(2)
		breakup := CalculateGST(taxable, product.GstRate, party.StateCode, config.HomeStateCode())
		totals.add(breakup)
		details = append(details, SalesInvoiceDetail{
			ProductId:         d.ProductId,
			BatchId:           d.BatchId,
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

	seqNo, number, err := NextDocumentNumber(tx, SeriesSalesInvoice, fy.Code)
	if err != nil {
		return nil, err
	}

	invoice := &SalesInvoice{
		DocumentHeader: DocumentHeader{
			PartyId:        party.ID,
			DocumentDate:   input.InvoiceDate,
			SequenceNo:     seqNo,
			DocumentNumber: number,
			CurrentStatus:  DocumentStatusIssued,
		},
		ReferenceNumber:    input.ReferenceNumber,
		VehicleNumber:      input.VehicleNumber,
		Notes:              input.Notes,
		InvoiceDueDate:     calculateDueDate(input.InvoiceDate, party.PaymentTermDays),
		InvoiceSubtotal:    totals.Subtotal,
		TotalCentralTax:    totals.CentralTax,
		TotalStateTax:      totals.StateTax,
		TotalIntegratedTax: totals.IntegratedTax,
		InvoiceTotalAmount: totals.GrandTotal,
		RemainingBalance:   totals.GrandTotal,
		Details:            details,
	}
	if err := tx.Create(invoice).Error; err != nil {
		return nil, err
	}

	// Stock moves after the row exists so movements can reference it.
	for _, d := range invoice.Details {
		err := DebitStock(tx, d.BatchId, d.Qty, InventoryTxnTypeSale, DocumentKindSalesInvoice, invoice.ID, "")
		if err != nil {
			return nil, err
		}
	}

	err = PostLedger(tx, party.ID, input.InvoiceDate, LedgerEntryTypeInvoice,
		invoice.InvoiceTotalAmount, decimal.Zero, DocumentKindSalesInvoice, invoice.ID,
		"invoice "+number)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func CreateSalesInvoice(ctx context.Context, input *NewSalesInvoice) (*SalesInvoice, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	party, err := fetchActiveParty(ctx, input.PartyId, PartyKindDealer)
	if err != nil {
		return nil, err
	}

	var invoice *SalesInvoice
	err = runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		invoice, err = buildSalesInvoice(tx, party, input)
		if err != nil {
			return nil, err
		}
		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "sales_invoices",
			RecordId:    invoice.ID,
			After:       invoice,
			Description: "created sales invoice " + invoice.DocumentNumber,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func GetSalesInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	return utils.FetchModel[SalesInvoice](ctx, id, "Details", "Party")
}

func (inv *SalesInvoice) documentKind() DocumentKind { return DocumentKindSalesInvoice }

func (inv *SalesInvoice) guardVoid() error {
	if inv.AmountPaid.IsPositive() {
		return errors.New("invoice has payments applied; void the payments first")
	}
	return nil
}

// reverse puts the sold quantities back and posts the compensating credit.
func (inv *SalesInvoice) reverse(tx *gorm.DB) error {
	for _, d := range inv.Details {
		err := CreditStock(tx, d.BatchId, d.Qty, InventoryTxnTypeReversal,
			DocumentKindSalesInvoice, inv.ID, "void "+inv.DocumentNumber)
		if err != nil {
			return err
		}
	}
	return PostLedger(tx, inv.PartyId, utils.TruncateToDate(time.Now()), LedgerEntryTypeReversal,
		decimal.Zero, inv.InvoiceTotalAmount, DocumentKindSalesInvoice, inv.ID,
		"void "+inv.DocumentNumber)
}

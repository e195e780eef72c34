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

// SalesOrder is a dealer's booking before dispatch. It reserves nothing and
// posts nothing; stock and ledger move only when it is converted into an
// invoice.
type SalesOrder struct {
	DocumentHeader   `gorm:"embedded"`
	ReferenceNumber  string             `gorm:"size:100;default:null" json:"reference_number"`
	Notes            string             `gorm:"type:text;default:null" json:"notes"`
	OrderSubtotal    decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_subtotal"`
	OrderTotalAmount decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_total_amount"`
	SalesInvoiceId   int                `gorm:"default:null" json:"sales_invoice_id"`
	Details          []SalesOrderDetail `gorm:"foreignKey:SalesOrderId" json:"details"`
}

type SalesOrderDetail struct {
	ID           int             `gorm:"primary_key" json:"id"`
	SalesOrderId int             `gorm:"index;not null" json:"sales_order_id"`
	ProductId    int             `gorm:"not null" json:"product_id"`
	ProductName  string          `gorm:"size:255;not null" json:"product_name"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Rate         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rate"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	DetailAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_amount"`
}

type NewSalesOrder struct {
	PartyId         int                   `json:"party_id" binding:"required"`
	OrderDate       time.Time             `json:"order_date" binding:"required"`
	ReferenceNumber string                `json:"reference_number"`
	Notes           string                `json:"notes"`
	Details         []NewSalesOrderDetail `json:"details" binding:"required,dive"`
}

type NewSalesOrderDetail struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	Rate      decimal.Decimal `json:"rate" binding:"required"`
}

func CreateSalesOrder(ctx context.Context, input *NewSalesOrder) (*SalesOrder, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	party, err := fetchActiveParty(ctx, input.PartyId, PartyKindDealer)
	if err != nil {
		return nil, err
	}

	var order *SalesOrder
	err = runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		fy, err := financialYearForDate(tx, input.OrderDate)
		if err != nil {
			return nil, err
		}

		var totals lineTotals
		details := make([]SalesOrderDetail, 0, len(input.Details))
		for _, d := range input.Details {
			if err := validateLineAmounts(d.Qty, d.Rate); err != nil {
				return nil, err
			}
			product, err := utils.FetchModel[Product](tx.Statement.Context, d.ProductId)
			if err != nil {
				return nil, fmt.Errorf("product %d: %w", d.ProductId, err)
			}
			taxable := d.Qty.Mul(d.Rate).Round(2)
			breakup := CalculateGST(taxable, product.GstRate, party.StateCode, config.HomeStateCode())
			totals.add(breakup)
			details = append(details, SalesOrderDetail{
				ProductId:    d.ProductId,
				ProductName:  product.Name,
				Qty:          d.Qty,
				Rate:         d.Rate,
				TaxRate:      product.GstRate,
				DetailAmount: breakup.TotalWithTax,
			})
		}

		seqNo, number, err := NextDocumentNumber(tx, SeriesSalesOrder, fy.Code)
		if err != nil {
			return nil, err
		}

		order = &SalesOrder{
			DocumentHeader: DocumentHeader{
				PartyId:        party.ID,
				DocumentDate:   input.OrderDate,
				SequenceNo:     seqNo,
				DocumentNumber: number,
				CurrentStatus:  DocumentStatusOpen,
			},
			ReferenceNumber:  input.ReferenceNumber,
			Notes:            input.Notes,
			OrderSubtotal:    totals.Subtotal,
			OrderTotalAmount: totals.GrandTotal,
			Details:          details,
		}
		if err := tx.Create(order).Error; err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "sales_orders",
			RecordId:    order.ID,
			After:       order,
			Description: "created sales order " + number,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// BatchAssignment maps an order line to the batch it will ship from.
type BatchAssignment struct {
	OrderDetailId int `json:"order_detail_id" binding:"required"`
	BatchId       int `json:"batch_id" binding:"required"`
}

type SalesOrderConversion struct {
	InvoiceDate time.Time         `json:"invoice_date" binding:"required"`
	Batches     []BatchAssignment `json:"batches" binding:"required,dive"`
}

// ConvertSalesOrderToInvoice issues a sales invoice from an open order's
// lines and marks the order Invoiced, in one transaction. Each order line
// must be assigned a batch to ship from.
func ConvertSalesOrderToInvoice(ctx context.Context, orderId int, input *SalesOrderConversion) (*SalesInvoice, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	batchByDetail := make(map[int]int, len(input.Batches))
	for _, a := range input.Batches {
		batchByDetail[a.OrderDetailId] = a.BatchId
	}

	var invoice *SalesInvoice
	err := runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		order, err := utils.FetchModelForUpdate[SalesOrder](tx, orderId, "Details")
		if err != nil {
			return nil, err
		}
		if order.CurrentStatus == DocumentStatusVoid {
			return nil, errors.New("sales order is void")
		}
		if order.CurrentStatus == DocumentStatusInvoiced {
			return nil, errors.New("sales order is already invoiced")
		}

		invoiceInput := &NewSalesInvoice{
			PartyId:     order.PartyId,
			InvoiceDate: input.InvoiceDate,
			Notes:       order.Notes,
			Details:     make([]NewSalesInvoiceDetail, 0, len(order.Details)),
		}
		for _, d := range order.Details {
			batchId, ok := batchByDetail[d.ID]
			if !ok {
				return nil, fmt.Errorf("order detail %d has no batch assignment", d.ID)
			}
			invoiceInput.Details = append(invoiceInput.Details, NewSalesInvoiceDetail{
				ProductId: d.ProductId,
				BatchId:   batchId,
				Qty:       d.Qty,
				Rate:      d.Rate,
			})
		}

		party, err := fetchActiveParty(tx.Statement.Context, order.PartyId, PartyKindDealer)
		if err != nil {
			return nil, err
		}
		invoice, err = buildSalesInvoice(tx, party, invoiceInput)
		if err != nil {
			return nil, err
		}
		invoice.SalesOrderId = order.ID
		if err := tx.Model(invoice).Update("sales_order_id", order.ID).Error; err != nil {
			return nil, err
		}
		if err := createAuditRecord(tx, ctx, &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "sales_invoices",
			RecordId:    invoice.ID,
			After:       invoice,
			Description: "created sales invoice " + invoice.DocumentNumber + " from order " + order.DocumentNumber,
		}); err != nil {
			return nil, err
		}

		before := *order
		err = tx.Model(order).Updates(map[string]interface{}{
			"current_status":   DocumentStatusInvoiced,
			"sales_invoice_id": invoice.ID,
		}).Error
		if err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionUpdate,
			TableName:   "sales_orders",
			RecordId:    order.ID,
			Before:      before,
			After:       order,
			Description: "order " + order.DocumentNumber + " invoiced as " + invoice.DocumentNumber,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	return utils.FetchModel[SalesOrder](ctx, id, "Details", "Party")
}

func (o *SalesOrder) documentKind() DocumentKind { return DocumentKindSalesOrder }

func (o *SalesOrder) guardVoid() error {
	if o.CurrentStatus == DocumentStatusInvoiced {
		return errors.New("cannot void an invoiced sales order; void the invoice first")
	}
	return nil
}

// An open order posted nothing, so there is nothing to reverse.
func (o *SalesOrder) reverse(tx *gorm.DB) error { return nil }

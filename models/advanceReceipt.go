package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// AdvanceReceipt is money collected from a dealer before any invoice
// exists. It credits the dealer's ledger immediately; whatever open
// invoices exist absorb it FIFO, and the remainder waits on the receipt
// until AllocateAdvance applies it later.
type AdvanceReceipt struct {
	DocumentHeader  `gorm:"embedded"`
	Mode            string          `gorm:"size:20;not null" json:"mode"`
	ReferenceNumber string          `gorm:"size:100;default:null" json:"reference_number"`
	Notes           string          `gorm:"type:text;default:null" json:"notes"`
	GrossAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"gross_amount"`
	AdjustedAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"adjusted_amount"`
	BalanceAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_amount"`
}

type NewAdvanceReceipt struct {
	PartyId         int             `json:"party_id" binding:"required"`
	ReceiptDate     time.Time       `json:"receipt_date" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Mode            string          `json:"mode" binding:"required"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
}

func CreateAdvanceReceipt(ctx context.Context, input *NewAdvanceReceipt) (*AdvanceReceipt, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("advance amount must be positive")
	}
	party, err := fetchActiveParty(ctx, input.PartyId, PartyKindDealer)
	if err != nil {
		return nil, err
	}

	var receipt *AdvanceReceipt
	err = runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		fy, err := financialYearForDate(tx, input.ReceiptDate)
		if err != nil {
			return nil, err
		}
		seqNo, number, err := NextDocumentNumber(tx, SeriesAdvanceReceipt, fy.Code)
		if err != nil {
			return nil, err
		}

		receipt = &AdvanceReceipt{
			DocumentHeader: DocumentHeader{
				PartyId:        party.ID,
				DocumentDate:   input.ReceiptDate,
				SequenceNo:     seqNo,
				DocumentNumber: number,
				CurrentStatus:  DocumentStatusOpen,
			},
			Mode:            input.Mode,
			ReferenceNumber: input.ReferenceNumber,
			Notes:           input.Notes,
			GrossAmount:     input.Amount,
			BalanceAmount:   input.Amount,
		}
		if err := tx.Create(receipt).Error; err != nil {
			return nil, err
		}

		err = PostLedger(tx, party.ID, input.ReceiptDate, LedgerEntryTypeAdvanceReceipt,
			decimal.Zero, input.Amount, DocumentKindAdvanceReceipt, receipt.ID,
			"advance receipt "+number)
		if err != nil {
			return nil, err
		}

		applied, err := applyAllocationFIFO(tx, DocumentKindAdvanceReceipt, receipt.ID, party, input.Amount)
		if err != nil {
			return nil, err
		}
		if err := receipt.recordAdjustment(tx, applied); err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "advance_receipts",
			RecordId:    receipt.ID,
			After:       receipt,
			Description: "created advance receipt " + number,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// AllocateAdvance applies an open advance's remaining balance against the
// dealer's currently open invoices. Called after new invoices are issued
// while an unadjusted advance is waiting.
func AllocateAdvance(ctx context.Context, receiptId int) (*AdvanceReceipt, error) {
	var receipt *AdvanceReceipt
	err := runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		var err error
		receipt, err = utils.FetchModelForUpdate[AdvanceReceipt](tx, receiptId)
		if err != nil {
			return nil, err
		}
		if receipt.CurrentStatus == DocumentStatusVoid {
			return nil, errors.New("advance receipt is void")
		}
		if !receipt.BalanceAmount.IsPositive() {
			return nil, errors.New("advance receipt has no balance to allocate")
		}
		party, err := fetchActiveParty(tx.Statement.Context, receipt.PartyId, PartyKindDealer)
		if err != nil {
			return nil, err
		}

		before := *receipt
		applied, err := applyAllocationFIFO(tx, DocumentKindAdvanceReceipt, receipt.ID, party, receipt.BalanceAmount)
		if err != nil {
			return nil, err
		}
		if err := receipt.recordAdjustment(tx, applied); err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionUpdate,
			TableName:   "advance_receipts",
			RecordId:    receipt.ID,
			Before:      before,
			After:       receipt,
			Description: "allocated advance receipt " + receipt.DocumentNumber,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// recordAdjustment moves applied amount from balance to adjusted and flips
// the status once nothing is left.
func (r *AdvanceReceipt) recordAdjustment(tx *gorm.DB, applied decimal.Decimal) error {
	if applied.IsZero() {
		return nil
	}
	r.AdjustedAmount = r.AdjustedAmount.Add(applied)
	r.BalanceAmount = r.GrossAmount.Sub(r.AdjustedAmount)
	if r.BalanceAmount.IsZero() {
		r.CurrentStatus = DocumentStatusAdjusted
	}
	return tx.Model(r).Updates(map[string]interface{}{
		"adjusted_amount": r.AdjustedAmount,
		"balance_amount":  r.BalanceAmount,
		"current_status":  r.CurrentStatus,
	}).Error
}

func GetAdvanceReceipt(ctx context.Context, id int) (*AdvanceReceipt, error) {
	return utils.FetchModel[AdvanceReceipt](ctx, id, "Party")
}

func (r *AdvanceReceipt) documentKind() DocumentKind { return DocumentKindAdvanceReceipt }

func (r *AdvanceReceipt) guardVoid() error { return nil }

func (r *AdvanceReceipt) reverse(tx *gorm.DB) error {
	if err := unwindAllocations(tx, DocumentKindAdvanceReceipt, r.ID); err != nil {
		return err
	}
	err := PostLedger(tx, r.PartyId, utils.TruncateToDate(time.Now()), LedgerEntryTypeReversal,
		r.GrossAmount, decimal.Zero, DocumentKindAdvanceReceipt, r.ID,
		"void "+r.DocumentNumber)
	if err != nil {
		return err
	}
	return tx.Model(r).Updates(map[string]interface{}{
		"adjusted_amount": decimal.Zero,
		"balance_amount":  decimal.Zero,
	}).Error
}

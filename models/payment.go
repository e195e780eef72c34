package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// Payment is money received from a dealer or paid out to a supplier.
// Creating one posts the ledger entry and immediately allocates the amount
// FIFO against the party's open invoices, all in one transaction. The
// unapplied remainder stays on the payment as BalanceAmount.
type Payment struct {
	DocumentHeader  `gorm:"embedded"`
	Mode            string          `gorm:"size:20;not null" json:"mode"`
	ReferenceNumber string          `gorm:"size:100;default:null" json:"reference_number"`
	Notes           string          `gorm:"type:text;default:null" json:"notes"`
	GrossAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"gross_amount"`
	AdjustedAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"adjusted_amount"`
	BalanceAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_amount"`
}

type NewPayment struct {
	PartyId         int             `json:"party_id" binding:"required"`
	PaymentDate     time.Time       `json:"payment_date" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Mode            string          `json:"mode" binding:"required"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
}

func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("payment amount must be positive")
	}
	party, err := fetchParty(ctx, input.PartyId)
	if err != nil {
		return nil, err
	}

	var payment *Payment
	err = runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		fy, err := financialYearForDate(tx, input.PaymentDate)
		if err != nil {
			return nil, err
		}
		seqNo, number, err := NextDocumentNumber(tx, SeriesPayment, fy.Code)
		if err != nil {
			return nil, err
		}

		payment = &Payment{
			DocumentHeader: DocumentHeader{
				PartyId:        party.ID,
				DocumentDate:   input.PaymentDate,
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
		if err := tx.Create(payment).Error; err != nil {
			return nil, err
		}

		// Dealer money in reduces what the dealer owes; supplier money out
		// reduces what the company owes.
		debit, credit := decimal.Zero, input.Amount
		if party.Kind == PartyKindSupplier {
			debit, credit = input.Amount, decimal.Zero
		}
		err = PostLedger(tx, party.ID, input.PaymentDate, LedgerEntryTypePayment,
			debit, credit, DocumentKindPayment, payment.ID, "payment "+number)
		if err != nil {
			return nil, err
		}

		applied, err := applyAllocationFIFO(tx, DocumentKindPayment, payment.ID, party, input.Amount)
		if err != nil {
			return nil, err
		}
		payment.AdjustedAmount = applied
		payment.BalanceAmount = input.Amount.Sub(applied)
		if payment.BalanceAmount.IsZero() {
			payment.CurrentStatus = DocumentStatusAdjusted
		}
		err = tx.Model(payment).Updates(map[string]interface{}{
			"adjusted_amount": payment.AdjustedAmount,
			"balance_amount":  payment.BalanceAmount,
			"current_status":  payment.CurrentStatus,
		}).Error
		if err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionCreate,
			TableName:   "payments",
			RecordId:    payment.ID,
			After:       payment,
			Description: "created payment " + number,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	return utils.FetchModel[Payment](ctx, id, "Party")
}

func (p *Payment) documentKind() DocumentKind { return DocumentKindPayment }

func (p *Payment) guardVoid() error { return nil }

// reverse reopens every invoice this payment settled, then posts the
// compensating ledger entry with debit and credit swapped.
func (p *Payment) reverse(tx *gorm.DB) error {
	if err := unwindAllocations(tx, DocumentKindPayment, p.ID); err != nil {
		return err
	}
	var party Party
	if err := tx.First(&party, p.PartyId).Error; err != nil {
		return err
	}
	debit, credit := p.GrossAmount, decimal.Zero
	if party.Kind == PartyKindSupplier {
		debit, credit = decimal.Zero, p.GrossAmount
	}
	if err := PostLedger(tx, p.PartyId, utils.TruncateToDate(time.Now()), LedgerEntryTypeReversal,
		debit, credit, DocumentKindPayment, p.ID, "void "+p.DocumentNumber); err != nil {
		return err
	}
	return tx.Model(p).Updates(map[string]interface{}{
		"adjusted_amount": decimal.Zero,
		"balance_amount":  decimal.Zero,
	}).Error
}

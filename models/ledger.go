package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/distro_backend/config"
)

// LedgerEntry is one append-only debit or credit posting against a party.
//
// Sign convention: balance = sum(debit) - sum(credit). For a dealer a
// positive balance is money the dealer owes the company; for a supplier a
// positive credit-heavy (negative) balance is money the company owes the
// supplier. Entries are never edited in place; a void posts a compensating
// entry of LedgerEntryTypeReversal so a voided document nets to exactly
// zero.
type LedgerEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	PartyId       int             `gorm:"index;not null" json:"party_id"`
	EntryDate     time.Time       `gorm:"not null;index" json:"entry_date"`
	EntryType     LedgerEntryType `gorm:"size:30;not null" json:"entry_type"`
	Debit         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
	ReferenceKind DocumentKind    `gorm:"size:30;not null;index:idx_ledger_ref" json:"reference_kind"`
	ReferenceId   int             `gorm:"not null;index:idx_ledger_ref" json:"reference_id"`
	Narration     string          `gorm:"size:255;default:null" json:"narration"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// PostLedger appends one entry. Amount validation is the caller's job; at
// most one of debit/credit may be non-zero.
func PostLedger(tx *gorm.DB, partyId int, date time.Time, entryType LedgerEntryType, debit, credit decimal.Decimal, refKind DocumentKind, refId int, narration string) error {
	if debit.IsNegative() || credit.IsNegative() {
		return errors.New("ledger amounts cannot be negative")
	}
	if debit.IsPositive() && credit.IsPositive() {
		return errors.New("ledger entry cannot be both debit and credit")
	}
	entry := LedgerEntry{
		PartyId:       partyId,
		EntryDate:     date,
		EntryType:     entryType,
		Debit:         debit,
		Credit:        credit,
		ReferenceKind: refKind,
		ReferenceId:   refId,
		Narration:     narration,
	}
	return tx.Create(&entry).Error
}

// PartyBalance returns sum(debit) - sum(credit) up to and including asOf.
// Compensating reversal entries net voided documents out, so no filtering
// is needed.
func PartyBalance(ctx context.Context, partyId int, asOf time.Time) (decimal.Decimal, error) {
	db := config.GetDB()
	var total decimal.NullDecimal
	err := db.WithContext(ctx).Model(&LedgerEntry{}).
		Where("party_id = ? AND entry_date <= ?", partyId, asOf).
		Select("SUM(debit) - SUM(credit)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

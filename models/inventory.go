package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// InventoryTransaction is one append-only quantity movement against a batch.
// A batch's true quantity is sum(qty_in) - sum(qty_out); ProductBatch holds
// the materialized cache, updated in the same statement set as the row.
type InventoryTransaction struct {
	ID            int              `gorm:"primary_key" json:"id"`
	BatchId       int              `gorm:"index;not null" json:"batch_id"`
	QtyIn         decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"qty_in"`
	QtyOut        decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"qty_out"`
	TxnType       InventoryTxnType `gorm:"size:30;not null" json:"txn_type"`
	ReferenceKind DocumentKind     `gorm:"size:30;not null;index:idx_inv_txn_ref" json:"reference_kind"`
	ReferenceId   int              `gorm:"not null;index:idx_inv_txn_ref" json:"reference_id"`
	Reason        string           `gorm:"size:255;default:null" json:"reason"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// DebitStock removes qty from a batch. The batch row is locked for the
// duration of the enclosing transaction; the movement fails with
// ErrInsufficientStock before any row is written if the balance would go
// negative.
func DebitStock(tx *gorm.DB, batchId int, qty decimal.Decimal, txnType InventoryTxnType, refKind DocumentKind, refId int, reason string) error {
	if !qty.IsPositive() {
		return errors.New("stock debit qty must be positive")
	}

	var batch ProductBatch
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&batch, batchId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("batch not found")
		}
		return err
	}
	if batch.QuantityOnHand.LessThan(qty) {
		return fmt.Errorf("%w %s (available=%s, requested=%s)",
			utils.ErrInsufficientStock, batch.BatchNumber, batch.QuantityOnHand.String(), qty.String())
	}

	txn := InventoryTransaction{
		BatchId:       batchId,
		QtyOut:        qty,
		TxnType:       txnType,
		ReferenceKind: refKind,
		ReferenceId:   refId,
		Reason:        reason,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return err
	}
	return tx.Model(&ProductBatch{}).Where("id = ?", batchId).
		Update("quantity_on_hand", gorm.Expr("quantity_on_hand - ?", qty)).Error
}

// CreditStock adds qty to a batch. Always succeeds for a valid batch.
func CreditStock(tx *gorm.DB, batchId int, qty decimal.Decimal, txnType InventoryTxnType, refKind DocumentKind, refId int, reason string) error {
	if !qty.IsPositive() {
		return errors.New("stock credit qty must be positive")
	}

	var batch ProductBatch
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&batch, batchId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("batch not found")
		}
		return err
	}

	txn := InventoryTransaction{
		BatchId:       batchId,
		QtyIn:         qty,
		TxnType:       txnType,
		ReferenceKind: refKind,
		ReferenceId:   refId,
		Reason:        reason,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return err
	}
	return tx.Model(&ProductBatch{}).Where("id = ?", batchId).
		Update("quantity_on_hand", gorm.Expr("quantity_on_hand + ?", qty)).Error
}

// BatchStock recomputes a batch's quantity from its transactions. Reports
// use the cache; this is the ledger-of-record check.
func BatchStock(ctx context.Context, batchId int) (decimal.Decimal, error) {
	db := config.GetDB()
	var total decimal.NullDecimal
	err := db.WithContext(ctx).Model(&InventoryTransaction{}).
		Where("batch_id = ?", batchId).
		Select("SUM(qty_in) - SUM(qty_out)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

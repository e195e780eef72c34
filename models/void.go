package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// VoidDocument is the single entry point for reversing any document kind.
// It flips the status to Void and writes the compensating ledger and
// inventory rows in one transaction, so after a successful void the
// document's net effect on both ledgers is exactly zero.
//
// A second void of the same document fails with ErrAlreadyVoid and changes
// nothing. A per-document distributed lock (when redis is configured)
// serializes void against concurrent allocation on the same document; the
// row locks taken inside the transaction are the actual correctness
// barrier, the distributed lock just fails fast.
func VoidDocument(ctx context.Context, kind DocumentKind, id int, reason string) error {
	if reason == "" {
		return errors.New("void reason is required")
	}

	if locker := config.GetRedisLock(); locker != nil {
		key := fmt.Sprintf("void:%s:%d", kind, id)
		lock, err := locker.Obtain(ctx, key, 30*time.Second, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return errors.New("document is being modified by another request")
			}
			return err
		}
		defer lock.Release(ctx)
	}

	return runAudited(ctx, func(tx *gorm.DB) (*auditInfo, error) {
		doc, err := fetchVoidableForUpdate(tx, kind, id)
		if err != nil {
			return nil, err
		}

		h := doc.header()
		if h.CurrentStatus == DocumentStatusVoid {
			return nil, utils.ErrAlreadyVoid
		}
		if err := doc.guardVoid(); err != nil {
			return nil, err
		}

		before := cloneHeader(h)
		err = tx.Model(doc).Updates(map[string]interface{}{
			"current_status": DocumentStatusVoid,
			"void_reason":    reason,
		}).Error
		if err != nil {
			return nil, err
		}

		if err := doc.reverse(tx); err != nil {
			return nil, err
		}

		return &auditInfo{
			Action:      AuditActionVoid,
			TableName:   AuditTableForKind(kind),
			RecordId:    h.ID,
			Before:      before,
			After:       doc,
			Description: "voided " + h.DocumentNumber + ": " + reason,
		}, nil
	})
}

// fetchVoidableForUpdate loads the document with its lines under a row
// lock, dispatching on kind.
func fetchVoidableForUpdate(tx *gorm.DB, kind DocumentKind, id int) (voidable, error) {
	switch kind {
	case DocumentKindSalesOrder:
		return utils.FetchModelForUpdate[SalesOrder](tx, id, "Details")
	case DocumentKindSalesInvoice:
		return utils.FetchModelForUpdate[SalesInvoice](tx, id, "Details")
	case DocumentKindPurchaseInvoice:
		return utils.FetchModelForUpdate[PurchaseInvoice](tx, id, "Details")
	case DocumentKindCreditNote:
		return utils.FetchModelForUpdate[CreditNote](tx, id, "Details")
	case DocumentKindDebitNote:
		return utils.FetchModelForUpdate[DebitNote](tx, id, "Details")
	case DocumentKindPayment:
		return utils.FetchModelForUpdate[Payment](tx, id)
	case DocumentKindAdvanceReceipt:
		return utils.FetchModelForUpdate[AdvanceReceipt](tx, id)
	default:
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
}

// AuditTableForKind maps a document kind to the table name its audit rows
// are filed under.
func AuditTableForKind(kind DocumentKind) string {
	switch kind {
	case DocumentKindSalesOrder:
		return "sales_orders"
	case DocumentKindSalesInvoice:
		return "sales_invoices"
	case DocumentKindPurchaseInvoice:
		return "purchase_invoices"
	case DocumentKindCreditNote:
		return "credit_notes"
	case DocumentKindDebitNote:
		return "debit_notes"
	case DocumentKindPayment:
		return "payments"
	case DocumentKindAdvanceReceipt:
		return "advance_receipts"
	default:
		return string(kind)
	}
}

func cloneHeader(h *DocumentHeader) DocumentHeader {
	return *h
}

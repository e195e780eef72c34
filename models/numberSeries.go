package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSeries is the per-(series, financial year) document number counter.
// The counter is only ever advanced under a row-level write lock inside the
// enclosing document transaction: concurrent allocations serialize on the
// row, and an aborted document creation rolls the counter back with it, so
// numbers stay gapless and never collide.
type NumberSeries struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Series     string    `gorm:"size:50;not null;uniqueIndex:idx_series_fy" json:"series"`
	FyCode     string    `gorm:"size:10;not null;uniqueIndex:idx_series_fy" json:"fy_code"`
	Prefix     string    `gorm:"size:10;not null" json:"prefix"`
	LastNumber int64     `gorm:"not null;default:0" json:"last_number"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Series keys and their default prefixes. A NumberSeries row overrides the
// prefix once created.
const (
	SeriesSalesOrder      = "sales-order"
	SeriesSalesInvoice    = "invoice"
	SeriesPurchaseInvoice = "purchase-invoice"
	SeriesCreditNote      = "credit-note"
	SeriesDebitNote       = "debit-note"
	SeriesPayment         = "payment"
	SeriesAdvanceReceipt  = "advance-receipt"
)

var seriesDefaultPrefixes = map[string]string{
	SeriesSalesOrder:      "ORD",
	SeriesSalesInvoice:    "INV",
	SeriesPurchaseInvoice: "PIN",
	SeriesCreditNote:      "CRN",
	SeriesDebitNote:       "DBN",
	SeriesPayment:         "PAY",
	SeriesAdvanceReceipt:  "ADV",
}

// FormatDocumentNumber renders PREFIX/FY/NNN with at least 3 digits.
func FormatDocumentNumber(prefix string, fyCode string, n int64) string {
	return fmt.Sprintf("%s/%s/%03d", prefix, fyCode, n)
}

// NextDocumentNumber atomically advances the counter for (series, fyCode)
// and returns the sequence number plus the formatted document number. Must
// be called inside an open transaction.
func NextDocumentNumber(tx *gorm.DB, series string, fyCode string) (int64, string, error) {
	prefix, ok := seriesDefaultPrefixes[series]
	if !ok {
		return 0, "", errors.New("unknown number series: " + series)
	}

	var row NumberSeries
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("series = ? AND fy_code = ?", series, fyCode).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// First allocation of the series for this FY. The unique index makes
		// a concurrent double-create fail; the whole document creation fails
		// with it, which is the contract (retry the request, not a sub-step).
		row = NumberSeries{Series: series, FyCode: fyCode, Prefix: prefix}
		if err := tx.Create(&row).Error; err != nil {
			return 0, "", err
		}
		// Re-read under lock so the increment below is serialized.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, row.ID).Error; err != nil {
			return 0, "", err
		}
	} else if err != nil {
		return 0, "", err
	}

	row.LastNumber++
	if err := tx.Model(&row).Update("last_number", row.LastNumber).Error; err != nil {
		return 0, "", err
	}
	return row.LastNumber, FormatDocumentNumber(row.Prefix, fyCode, row.LastNumber), nil
}

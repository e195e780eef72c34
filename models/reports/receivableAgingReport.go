package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// ReceivableAgingRow buckets one dealer's open invoice balances by days
// overdue relative to the invoice due date. Current means not yet due.
type ReceivableAgingRow struct {
	PartyId      int             `json:"party_id"`
	PartyName    string          `json:"party_name"`
	InvoiceCount int             `json:"invoice_count"`
	Total        decimal.Decimal `json:"total"`
	Current      decimal.Decimal `json:"current"`
	Days1to30    decimal.Decimal `json:"days_1_to_30"`
	Days31to60   decimal.Decimal `json:"days_31_to_60"`
	Days61to90   decimal.Decimal `json:"days_61_to_90"`
	Days91to120  decimal.Decimal `json:"days_91_to_120"`
	Days121to180 decimal.Decimal `json:"days_121_to_180"`
	Days181to360 decimal.Decimal `json:"days_181_to_360"`
	Days360plus  decimal.Decimal `json:"days_360_plus"`
}

func GetReceivableAgingReport(ctx context.Context, asOf time.Time) ([]*ReceivableAgingRow, error) {
	started := time.Now()
	defer logSlowReport(ctx, "receivable_aging", started, nil)

	cacheKey := fmt.Sprintf("report:receivable_aging:%s", asOf.Format("2006-01-02"))
	var results []*ReceivableAgingRow
	if reportCacheEnabled() {
		if hit, err := cacheGet(cacheKey, &results); err == nil && hit {
			return results, nil
		}
	}

	sqlTemplate := `
WITH InvoiceAging AS (
    SELECT
        si.party_id,
        si.remaining_balance,
        CASE
            WHEN si.remaining_balance > 0 THEN DATEDIFF(@asOf, si.invoice_due_date)
            ELSE 0
        END AS days_overdue
    FROM
        sales_invoices si
    WHERE
        si.document_date <= @asOf
        AND si.current_status IN ('Issued', 'Partial Paid')
        AND si.remaining_balance > 0
)
SELECT
    InvoiceAging.party_id,
    parties.name AS party_name,
    COUNT(*) AS invoice_count,
    SUM(remaining_balance) AS total,
    SUM(CASE WHEN days_overdue <= 0 THEN remaining_balance ELSE 0 END) AS current,
    SUM(CASE WHEN days_overdue BETWEEN 1 AND 30 THEN remaining_balance ELSE 0 END) AS days1to30,
    SUM(CASE WHEN days_overdue BETWEEN 31 AND 60 THEN remaining_balance ELSE 0 END) AS days31to60,
    SUM(CASE WHEN days_overdue BETWEEN 61 AND 90 THEN remaining_balance ELSE 0 END) AS days61to90,
    SUM(CASE WHEN days_overdue BETWEEN 91 AND 120 THEN remaining_balance ELSE 0 END) AS days91to120,
    SUM(CASE WHEN days_overdue BETWEEN 121 AND 180 THEN remaining_balance ELSE 0 END) AS days121to180,
    SUM(CASE WHEN days_overdue BETWEEN 181 AND 360 THEN remaining_balance ELSE 0 END) AS days181to360,
    SUM(CASE WHEN days_overdue > 360 THEN remaining_balance ELSE 0 END) AS days360plus
FROM
    InvoiceAging
    LEFT JOIN parties ON parties.id = InvoiceAging.party_id
GROUP BY
    InvoiceAging.party_id
ORDER BY
    InvoiceAging.party_id;
`
	sql, err := utils.ExecTemplate(sqlTemplate, nil)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"asOf": asOf.Format("2006-01-02"),
	}).Scan(&results).Error; err != nil {
		return nil, err
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, results, reportCacheTTL())
	}
	return results, nil
}

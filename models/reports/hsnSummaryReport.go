package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/distro_backend/config"
)

// HsnSummaryRow aggregates the period's outward supplies by HSN code.
type HsnSummaryRow struct {
	HsnCode       string          `json:"hsn_code"`
	ProductNames  string          `json:"product_names"`
	TotalQty      decimal.Decimal `json:"total_qty"`
	TaxableValue  decimal.Decimal `json:"taxable_value"`
	CentralTax    decimal.Decimal `json:"central_tax"`
	StateTax      decimal.Decimal `json:"state_tax"`
	IntegratedTax decimal.Decimal `json:"integrated_tax"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

func GetHsnSummaryReport(ctx context.Context, from, to time.Time) ([]*HsnSummaryRow, error) {
	started := time.Now()
	defer logSlowReport(ctx, "hsn_summary", started, nil)

	cacheKey := fmt.Sprintf("report:hsn_summary:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var results []*HsnSummaryRow
	if reportCacheEnabled() {
		if hit, err := cacheGet(cacheKey, &results); err == nil && hit {
			return results, nil
		}
	}

	sql := `
SELECT
    d.hsn_code,
    GROUP_CONCAT(DISTINCT d.product_name ORDER BY d.product_name SEPARATOR ', ') AS product_names,
    SUM(d.qty) AS total_qty,
    SUM(d.taxable_amount) AS taxable_value,
    SUM(d.central_tax) AS central_tax,
    SUM(d.state_tax) AS state_tax,
    SUM(d.integrated_tax) AS integrated_tax,
    SUM(d.detail_total_amount) AS total_value
FROM
    sales_invoice_details d
    JOIN sales_invoices si ON si.id = d.sales_invoice_id
WHERE
    si.document_date BETWEEN @from AND @to
    AND si.current_status <> 'Void'
GROUP BY
    d.hsn_code
ORDER BY
    d.hsn_code;
`
	db := config.GetDB()
	err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	}).Scan(&results).Error
	if err != nil {
		return nil, err
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, results, reportCacheTTL())
	}
	return results, nil
}

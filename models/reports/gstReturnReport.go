package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/distro_backend/config"
)

// GSTReturnReport is the periodic outward-supply return: registered sales
// grouped tax ID, invoice and rate slab; unregistered sales grouped by
// destination state and rate; the note adjustments; and the net summary.
// All sections exclude void documents.
type GSTReturnReport struct {
	FromDate         string              `json:"from_date"`
	ToDate           string              `json:"to_date"`
	RegisteredSales  []*B2BRow           `json:"registered_sales"`
	UnregisteredSale []*B2CRow           `json:"unregistered_sales"`
	CreditDebitNotes []*NoteRow          `json:"credit_debit_notes"`
	HsnSummary       []*HsnSummaryRow    `json:"hsn_summary"`
	Summary          GSTReturnSummary    `json:"summary"`
}

// B2BRow is one (invoice, rate slab) line under a registered dealer's GSTIN.
type B2BRow struct {
	Gstin         string          `json:"gstin"`
	PartyName     string          `json:"party_name"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	InvoiceTotal  decimal.Decimal `json:"invoice_total"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxableValue  decimal.Decimal `json:"taxable_value"`
	CentralTax    decimal.Decimal `json:"central_tax"`
	StateTax      decimal.Decimal `json:"state_tax"`
	IntegratedTax decimal.Decimal `json:"integrated_tax"`
}

// B2CRow aggregates unregistered sales by destination state and rate slab.
type B2CRow struct {
	StateCode     string          `json:"state_code"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxableValue  decimal.Decimal `json:"taxable_value"`
	CentralTax    decimal.Decimal `json:"central_tax"`
	StateTax      decimal.Decimal `json:"state_tax"`
	IntegratedTax decimal.Decimal `json:"integrated_tax"`
}

// NoteRow is one credit or debit note line per rate slab.
type NoteRow struct {
	NoteKind      string          `json:"note_kind"`
	NoteNumber    string          `json:"note_number"`
	NoteDate      time.Time       `json:"note_date"`
	PartyName     string          `json:"party_name"`
	Gstin         string          `json:"gstin"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxableValue  decimal.Decimal `json:"taxable_value"`
	CentralTax    decimal.Decimal `json:"central_tax"`
	StateTax      decimal.Decimal `json:"state_tax"`
	IntegratedTax decimal.Decimal `json:"integrated_tax"`
}

// GSTReturnSummary nets the period: outward supplies less credit notes on
// the output side, purchases less debit notes as input credit, and payable
// per tax head clipped at zero (excess credit carries, it is never
// refunded through this report).
type GSTReturnSummary struct {
	OutwardTaxableTotal  decimal.Decimal `json:"outward_taxable_total"`
	IntraStateTaxable    decimal.Decimal `json:"intra_state_taxable"`
	InterStateTaxable    decimal.Decimal `json:"inter_state_taxable"`
	CreditNoteDeductions decimal.Decimal `json:"credit_note_deductions"`
	OutputCentralTax     decimal.Decimal `json:"output_central_tax"`
	OutputStateTax       decimal.Decimal `json:"output_state_tax"`
	OutputIntegratedTax  decimal.Decimal `json:"output_integrated_tax"`
	InputCentralTax      decimal.Decimal `json:"input_central_tax"`
	InputStateTax        decimal.Decimal `json:"input_state_tax"`
	InputIntegratedTax   decimal.Decimal `json:"input_integrated_tax"`
	PayableCentralTax    decimal.Decimal `json:"payable_central_tax"`
	PayableStateTax      decimal.Decimal `json:"payable_state_tax"`
	PayableIntegratedTax decimal.Decimal `json:"payable_integrated_tax"`
}

type taxTotalsRow struct {
	Taxable       decimal.Decimal `gorm:"column:taxable"`
	CentralTax    decimal.Decimal `gorm:"column:central_tax"`
	StateTax      decimal.Decimal `gorm:"column:state_tax"`
	IntegratedTax decimal.Decimal `gorm:"column:integrated_tax"`
}

func GetGSTReturnReport(ctx context.Context, from, to time.Time) (*GSTReturnReport, error) {
	started := time.Now()
	defer logSlowReport(ctx, "gst_return", started, map[string]any{"from": from, "to": to})

	cacheKey := fmt.Sprintf("report:gst_return:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached GSTReturnReport
	if reportCacheEnabled() {
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	db := config.GetDB()
	args := map[string]interface{}{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	}
	report := &GSTReturnReport{
		FromDate: from.Format("2006-01-02"),
		ToDate:   to.Format("2006-01-02"),
	}

	b2bSQL := `
SELECT
    parties.gstin,
    parties.name AS party_name,
    si.document_number AS invoice_number,
    si.document_date AS invoice_date,
    si.invoice_total_amount AS invoice_total,
    d.tax_rate,
    SUM(d.taxable_amount) AS taxable_value,
    SUM(d.central_tax) AS central_tax,
    SUM(d.state_tax) AS state_tax,
    SUM(d.integrated_tax) AS integrated_tax
FROM
    sales_invoice_details d
    JOIN sales_invoices si ON si.id = d.sales_invoice_id
    JOIN parties ON parties.id = si.party_id
WHERE
    si.document_date BETWEEN @from AND @to
    AND si.current_status <> 'Void'
    AND parties.gstin <> ''
GROUP BY
    parties.gstin, parties.name, si.id, si.document_number, si.document_date, si.invoice_total_amount, d.tax_rate
ORDER BY
    parties.gstin, si.sequence_no, d.tax_rate;
`
	if err := db.WithContext(ctx).Raw(b2bSQL, args).Scan(&report.RegisteredSales).Error; err != nil {
		return nil, err
	}

	b2cSQL := `
SELECT
    parties.state_code,
    d.tax_rate,
    SUM(d.taxable_amount) AS taxable_value,
    SUM(d.central_tax) AS central_tax,
    SUM(d.state_tax) AS state_tax,
    SUM(d.integrated_tax) AS integrated_tax
FROM
    sales_invoice_details d
    JOIN sales_invoices si ON si.id = d.sales_invoice_id
    JOIN parties ON parties.id = si.party_id
WHERE
    si.document_date BETWEEN @from AND @to
    AND si.current_status <> 'Void'
    AND (parties.gstin = '' OR parties.gstin IS NULL)
GROUP BY
    parties.state_code, d.tax_rate
ORDER BY
    parties.state_code, d.tax_rate;
`
	if err := db.WithContext(ctx).Raw(b2cSQL, args).Scan(&report.UnregisteredSale).Error; err != nil {
		return nil, err
	}

	notesSQL := `
SELECT
    'CreditNote' AS note_kind,
    cn.document_number AS note_number,
    cn.document_date AS note_date,
    parties.name AS party_name,
    parties.gstin,
    d.tax_rate,
    SUM(d.taxable_amount) AS taxable_value,
    SUM(d.central_tax) AS central_tax,
    SUM(d.state_tax) AS state_tax,
    SUM(d.integrated_tax) AS integrated_tax
FROM
    credit_note_details d
    JOIN credit_notes cn ON cn.id = d.credit_note_id
    JOIN parties ON parties.id = cn.party_id
WHERE
    cn.document_date BETWEEN @from AND @to
    AND cn.current_status <> 'Void'
    AND parties.gstin <> '' AND parties.gstin IS NOT NULL
GROUP BY
    cn.id, cn.document_number, cn.document_date, parties.name, parties.gstin, d.tax_rate
UNION ALL
SELECT
    'DebitNote' AS note_kind,
    dn.document_number AS note_number,
    dn.document_date AS note_date,
    parties.name AS party_name,
    parties.gstin,
    d.tax_rate,
    SUM(d.taxable_amount) AS taxable_value,
    SUM(d.central_tax) AS central_tax,
    SUM(d.state_tax) AS state_tax,
    SUM(d.integrated_tax) AS integrated_tax
FROM
    debit_note_details d
    JOIN debit_notes dn ON dn.id = d.debit_note_id
    JOIN parties ON parties.id = dn.party_id
WHERE
    dn.document_date BETWEEN @from AND @to
    AND dn.current_status <> 'Void'
    AND parties.gstin <> '' AND parties.gstin IS NOT NULL
GROUP BY
    dn.id, dn.document_number, dn.document_date, parties.name, parties.gstin, d.tax_rate
ORDER BY
    note_date, note_number;
`
	if err := db.WithContext(ctx).Raw(notesSQL, args).Scan(&report.CreditDebitNotes).Error; err != nil {
		return nil, err
	}

	hsn, err := GetHsnSummaryReport(ctx, from, to)
	if err != nil {
		return nil, err
	}
	report.HsnSummary = hsn

	summary, err := buildGSTReturnSummary(ctx, args)
	if err != nil {
		return nil, err
	}
	report.Summary = *summary

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, report, reportCacheTTL())
	}
	return report, nil
}

func buildGSTReturnSummary(ctx context.Context, args map[string]interface{}) (*GSTReturnSummary, error) {
	db := config.GetDB()

	scanTotals := func(sql string) (taxTotalsRow, error) {
		var row taxTotalsRow
		err := db.WithContext(ctx).Raw(sql, args).Scan(&row).Error
		return row, err
	}

	outward, err := scanTotals(`
SELECT
    COALESCE(SUM(d.taxable_amount), 0) AS taxable,
    COALESCE(SUM(d.central_tax), 0) AS central_tax,
    COALESCE(SUM(d.state_tax), 0) AS state_tax,
    COALESCE(SUM(d.integrated_tax), 0) AS integrated_tax
FROM sales_invoice_details d
JOIN sales_invoices si ON si.id = d.sales_invoice_id
WHERE si.document_date BETWEEN @from AND @to AND si.current_status <> 'Void';`)
	if err != nil {
		return nil, err
	}

	// Intra-state lines carry central+state tax, inter-state lines carry
	// integrated tax; the split falls out of which column is non-zero.
	var intra, inter struct {
		Taxable decimal.Decimal `gorm:"column:taxable"`
	}
	err = db.WithContext(ctx).Raw(`
SELECT COALESCE(SUM(d.taxable_amount), 0) AS taxable
FROM sales_invoice_details d
JOIN sales_invoices si ON si.id = d.sales_invoice_id
WHERE si.document_date BETWEEN @from AND @to AND si.current_status <> 'Void'
  AND d.integrated_tax = 0;`, args).Scan(&intra).Error
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Raw(`
SELECT COALESCE(SUM(d.taxable_amount), 0) AS taxable
FROM sales_invoice_details d
JOIN sales_invoices si ON si.id = d.sales_invoice_id
WHERE si.document_date BETWEEN @from AND @to AND si.current_status <> 'Void'
  AND d.integrated_tax <> 0;`, args).Scan(&inter).Error
	if err != nil {
		return nil, err
	}

	creditNotes, err := scanTotals(`
SELECT
    COALESCE(SUM(d.taxable_amount), 0) AS taxable,
    COALESCE(SUM(d.central_tax), 0) AS central_tax,
    COALESCE(SUM(d.state_tax), 0) AS state_tax,
    COALESCE(SUM(d.integrated_tax), 0) AS integrated_tax
FROM credit_note_details d
JOIN credit_notes cn ON cn.id = d.credit_note_id
WHERE cn.document_date BETWEEN @from AND @to AND cn.current_status <> 'Void';`)
	if err != nil {
		return nil, err
	}

	purchases, err := scanTotals(`
SELECT
    COALESCE(SUM(d.taxable_amount), 0) AS taxable,
    COALESCE(SUM(d.central_tax), 0) AS central_tax,
    COALESCE(SUM(d.state_tax), 0) AS state_tax,
    COALESCE(SUM(d.integrated_tax), 0) AS integrated_tax
FROM purchase_invoice_details d
JOIN purchase_invoices pi ON pi.id = d.purchase_invoice_id
WHERE pi.document_date BETWEEN @from AND @to AND pi.current_status <> 'Void';`)
	if err != nil {
		return nil, err
	}

	debitNotes, err := scanTotals(`
SELECT
    COALESCE(SUM(d.taxable_amount), 0) AS taxable,
    COALESCE(SUM(d.central_tax), 0) AS central_tax,
    COALESCE(SUM(d.state_tax), 0) AS state_tax,
    COALESCE(SUM(d.integrated_tax), 0) AS integrated_tax
FROM debit_note_details d
JOIN debit_notes dn ON dn.id = d.debit_note_id
WHERE dn.document_date BETWEEN @from AND @to AND dn.current_status <> 'Void';`)
	if err != nil {
		return nil, err
	}

	clipZero := func(d decimal.Decimal) decimal.Decimal {
		if d.IsNegative() {
			return decimal.Zero
		}
		return d
	}

	outputCentral := outward.CentralTax.Sub(creditNotes.CentralTax)
	outputState := outward.StateTax.Sub(creditNotes.StateTax)
	outputIntegrated := outward.IntegratedTax.Sub(creditNotes.IntegratedTax)
	inputCentral := purchases.CentralTax.Sub(debitNotes.CentralTax)
	inputState := purchases.StateTax.Sub(debitNotes.StateTax)
	inputIntegrated := purchases.IntegratedTax.Sub(debitNotes.IntegratedTax)

	return &GSTReturnSummary{
		OutwardTaxableTotal:  outward.Taxable,
		IntraStateTaxable:    intra.Taxable,
		InterStateTaxable:    inter.Taxable,
		CreditNoteDeductions: creditNotes.Taxable,
		OutputCentralTax:     outputCentral,
		OutputStateTax:       outputState,
		OutputIntegratedTax:  outputIntegrated,
		InputCentralTax:      inputCentral,
		InputStateTax:        inputState,
		InputIntegratedTax:   inputIntegrated,
		PayableCentralTax:    clipZero(outputCentral.Sub(inputCentral)),
		PayableStateTax:      clipZero(outputState.Sub(inputState)),
		PayableIntegratedTax: clipZero(outputIntegrated.Sub(inputIntegrated)),
	}, nil
}

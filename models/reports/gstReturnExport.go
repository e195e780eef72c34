package reports

import (
	"io"

	"bitbucket.org/mmdatafocus/distro_backend/utils"
)

// GSTReturnExportColumns is the flattened outward-supply layout the
// spreadsheet export uses: one row per registered-sale slab, then one per
// unregistered slab, then the notes.
var GSTReturnExportColumns = []utils.ColumnDescriptor{
	{Key: "section", Header: "Section"},
	{Key: "gstin", Header: "GSTIN"},
	{Key: "party_name", Header: "Party"},
	{Key: "document_number", Header: "Document No"},
	{Key: "document_date", Header: "Date"},
	{Key: "state_code", Header: "State"},
	{Key: "tax_rate", Header: "Rate %"},
	{Key: "taxable_value", Header: "Taxable Value"},
	{Key: "central_tax", Header: "Central Tax"},
	{Key: "state_tax", Header: "State Tax"},
	{Key: "integrated_tax", Header: "Integrated Tax"},
}

// ExportGSTReturn flattens a return into rows and hands them to the
// format-only exporter.
func ExportGSTReturn(report *GSTReturnReport, exporter utils.RowExporter, w io.Writer) error {
	rows := make([]map[string]any, 0, len(report.RegisteredSales)+len(report.UnregisteredSale)+len(report.CreditDebitNotes))

	for _, r := range report.RegisteredSales {
		rows = append(rows, map[string]any{
			"section":         "B2B",
			"gstin":           r.Gstin,
			"party_name":      r.PartyName,
			"document_number": r.InvoiceNumber,
			"document_date":   r.InvoiceDate.Format("2006-01-02"),
			"state_code":      "",
			"tax_rate":        r.TaxRate.String(),
			"taxable_value":   r.TaxableValue.StringFixed(2),
			"central_tax":     r.CentralTax.StringFixed(2),
			"state_tax":       r.StateTax.StringFixed(2),
			"integrated_tax":  r.IntegratedTax.StringFixed(2),
		})
	}
	for _, r := range report.UnregisteredSale {
		rows = append(rows, map[string]any{
			"section":         "B2C",
			"gstin":           "",
			"party_name":      "",
			"document_number": "",
			"document_date":   "",
			"state_code":      r.StateCode,
			"tax_rate":        r.TaxRate.String(),
			"taxable_value":   r.TaxableValue.StringFixed(2),
			"central_tax":     r.CentralTax.StringFixed(2),
			"state_tax":       r.StateTax.StringFixed(2),
			"integrated_tax":  r.IntegratedTax.StringFixed(2),
		})
	}
	for _, r := range report.CreditDebitNotes {
		rows = append(rows, map[string]any{
			"section":         r.NoteKind,
			"gstin":           r.Gstin,
			"party_name":      r.PartyName,
			"document_number": r.NoteNumber,
			"document_date":   r.NoteDate.Format("2006-01-02"),
			"state_code":      "",
			"tax_rate":        r.TaxRate.String(),
			"taxable_value":   r.TaxableValue.StringFixed(2),
			"central_tax":     r.CentralTax.StringFixed(2),
			"state_tax":       r.StateTax.StringFixed(2),
			"integrated_tax":  r.IntegratedTax.StringFixed(2),
		})
	}

	return exporter.Export(w, GSTReturnExportColumns, rows)
}

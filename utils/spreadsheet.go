package utils

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ColumnDescriptor describes one export column: which key of a row map to
// read and the header to print. The exporters below are format-only; callers
// own the row contents.
type ColumnDescriptor struct {
	Key    string
	Header string
}

// RowExporter is the outbound spreadsheet/CSV collaborator consumed by the
// report endpoints.
type RowExporter interface {
	Export(w io.Writer, columns []ColumnDescriptor, rows []map[string]any) error
}

type XLSXExporter struct {
	SheetName string
}

func (e XLSXExporter) sheet() string {
	if e.SheetName == "" {
		return "Sheet1"
	}
	return e.SheetName
}

func (e XLSXExporter) Export(w io.Writer, columns []ColumnDescriptor, rows []map[string]any) error {
	f := excelize.NewFile()
	sheet := e.sheet()
	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, col := range columns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, row[col.Key]); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

type CSVExporter struct{}

func (CSVExporter) Export(w io.Writer, columns []ColumnDescriptor, rows []map[string]any) error {
	cw := csv.NewWriter(w)
	headers := make([]string, 0, len(columns))
	for _, col := range columns {
		headers = append(headers, col.Header)
	}
	if err := cw.Write(headers); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = fmt.Sprint(row[col.Key])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

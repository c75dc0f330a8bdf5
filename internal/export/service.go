package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
)

const (
	invoicesSheet = "Invoices"
	itemsSheet    = "Items"
)

// Row is one written invoice as it appears in the summary workbook.
type Row struct {
	Source string
	Output string
	Method constants.Method
	Record invoice.Record
}

// Service renders batch summaries as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportInvoicesXLSX returns a workbook with one row per invoice on the
// "Invoices" sheet and one row per line item on the "Items" sheet.
func (s *Service) ExportInvoicesXLSX(rows []Row) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", invoicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(invoicesSheet)
	f.SetActiveSheet(activeIndex)

	writeRow(f, invoicesSheet, 1, []any{
		"Invoice Number",
		"Invoice Date",
		"Due Date",
		"Company",
		"GSTIN",
		"Customer",
		"Items",
		"Taxable Amount",
		"Total Amount",
		"Total Discount",
		"Method",
		"Source",
		"Output",
	})
	writeRow(f, itemsSheet, 1, []any{
		"Invoice Number", "Item #", "Item", "Rate", "Quantity", "Taxable Value", "Tax", "Total", "Source",
	})

	itemRow := 2
	for i, r := range rows {
		rec := r.Record
		writeRow(f, invoicesSheet, i+2, []any{
			invoice.Deref(rec.InvoiceNumber),
			invoice.Deref(rec.InvoiceDate),
			invoice.Deref(rec.DueDate),
			truncate(invoice.Deref(rec.Company), 140),
			invoice.Deref(rec.CompanyGSTIN),
			invoice.Deref(rec.CustomerName),
			len(rec.Items),
			amount(rec.TaxableAmount),
			amount(rec.TotalAmount),
			amount(rec.TotalDiscount),
			string(r.Method),
			filepath.Base(r.Source),
			r.Output,
		})
		for _, it := range rec.Items {
			writeRow(f, itemsSheet, itemRow, []any{
				invoice.Deref(rec.InvoiceNumber),
				it.ItemNumber,
				it.ItemName,
				it.RatePerItem,
				it.Quantity,
				it.TaxableValue,
				it.TaxAmount,
				it.TotalAmount,
				filepath.Base(r.Source),
			})
			itemRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(invoicesSheet, "A", "C", 14) // number, dates
	_ = f.SetColWidth(invoicesSheet, "D", "D", 36) // company
	_ = f.SetColWidth(invoicesSheet, "E", "F", 20)
	_ = f.SetColWidth(invoicesSheet, "H", "J", 14) // amounts
	_ = f.SetColWidth(invoicesSheet, "L", "M", 48) // paths
	_ = f.SetColWidth(itemsSheet, "C", "C", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile renders rows and stores the workbook at path.
func (s *Service) WriteFile(path string, rows []Row) error {
	b, err := s.ExportInvoicesXLSX(rows)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func amount(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"luma/internal"
)

// ExportRecordsToXLSX writes usage records to a workbook, one row per
// record, in the column order the sustainability report template
// expects.
func ExportRecordsToXLSX(records []internal.UsageRecord, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"supplier", "category", "scope", "invoice_number", "issue_date",
		"period_start", "period_end", "usage_value", "usage_unit",
		"amount_total", "currency", "emission_factor", "emission_factor_source",
		"co2e_kg", "confidence", "status",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, record := range records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		status := internal.StatusProcessed
		if record.NeedsReview {
			status = internal.StatusNeedsReview
		}

		set(1, derefString(record.Supplier))
		set(2, string(record.Category))
		set(3, derefInt(record.Scope))
		set(4, derefString(record.InvoiceNumber))
		set(5, formatDate(record.IssueDate))
		set(6, formatDate(record.PeriodStart))
		set(7, formatDate(record.PeriodEnd))
		set(8, derefFloat(record.UsageValue))
		set(9, derefString(record.UsageUnit))
		set(10, derefFloat(record.AmountTotal))
		set(11, record.Currency)
		set(12, derefFloat(record.EmissionFactor))
		set(13, derefString(record.EmissionFactorSource))
		set(14, derefFloat(record.CO2eKg))
		set(15, record.Confidence)
		set(16, string(status))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func formatDate(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format("2006-01-02")
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"luma/internal"
	"luma/internal/factors"
	"luma/internal/util"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	table, err := factors.NewTable(factors.Seed())
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(testConfig(), table)
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const electricityCSV = "Fecha;Proveedor;Categoría;Consumo (kWh);Importe Total\n" +
	"01/05/2025;Iberdrola;Electricidad;1.250,5;180,75\n" +
	"01/06/2025;Iberdrola;Electricidad;1.100,0;165,20\n" +
	"01/07/2025;Iberdrola;Electricidad;980,3;150,10\n"

func TestExtractCSVOneRecordPerRow(t *testing.T) {
	engine := testEngine(t)
	path := writeFile(t, "ledger.csv", electricityCSV)

	records, summary, err := engine.ExtractAll(path, "ES")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want one per data row", len(records))
	}
	if summary.Records != 3 || summary.Flagged != 0 {
		t.Errorf("summary = %+v", summary)
	}

	first := records[0]
	if first.Category != internal.CategoryElectricity {
		t.Errorf("category = %s", first.Category)
	}
	if first.UsageValue == nil || *first.UsageValue != 1250.5 {
		t.Errorf("usage_value = %v", first.UsageValue)
	}
	// May 2025 resolves the 0.231 vintage: 1250.5 x 0.231 = 288.87
	if first.CO2eKg == nil || *first.CO2eKg != 288.87 {
		t.Errorf("co2e = %v, want 288.87", first.CO2eKg)
	}
	if first.Scope == nil || *first.Scope != 2 {
		t.Errorf("scope = %v", first.Scope)
	}
	if first.Meta[internal.MetaRow] != 2 {
		t.Errorf("meta row = %v", first.Meta[internal.MetaRow])
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	engine := testEngine(t)
	path := writeFile(t, "ledger.csv", electricityCSV)

	a, _, err := engine.ExtractAll(path, "ES")
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := engine.ExtractAll(path, "ES")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same input produced different records")
	}
}

func TestExtractLazySequenceStopsEarly(t *testing.T) {
	engine := testEngine(t)
	path := writeFile(t, "ledger.csv", electricityCSV)

	seq, err := engine.Extract(path, "ES")
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for range seq {
		count++
		if count == 1 {
			break
		}
	}
	if count != 1 {
		t.Fatalf("consumed %d records after break", count)
	}
}

func TestExtractUnknownExtension(t *testing.T) {
	engine := testEngine(t)
	path := writeFile(t, "notes.docx", "irrelevant")

	if _, err := engine.Extract(path, "ES"); !errors.Is(err, internal.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractTextInvoice(t *testing.T) {
	engine := testEngine(t)
	text := `IBERDROLA CLIENTES S.A.U.
Factura nº: IB-2025-0042
Fecha de emisión: 05/06/2025
Período de facturación: del 01/05/2025 al 31/05/2025
Consumo total: 1.250,5 kWh
Importe total: 180,75 €`
	path := writeFile(t, "invoice.txt", text)

	records, _, err := engine.ExtractAll(path, "ES")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	record := records[0]
	if record.Supplier == nil || *record.Supplier != "Iberdrola" {
		t.Errorf("supplier = %v", record.Supplier)
	}
	if record.InvoiceNumber == nil || *record.InvoiceNumber != "IB-2025-0042" {
		t.Errorf("invoice = %v", record.InvoiceNumber)
	}
	if record.CO2eKg == nil || *record.CO2eKg != 288.87 {
		t.Errorf("co2e = %v, want 288.87", record.CO2eKg)
	}
	if record.NeedsReview {
		t.Error("fully recognized invoice should not need review")
	}
}

func TestExtractUnrecognizableTextIsGapRecord(t *testing.T) {
	engine := testEngine(t)
	path := writeFile(t, "notes.txt", "acta de la reunión de vecinos del martes")

	records, summary, err := engine.ExtractAll(path, "ES")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 gap record", len(records))
	}
	if summary.Flagged != 1 {
		t.Errorf("flagged = %d", summary.Flagged)
	}
	record := records[0]
	if !record.NeedsReview || record.Confidence != 0 {
		t.Errorf("gap record = confidence %v review %v", record.Confidence, record.NeedsReview)
	}
	if record.Meta[internal.MetaGap] != internal.GapExtraction {
		t.Errorf("gap = %v", record.Meta[internal.MetaGap])
	}
	if record.CO2eKg != nil {
		t.Error("gap record must not carry a co2e")
	}
}

func writeLedgerWorkbook(t *testing.T, sheets []ledgerSheet) string {
	t.Helper()
	f := excelize.NewFile()
	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				t.Fatal(err)
			}
		} else {
			if _, err := f.NewSheet(sheet.name); err != nil {
				t.Fatal(err)
			}
		}
		for r, row := range sheet.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(sheet.name, cell, &values); err != nil {
				t.Fatal(err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "consumos.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

type ledgerSheet struct {
	name string
	rows [][]string
}

func TestExtractMultiSheetWorkbookTotals(t *testing.T) {
	engine := testEngine(t)
	path := writeLedgerWorkbook(t, []ledgerSheet{
		{
			name: "Electricidad",
			rows: [][]string{
				{"Fecha", "Proveedor", "Categoría", "Consumo (kWh)", "Importe Total"},
				{"01/05/2025", "Iberdrola", "Electricidad", "1.250,5", "180,75"},
				{"01/06/2025", "Iberdrola", "Electricidad", "1.100,0", "165,20"},
				{"01/07/2025", "Iberdrola", "Electricidad", "980,3", "150,10"},
			},
		},
		{
			name: "Gas",
			rows: [][]string{
				{"Fecha", "Proveedor", "Categoría", "Consumo (m3)", "Importe Total"},
				{"01/05/2025", "Naturgy", "Gas Natural", "850", "95,40"},
			},
		},
	})

	records, summary, err := engine.ExtractAll(path, "ES")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want one per data row across sheets", len(records))
	}
	if summary.Records != 4 || summary.Flagged != 0 {
		t.Errorf("summary = %+v", summary)
	}

	total := 0.0
	for _, record := range records {
		if record.CO2eKg == nil {
			t.Fatalf("record %v/%v has no co2e", record.Meta[internal.MetaSheet], record.Meta[internal.MetaRow])
		}
		total += *record.CO2eKg
	}
	// 1250.5x0.231 + 1100x0.231 + 980.3x0.231 + 850x2.016
	// = 288.87 + 254.10 + 226.45 + 1713.60
	if got := util.Round2(total); got != 2483.02 {
		t.Errorf("total co2e = %v, want 2483.02", got)
	}

	last := records[3]
	if last.Category != internal.CategoryNaturalGas {
		t.Errorf("gas category = %s", last.Category)
	}
	if last.Scope == nil || *last.Scope != 1 {
		t.Errorf("gas scope = %v", last.Scope)
	}
	if last.Meta[internal.MetaSheet] != "Gas" || last.Meta[internal.MetaRow] != 2 {
		t.Errorf("gas position = %v/%v", last.Meta[internal.MetaSheet], last.Meta[internal.MetaRow])
	}
}

package extract

import (
	"testing"

	"luma/internal"
)

func TestMapColumnsSpanishHeaders(t *testing.T) {
	headers := []string{"Fecha", "Proveedor", "Categoría", "Consumo (kWh)", "Importe Total", "Moneda"}
	mapping := mapColumns(headers)

	want := map[int]string{
		0: internal.FieldIssueDate,
		1: internal.FieldSupplier,
		2: internal.FieldCategory,
		3: internal.FieldUsageValue,
		4: internal.FieldAmountTotal,
		5: internal.FieldCurrency,
	}
	for idx, field := range want {
		if got := mapping.fieldByIndex[idx]; got != field {
			t.Errorf("column %d: got %q want %q", idx, got, field)
		}
	}
	if mapping.impliedUnit != "kWh" {
		t.Errorf("impliedUnit = %q, want kWh", mapping.impliedUnit)
	}
}

func TestMapColumnsEnglishHeaders(t *testing.T) {
	headers := []string{"Date", "Supplier", "usage_value", "usage_unit", "amount_total"}
	mapping := mapColumns(headers)

	if mapping.fieldByIndex[2] != internal.FieldUsageValue {
		t.Fatalf("usage_value column not mapped: %v", mapping.fieldByIndex)
	}
	if mapping.fieldByIndex[3] != internal.FieldUsageUnit {
		t.Fatalf("usage_unit column not mapped: %v", mapping.fieldByIndex)
	}
	if mapping.impliedUnit != "" {
		t.Errorf("impliedUnit = %q, want empty for explicit unit column", mapping.impliedUnit)
	}
}

func TestCellsForRowImpliesUnit(t *testing.T) {
	mapping := mapColumns([]string{"Fecha", "Litros", "Importe"})

	cells := mapping.cellsForRow([]string{"01/05/2025", "120,5", "180,75"})
	if cells[internal.FieldUsageValue] != "120,5" {
		t.Fatalf("usage_value = %q", cells[internal.FieldUsageValue])
	}
	if cells[internal.FieldUsageUnit] != "L" {
		t.Errorf("usage_unit = %q, want L", cells[internal.FieldUsageUnit])
	}
}

func TestCellsForRowBlankRow(t *testing.T) {
	mapping := mapColumns([]string{"Fecha", "Consumo"})
	if cells := mapping.cellsForRow([]string{"", "  "}); cells != nil {
		t.Errorf("blank row produced cells: %v", cells)
	}
}

func TestCellsForRowShortRow(t *testing.T) {
	mapping := mapColumns([]string{"Fecha", "Consumo", "Importe"})
	cells := mapping.cellsForRow([]string{"01/05/2025"})
	if len(cells) != 1 || cells[internal.FieldIssueDate] != "01/05/2025" {
		t.Errorf("short row cells = %v", cells)
	}
}

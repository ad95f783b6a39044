package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"luma/internal"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func collect(t *testing.T, e Extractor, path string) []internal.RawUnit {
	t.Helper()
	seq, err := e.Open(path)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	var units []internal.RawUnit
	for u := range seq {
		units = append(units, u)
	}
	return units
}

func TestCSVSemicolonSpanish(t *testing.T) {
	data := "Fecha;Proveedor;Consumo (kWh);Importe Total\n" +
		"01/05/2025;Iberdrola;1.250,5;180,75\n" +
		"01/06/2025;Iberdrola;1.100,0;165,20\n"
	path := writeTemp(t, "ledger.csv", []byte(data))

	units := collect(t, NewCSVExtractor(), path)
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	first := units[0]
	if first.Row != 2 {
		t.Errorf("first data row = %d, want 2", first.Row)
	}
	if first.Cells[internal.FieldUsageValue] != "1.250,5" {
		t.Errorf("usage_value = %q", first.Cells[internal.FieldUsageValue])
	}
	if first.Cells[internal.FieldUsageUnit] != "kWh" {
		t.Errorf("usage_unit = %q, want implied kWh", first.Cells[internal.FieldUsageUnit])
	}
	if first.Cells[internal.FieldSupplier] != "Iberdrola" {
		t.Errorf("supplier = %q", first.Cells[internal.FieldSupplier])
	}
}

func TestCSVCommaDelimited(t *testing.T) {
	data := "date,supplier,usage_value,usage_unit,amount_total\n" +
		"2025-05-01,Endesa,950.2,kWh,142.10\n"
	path := writeTemp(t, "ledger.csv", []byte(data))

	units := collect(t, NewCSVExtractor(), path)
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Cells[internal.FieldUsageUnit] != "kWh" {
		t.Errorf("usage_unit = %q", units[0].Cells[internal.FieldUsageUnit])
	}
}

func TestCSVWindows1252(t *testing.T) {
	utf8Data := "Fecha;Categoría;Consumo\n01/05/2025;Electricidad;1.250,5\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(utf8Data)
	if err != nil {
		t.Fatal(err)
	}
	path := writeTemp(t, "latin.csv", []byte(encoded))

	units := collect(t, NewCSVExtractor(), path)
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Cells[internal.FieldCategory] != "Electricidad" {
		t.Errorf("category = %q", units[0].Cells[internal.FieldCategory])
	}
}

func TestCSVSkipsBlankRows(t *testing.T) {
	data := "fecha;consumo\n01/05/2025;100\n;\n01/06/2025;200\n"
	path := writeTemp(t, "blank.csv", []byte(data))

	units := collect(t, NewCSVExtractor(), path)
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if units[1].Row != 4 {
		t.Errorf("second unit row = %d, want 4", units[1].Row)
	}
}

func TestCSVEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.csv", nil)
	if _, err := NewCSVExtractor().Open(path); !errors.Is(err, internal.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

package listener

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"luma/internal"
	"luma/internal/config"
	"luma/internal/storage"
)

func testService(t *testing.T) (*Service, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		CompanyRegion:       "ES",
		ReviewThreshold:     0.70,
		RequiredFieldWeight: 3.0,
		OptionalFieldWeight: 1.0,
		PDFMinTextChars:     32,
	}
	svc, err := NewService(db, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return svc, db
}

// The engine is rebuilt per cycle from the database so factor syncs
// change the CO2e of subsequent cycles without restarting the listener.
func TestEngineUsesSyncedFactors(t *testing.T) {
	svc, db := testService(t)

	csvPath := filepath.Join(t.TempDir(), "ledger.csv")
	data := "Fecha;Proveedor;Categoría;Consumo (kWh);Importe Total\n" +
		"01/05/2025;Iberdrola;Electricidad;1.250,5;180,75\n"
	if err := os.WriteFile(csvPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	engine, err := svc.newEngine()
	if err != nil {
		t.Fatal(err)
	}
	records, _, err := engine.ExtractAll(csvPath, "ES")
	if err != nil {
		t.Fatal(err)
	}
	// Seed fallback: 1250.5 x 0.231 = 288.87
	if len(records) != 1 || records[0].CO2eKg == nil || *records[0].CO2eKg != 288.87 {
		t.Fatalf("records = %+v, want one record at 288.87 from the seed", records)
	}

	synced := []internal.EmissionFactor{{
		Region:    "ES",
		Category:  internal.CategoryElectricity,
		Scope:     2,
		Value:     0.500,
		Unit:      "kWh",
		Source:    "registry 2025",
		ValidFrom: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
	}}
	if err := db.UpsertFactors(synced); err != nil {
		t.Fatal(err)
	}

	engine, err = svc.newEngine()
	if err != nil {
		t.Fatal(err)
	}
	records, _, err = engine.ExtractAll(csvPath, "ES")
	if err != nil {
		t.Fatal(err)
	}
	// Next cycle picks up the sync: 1250.5 x 0.500 = 625.25
	if len(records) != 1 || records[0].CO2eKg == nil || *records[0].CO2eKg != 625.25 {
		t.Fatalf("records = %+v, want one record at 625.25 from the synced factor", records)
	}
	if records[0].EmissionFactorSource == nil || *records[0].EmissionFactorSource != "registry 2025" {
		t.Errorf("factor source = %v, want registry 2025", records[0].EmissionFactorSource)
	}
}

func TestSanitizeMessageID(t *testing.T) {
	got := sanitizeMessageID("<CAF=abc/123:x y>@mail.example.com")
	if got != "_CAF=abc_123_x_y_@mail.example.com" {
		t.Errorf("sanitized = %q", got)
	}
}

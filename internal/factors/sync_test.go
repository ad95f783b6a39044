package factors

import (
	"path/filepath"
	"testing"
	"time"

	"luma/internal"
	"luma/internal/storage"
)

func TestLoadTablePrefersSyncedFactors(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	t.Run("seed fallback before any sync", func(t *testing.T) {
		table, err := LoadTable(db)
		if err != nil {
			t.Fatal(err)
		}
		period := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
		res, ok := table.Resolve("ES", internal.CategoryElectricity, 2, &period)
		if !ok || res.Factor.Value != 0.231 {
			t.Fatalf("resolve = %+v ok=%v, want seed value 0.231", res, ok)
		}
	})

	synced := []internal.EmissionFactor{{
		Region:    "ES",
		Category:  internal.CategoryElectricity,
		Scope:     2,
		Value:     0.198,
		Unit:      "kWh",
		Source:    "registry 2025",
		ValidFrom: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
	}}
	if err := db.UpsertFactors(synced); err != nil {
		t.Fatal(err)
	}

	t.Run("synced set replaces the seed", func(t *testing.T) {
		table, err := LoadTable(db)
		if err != nil {
			t.Fatal(err)
		}
		period := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
		res, ok := table.Resolve("ES", internal.CategoryElectricity, 2, &period)
		if !ok || res.Factor.Value != 0.198 {
			t.Fatalf("resolve = %+v ok=%v, want synced value 0.198", res, ok)
		}
		if _, ok := table.Resolve("ES", internal.CategoryDiesel, 1, &period); ok {
			t.Error("diesel must not resolve: the synced set is authoritative, not merged with the seed")
		}
	})
}

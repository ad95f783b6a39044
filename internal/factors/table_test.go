package factors

import (
	"testing"
	"time"

	"luma/internal"
)

func TestResolvePicksContainingWindow(t *testing.T) {
	table, err := NewTable(Seed())
	if err != nil {
		t.Fatal(err)
	}

	period := date(2023, time.June, 15)
	res, ok := table.Resolve("ES", internal.CategoryElectricity, 2, &period)
	if !ok {
		t.Fatal("no factor resolved")
	}
	if res.Factor.Value != 0.250 || res.Stale {
		t.Fatalf("unexpected resolution: %+v", res)
	}

	period = date(2025, time.May, 1)
	res, ok = table.Resolve("ES", internal.CategoryElectricity, 2, &period)
	if !ok || res.Factor.Value != 0.231 || res.Stale {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	table, err := NewTable(Seed())
	if err != nil {
		t.Fatal(err)
	}

	period := date(2025, time.March, 1)
	res, ok := table.Resolve("FR", internal.CategoryFreight, 3, &period)
	if !ok {
		t.Fatal("expected GLOBAL fallback")
	}
	if res.Factor.Region != internal.RegionGlobal || res.Factor.Value != 0.062 {
		t.Fatalf("unexpected factor: %+v", res.Factor)
	}
}

func TestResolveStaleVintage(t *testing.T) {
	factors := []internal.EmissionFactor{
		{Region: "ES", Category: internal.CategoryDiesel, Scope: 1, Value: 2.7, Unit: "L", ValidFrom: date(2020, time.January, 1), ValidUntil: until(2021, time.January, 1)},
	}
	table, err := NewTable(factors)
	if err != nil {
		t.Fatal(err)
	}

	period := date(2024, time.June, 1)
	res, ok := table.Resolve("ES", internal.CategoryDiesel, 1, &period)
	if !ok {
		t.Fatal("expected stale resolution")
	}
	if !res.Stale || res.Factor.Value != 2.7 {
		t.Fatalf("unexpected resolution: %+v", res)
	}

	// Period before any vintage: nothing applies.
	early := date(2019, time.June, 1)
	if _, ok := table.Resolve("ES", internal.CategoryDiesel, 1, &early); ok {
		t.Fatal("expected no resolution before first vintage")
	}
}

func TestResolveMissingCategory(t *testing.T) {
	table, err := NewTable(Seed())
	if err != nil {
		t.Fatal(err)
	}
	period := date(2025, time.January, 1)
	if _, ok := table.Resolve("ES", internal.CategoryLPG, 1, &period); ok {
		t.Fatal("LPG is not seeded, resolution should fail")
	}
}

func TestNewTableRejectsOverlap(t *testing.T) {
	factors := []internal.EmissionFactor{
		{Region: "ES", Category: internal.CategoryElectricity, Scope: 2, Value: 0.25, Unit: "kWh", ValidFrom: date(2023, time.January, 1)},
		{Region: "ES", Category: internal.CategoryElectricity, Scope: 2, Value: 0.23, Unit: "kWh", ValidFrom: date(2024, time.January, 1)},
	}
	if _, err := NewTable(factors); err == nil {
		t.Fatal("open-ended window followed by a later vintage must be rejected")
	}
}

func TestConvert(t *testing.T) {
	cases := []struct {
		value    float64
		from, to string
		want     float64
		ok       bool
	}{
		{850, "m³", "kWh", 850 * 11.63, true},
		{1, "MWh", "kwh", 1000, true},
		{12, "kWh", "kWh", 12, true},
		{3, "Litros", "L", 3, true},
		{5, "L", "kWh", 0, false},
	}
	for _, tc := range cases {
		got, ok := Convert(tc.value, tc.from, tc.to)
		if ok != tc.ok {
			t.Fatalf("Convert(%v,%s,%s) ok=%v want %v", tc.value, tc.from, tc.to, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("Convert(%v,%s,%s)=%v want %v", tc.value, tc.from, tc.to, got, tc.want)
		}
	}
}

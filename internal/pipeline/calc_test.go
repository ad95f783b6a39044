package pipeline

import (
	"testing"
	"time"

	"luma/internal"
	"luma/internal/factors"
	"luma/internal/util"
)

func seedCalculator(t *testing.T) *Calculator {
	t.Helper()
	table, err := factors.NewTable(factors.Seed())
	if err != nil {
		t.Fatal(err)
	}
	return NewCalculator(table)
}

func mayStart() *time.Time {
	d := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestApplyInvoiceDeclaredFactor(t *testing.T) {
	record := internal.UsageRecord{
		Category:             internal.CategoryElectricity,
		Scope:                util.IntPtr(2),
		PeriodStart:          mayStart(),
		UsageValue:           util.FloatPtr(1250.5),
		UsageUnit:            util.StringPtr("kWh"),
		EmissionFactor:       util.FloatPtr(0.215),
		EmissionFactorSource: util.StringPtr("invoice"),
		Meta:                 map[string]any{},
	}
	seedCalculator(t).Apply(&record, "ES")

	if record.CO2eKg == nil || *record.CO2eKg != 268.86 {
		t.Fatalf("co2e = %v, want 268.86", record.CO2eKg)
	}
	if *record.EmissionFactorSource != "invoice" {
		t.Errorf("factor source = %q, want invoice to outrank the table", *record.EmissionFactorSource)
	}
}

func TestApplyTableFactorGas(t *testing.T) {
	record := internal.UsageRecord{
		Category:    internal.CategoryNaturalGas,
		Scope:       util.IntPtr(1),
		PeriodStart: mayStart(),
		UsageValue:  util.FloatPtr(850),
		UsageUnit:   util.StringPtr("m3"),
		Meta:        map[string]any{},
	}
	seedCalculator(t).Apply(&record, "ES")

	// 850 m3 x 2.016 kg/m3
	if record.CO2eKg == nil || *record.CO2eKg != 1713.60 {
		t.Fatalf("co2e = %v, want 1713.60", record.CO2eKg)
	}
	if record.EmissionFactor == nil || *record.EmissionFactor != 2.016 {
		t.Errorf("factor = %v", record.EmissionFactor)
	}
	if record.Scope == nil || *record.Scope != 1 {
		t.Errorf("scope = %v", record.Scope)
	}
}

func TestApplyUnitConversion(t *testing.T) {
	// Gas invoiced in m3 against a kWh factor: the GLOBAL gas factor is
	// per kWh, so the volume converts at 11.63 kWh/m3 first.
	record := internal.UsageRecord{
		Category:    internal.CategoryNaturalGas,
		Scope:       util.IntPtr(1),
		PeriodStart: mayStart(),
		UsageValue:  util.FloatPtr(100),
		UsageUnit:   util.StringPtr("m3"),
		Meta:        map[string]any{},
	}
	seedCalculator(t).Apply(&record, "FR")

	if record.CO2eKg == nil {
		t.Fatal("co2e not computed")
	}
	want := util.Round2(100 * 11.63 * 0.202)
	if *record.CO2eKg != want {
		t.Errorf("co2e = %v, want %v", *record.CO2eKg, want)
	}
}

func TestApplyMissingFactor(t *testing.T) {
	record := internal.UsageRecord{
		Category:    internal.CategoryLPG,
		Scope:       util.IntPtr(1),
		PeriodStart: mayStart(),
		UsageValue:  util.FloatPtr(200),
		UsageUnit:   util.StringPtr("kg"),
		Meta:        map[string]any{},
	}
	seedCalculator(t).Apply(&record, "ES")

	if record.CO2eKg != nil {
		t.Fatalf("co2e = %v, want nil when no factor resolves", *record.CO2eKg)
	}
	if record.Meta[internal.MetaGap] != internal.GapFactorNotFound {
		t.Errorf("gap = %v, want factor_not_found", record.Meta[internal.MetaGap])
	}
	if !record.NeedsReview {
		t.Error("missing factor must flag the record")
	}
}

func TestApplyUnitMismatch(t *testing.T) {
	// Freight distance without weight: km cannot convert to the tkm
	// factor unit.
	record := internal.UsageRecord{
		Category:    internal.CategoryFreight,
		Scope:       util.IntPtr(3),
		PeriodStart: mayStart(),
		UsageValue:  util.FloatPtr(320),
		UsageUnit:   util.StringPtr("km"),
		Meta:        map[string]any{},
	}
	seedCalculator(t).Apply(&record, "ES")

	if record.CO2eKg != nil {
		t.Fatalf("co2e = %v, want nil on unit mismatch", *record.CO2eKg)
	}
	if record.Meta[internal.MetaGap] != internal.GapUnitMismatch {
		t.Errorf("gap = %v, want unit_mismatch", record.Meta[internal.MetaGap])
	}
}

func TestApplyStaleVintageFlags(t *testing.T) {
	old := time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC)
	record := internal.UsageRecord{
		Category:    internal.CategoryElectricity,
		Scope:       util.IntPtr(2),
		PeriodStart: &old,
		UsageValue:  util.FloatPtr(100),
		UsageUnit:   util.StringPtr("kWh"),
		Meta:        map[string]any{},
	}

	vintage := internal.EmissionFactor{
		Region: "ES", Category: internal.CategoryElectricity, Scope: 2,
		Value: 0.25, Unit: "kWh", Source: "MITECO 2023",
		ValidFrom:  time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: nil,
	}
	table, err := factors.NewTable([]internal.EmissionFactor{vintage})
	if err != nil {
		t.Fatal(err)
	}

	// Period precedes every vintage: no resolution at all.
	NewCalculator(table).Apply(&record, "ES")
	if record.CO2eKg != nil {
		t.Fatalf("co2e = %v, want nil before first vintage", *record.CO2eKg)
	}
}

func TestApplyMissingUsageValue(t *testing.T) {
	record := internal.UsageRecord{
		Category: internal.CategoryElectricity,
		Scope:    util.IntPtr(2),
		Meta:     map[string]any{},
	}
	seedCalculator(t).Apply(&record, "ES")

	if record.Meta[internal.MetaGap] != internal.GapExtraction {
		t.Errorf("gap = %v, want extraction_gap", record.Meta[internal.MetaGap])
	}
	if record.CO2eKg != nil {
		t.Error("co2e must stay nil without usage value")
	}
}

func TestApplyUnknownCategoryIsExtractionGap(t *testing.T) {
	record := internal.UsageRecord{
		Category:   internal.CategoryUnknown,
		UsageValue: util.FloatPtr(42),
		UsageUnit:  util.StringPtr("kWh"),
		Meta:       map[string]any{},
	}
	seedCalculator(t).Apply(&record, "ES")

	if record.Meta[internal.MetaGap] != internal.GapExtraction {
		t.Errorf("gap = %v, want extraction_gap for an unresolved category", record.Meta[internal.MetaGap])
	}
	if !record.NeedsReview {
		t.Error("record must be flagged for review")
	}
	if record.CO2eKg != nil {
		t.Error("co2e must stay nil without a scope")
	}
}

func TestApplyNilPeriodUsesLatestVintage(t *testing.T) {
	record := internal.UsageRecord{
		Category:   internal.CategoryElectricity,
		Scope:      util.IntPtr(2),
		UsageValue: util.FloatPtr(1000),
		UsageUnit:  util.StringPtr("kWh"),
		Meta:       map[string]any{},
	}
	seedCalculator(t).Apply(&record, "ES")

	// Latest ES electricity vintage is 0.231.
	if record.EmissionFactor == nil || *record.EmissionFactor != 0.231 {
		t.Errorf("factor = %v, want 0.231", record.EmissionFactor)
	}
	if record.CO2eKg == nil || *record.CO2eKg != 231.0 {
		t.Errorf("co2e = %v, want 231.0", record.CO2eKg)
	}
}

package pipeline

import (
	"time"

	"luma/internal"
	"luma/internal/factors"
	"luma/internal/util"
)

// Calculator annotates usage records with emission factors and CO2e.
type Calculator struct {
	table *factors.Table
}

func NewCalculator(table *factors.Table) *Calculator {
	return &Calculator{table: table}
}

// Apply resolves the emission factor for one record and computes its
// CO2e in kilograms. A record that cannot be calculated keeps its
// extracted data, gains a gap marker and is flagged for review; the
// CO2e field stays nil, never zero.
func (c *Calculator) Apply(record *internal.UsageRecord, region string) {
	if record.UsageValue == nil {
		markGap(record, internal.GapExtraction)
		return
	}
	// No scope means the category never resolved, which is an
	// extraction gap rather than a missing factor.
	if record.Scope == nil {
		markGap(record, internal.GapExtraction)
		return
	}

	// An invoice-declared factor outranks the table. It is always in
	// kg CO2e per the invoice's own usage unit.
	if record.EmissionFactor != nil {
		co2e := util.Round2(*record.UsageValue * *record.EmissionFactor)
		record.CO2eKg = &co2e
		return
	}

	res, ok := c.table.Resolve(region, record.Category, *record.Scope, calcPeriod(record))
	if !ok {
		markGap(record, internal.GapFactorNotFound)
		return
	}

	value := *record.UsageValue
	unit := ""
	if record.UsageUnit != nil {
		unit = *record.UsageUnit
	}
	converted, ok := factors.Convert(value, unit, res.Factor.Unit)
	if !ok {
		markGap(record, internal.GapUnitMismatch)
		return
	}

	factor := res.Factor
	record.EmissionFactor = &factor.Value
	record.EmissionFactorSource = util.StringPtr(factor.Source)
	co2e := util.Round2(converted * factor.Value)
	record.CO2eKg = &co2e
	if res.Stale {
		record.Meta[internal.MetaStaleFactor] = true
		record.NeedsReview = true
	}
}

// calcPeriod picks the date the factor vintage is resolved against:
// period start when the invoice states one, else the issue date.
func calcPeriod(record *internal.UsageRecord) *time.Time {
	if record.PeriodStart != nil {
		return record.PeriodStart
	}
	return record.IssueDate
}

func markGap(record *internal.UsageRecord, gap string) {
	if record.Meta == nil {
		record.Meta = map[string]any{}
	}
	record.Meta[internal.MetaGap] = gap
	record.NeedsReview = true
}

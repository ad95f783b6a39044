package pipeline

import (
	"strings"

	"luma/internal"
	"luma/internal/config"
	"luma/internal/factors"
	"luma/internal/util"
)

// Fields that must be present for a record to have any standing.
var requiredFields = map[string]bool{
	internal.FieldUsageValue: true,
	internal.FieldCategory:   true,
}

// BuildRecord turns one recognized unit into a usage record: raw
// strings parsed into typed values, category and scope inferred,
// confidence scored. Emission math happens afterwards in the
// calculator.
func BuildRecord(fields internal.ExtractedFields, unit internal.RawUnit, cfg config.Config) internal.UsageRecord {
	f := fields.Fields

	record := internal.UsageRecord{
		Supplier:      strField(f, internal.FieldSupplier),
		Category:      parseCategory(f[internal.FieldCategory]),
		InvoiceNumber: strField(f, internal.FieldInvoiceNumber),
		IssueDate:     util.ParseDatePtr(f[internal.FieldIssueDate]),
		PeriodStart:   util.ParseDatePtr(f[internal.FieldPeriodStart]),
		PeriodEnd:     util.ParseDatePtr(f[internal.FieldPeriodEnd]),
		AmountTotal:   util.ParseFloatPtr(f[internal.FieldAmountTotal]),
		Currency:      currencyOrDefault(f[internal.FieldCurrency]),
		Meta:          unitMeta(unit, fields.Rule),
	}

	if raw, ok := f[internal.FieldUsageValue]; ok {
		if value, ok := util.ParseNumber(raw); ok {
			record.UsageValue = &value
		}
	}
	if raw, ok := f[internal.FieldUsageUnit]; ok {
		normalized := factors.NormalizeUnit(raw)
		record.UsageUnit = &normalized
	}
	if raw, ok := f[internal.FieldEmissionFactor]; ok {
		if value, ok := util.ParseNumber(raw); ok && value > 0 {
			record.EmissionFactor = &value
			record.EmissionFactorSource = util.StringPtr("invoice")
		}
	}

	collapseFreight(&record, f)

	if record.Category == internal.CategoryUnknown && record.UsageUnit != nil {
		record.Category = categoryFromUnit(*record.UsageUnit)
	}
	record.Scope = internal.ScopeFor(record.Category)

	record.Confidence = scoreConfidence(fields, record, cfg)
	record.NeedsReview = record.Confidence < cfg.ReviewThreshold
	// Without a usage value and category there is nothing to calculate,
	// whatever the rest of the score says.
	if record.UsageValue == nil || record.Category == internal.CategoryUnknown {
		record.NeedsReview = true
	}
	return record
}

// collapseFreight folds a distance plus shipment weight into
// tonne-kilometers. A freight line without a weight keeps its distance
// unit and is left for the calculator to flag.
func collapseFreight(record *internal.UsageRecord, f map[string]string) {
	if record.Category != internal.CategoryFreight {
		return
	}
	if record.UsageValue == nil || record.UsageUnit == nil || *record.UsageUnit != "km" {
		return
	}
	weightRaw, ok := f[internal.FieldFreightWeight]
	if !ok {
		return
	}
	weight, ok := util.ParseNumber(weightRaw)
	if !ok || weight <= 0 {
		return
	}
	if factors.NormalizeUnit(f[internal.FieldFreightWeightUnit]) != "t" {
		weight /= 1000 // kg is the default on carrier invoices
	}
	tkm := *record.UsageValue * weight
	record.UsageValue = &tkm
	record.UsageUnit = util.StringPtr("tkm")
}

// scoreConfidence weighs found against expected fields. Required
// fields (usage value, category) count heavier than the rest, so a
// record missing one of them lands under the review threshold even
// when everything else parsed.
func scoreConfidence(fields internal.ExtractedFields, record internal.UsageRecord, cfg config.Config) float64 {
	if len(fields.Expected) == 0 {
		return 0
	}

	weightOf := func(name string) float64 {
		if requiredFields[name] {
			return cfg.RequiredFieldWeight
		}
		return cfg.OptionalFieldWeight
	}

	var total, got float64
	for _, name := range fields.Expected {
		total += weightOf(name)
	}
	for _, name := range fields.Found {
		if !usable(name, record) {
			continue
		}
		got += weightOf(name)
	}
	if total == 0 {
		return 0
	}
	return got / total
}

// usable demotes fields whose raw value was found but failed to parse.
func usable(name string, record internal.UsageRecord) bool {
	switch name {
	case internal.FieldUsageValue:
		return record.UsageValue != nil
	case internal.FieldIssueDate:
		return record.IssueDate != nil
	case internal.FieldPeriodStart:
		return record.PeriodStart != nil
	case internal.FieldPeriodEnd:
		return record.PeriodEnd != nil
	case internal.FieldAmountTotal:
		return record.AmountTotal != nil
	case internal.FieldCategory:
		return record.Category != internal.CategoryUnknown
	default:
		return true
	}
}

var categoryAliases = map[string]internal.Category{
	"electricidad": internal.CategoryElectricity,
	"electricity":  internal.CategoryElectricity,
	"luz":          internal.CategoryElectricity,
	"gas":          internal.CategoryNaturalGas,
	"gas natural":  internal.CategoryNaturalGas,
	"natural_gas":  internal.CategoryNaturalGas,
	"diesel":       internal.CategoryDiesel,
	"diésel":       internal.CategoryDiesel,
	"gasóleo":      internal.CategoryDiesel,
	"gasoleo":      internal.CategoryDiesel,
	"gasolina":     internal.CategoryGasoline,
	"gasoline":     internal.CategoryGasoline,
	"fuel_oil":     internal.CategoryFuelOil,
	"fuelóleo":     internal.CategoryFuelOil,
	"lpg":          internal.CategoryLPG,
	"glp":          internal.CategoryLPG,
	"transporte":   internal.CategoryFreight,
	"freight":      internal.CategoryFreight,
	"envío":        internal.CategoryFreight,
	"envios":       internal.CategoryFreight,
	"mensajería":   internal.CategoryFreight,
}

func parseCategory(raw string) internal.Category {
	if cat, ok := categoryAliases[util.NormalizeSpaces(strings.ToLower(raw))]; ok {
		return cat
	}
	return internal.CategoryUnknown
}

func categoryFromUnit(unit string) internal.Category {
	switch unit {
	case "kWh", "MWh":
		return internal.CategoryElectricity
	case "m3":
		return internal.CategoryNaturalGas
	case "tkm", "km":
		return internal.CategoryFreight
	default:
		return internal.CategoryUnknown
	}
}

func currencyOrDefault(raw string) string {
	switch util.NormalizeSpaces(raw) {
	case "", "€", "eur", "EUR", "euro", "euros":
		return "EUR"
	default:
		return strings.ToUpper(util.NormalizeSpaces(raw))
	}
}

func unitMeta(unit internal.RawUnit, rule string) map[string]any {
	meta := map[string]any{
		internal.MetaSourceKind: string(unit.Kind),
	}
	if rule != "" {
		meta[internal.MetaRule] = rule
	}
	if unit.Sheet != "" {
		meta[internal.MetaSheet] = unit.Sheet
	}
	if unit.Row > 0 {
		meta[internal.MetaRow] = unit.Row
	}
	if unit.Page > 0 {
		meta[internal.MetaPage] = unit.Page
	}
	return meta
}

func strField(f map[string]string, name string) *string {
	if v, ok := f[name]; ok && v != "" {
		return &v
	}
	return nil
}

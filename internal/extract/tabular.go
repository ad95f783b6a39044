package extract

import (
	"strings"

	"luma/internal"
	"luma/internal/util"
)

// columnSynonyms maps canonical field names to the header spellings
// seen in supplier ledgers, Spanish first. Matching is performed on
// normalized headers, exact first and substring second.
var columnSynonyms = map[string][]string{
	internal.FieldIssueDate:     {"fecha", "fecha_factura", "posting_date", "date"},
	internal.FieldPeriodStart:   {"periodo_inicio", "fecha_inicio", "period_start"},
	internal.FieldPeriodEnd:     {"periodo_fin", "fecha_fin", "period_end"},
	internal.FieldSupplier:      {"proveedor", "vendor", "empresa", "supplier"},
	internal.FieldCategory:      {"categoria", "tipo_gasto", "naturaleza", "category"},
	internal.FieldUsageValue:    {"consumo", "kwh", "usage_kwh", "m3", "litros", "distancia_km", "tkm", "km", "usage_value", "usage"},
	internal.FieldUsageUnit:     {"unidad", "unidad_consumo", "uom", "usage_unit", "unit"},
	internal.FieldAmountTotal:   {"importe_total", "importe", "total", "amount_total", "amount"},
	internal.FieldInvoiceNumber: {"num_factura", "factura", "invoice_number", "invoice"},
	internal.FieldCurrency:      {"moneda", "divisa", "currency"},
	internal.FieldFreightWeight: {"peso_kg", "peso", "weight_kg", "weight"},
}

// Headers that carry the unit in their name ("kwh", "litros") imply a
// usage unit when the sheet has no explicit unit column. Matched
// against the underscore-separated tokens of the normalized header.
var headerImpliedUnits = map[string]string{
	"kwh":    "kWh",
	"mwh":    "MWh",
	"m3":     "m3",
	"litros": "L",
	"l":      "L",
	"tkm":    "tkm",
	"km":     "km",
}

func impliedUnitFor(normalizedHeader string) string {
	for _, token := range strings.Split(normalizedHeader, "_") {
		if unit, ok := headerImpliedUnits[token]; ok {
			return unit
		}
	}
	return ""
}

type columnMapping struct {
	fieldByIndex map[int]string
	impliedUnit  string
}

// mapColumns resolves a header row against the synonym table. Column
// names are matched case-insensitively on their normalized form;
// unmatched columns are ignored.
func mapColumns(headers []string) columnMapping {
	mapping := columnMapping{fieldByIndex: map[int]string{}}
	claimed := map[string]bool{}

	assign := func(idx int, field, normalized string) {
		if claimed[field] {
			return
		}
		mapping.fieldByIndex[idx] = field
		claimed[field] = true
		if field == internal.FieldUsageValue {
			mapping.impliedUnit = impliedUnitFor(normalized)
		}
	}

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = util.NormalizeHeader(h)
	}

	// Exact synonym matches win over fuzzy ones.
	for i, norm := range normalized {
		if norm == "" {
			continue
		}
		for field, synonyms := range columnSynonyms {
			for _, syn := range synonyms {
				if norm == syn {
					assign(i, field, norm)
				}
			}
		}
	}
	for i, norm := range normalized {
		if norm == "" {
			continue
		}
		if _, taken := mapping.fieldByIndex[i]; taken {
			continue
		}
		for field, synonyms := range columnSynonyms {
			if claimed[field] {
				continue
			}
			for _, syn := range synonyms {
				if len(syn) >= 3 && strings.Contains(norm, syn) {
					assign(i, field, norm)
					break
				}
			}
		}
	}

	return mapping
}

// cellsForRow applies a column mapping to one data row, producing the
// canonical field -> raw value cells of a tabular RawUnit. Blank cells
// are omitted; a wholly blank row yields nil.
func (m columnMapping) cellsForRow(row []string) map[string]string {
	cells := map[string]string{}
	for idx, field := range m.fieldByIndex {
		if idx >= len(row) {
			continue
		}
		value := util.NormalizeSpaces(row[idx])
		if value == "" {
			continue
		}
		cells[field] = value
	}
	if len(cells) == 0 {
		return nil
	}
	if _, hasUnit := cells[internal.FieldUsageUnit]; !hasUnit && m.impliedUnit != "" {
		if _, hasUsage := cells[internal.FieldUsageValue]; hasUsage {
			cells[internal.FieldUsageUnit] = m.impliedUnit
		}
	}
	return cells
}

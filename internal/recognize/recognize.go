package recognize

import (
	"regexp"
	"strings"

	"luma/internal"
	"luma/internal/util"
)

// Recognizer turns raw units into canonical field maps. Text units go
// through the supplier rule table; tabular units already carry
// canonical cells and only need field accounting.
type Recognizer struct {
	rules []Rule
}

func New() *Recognizer {
	return &Recognizer{rules: Rules()}
}

// Recognize extracts fields from one unit. ok is false when the unit
// carries nothing recognizable, in which case the caller should record
// an extraction gap.
func (r *Recognizer) Recognize(unit internal.RawUnit) (internal.ExtractedFields, bool) {
	if unit.Cells != nil {
		return recognizeCells(unit.Cells), true
	}
	text := util.NormalizeSpaces(unit.Text)
	if text == "" {
		return internal.ExtractedFields{}, false
	}
	for _, rule := range r.rules {
		if rule.Anchor.MatchString(text) {
			return applyRule(rule, text), true
		}
	}
	return genericRecognize(text)
}

func applyRule(rule Rule, text string) internal.ExtractedFields {
	fields := map[string]string{}
	for k, v := range rule.Defaults {
		fields[k] = v
	}
	for _, cap := range rule.Captures {
		m := cap.find(text)
		if m == nil {
			continue
		}
		for i, field := range cap.fields {
			if field == "" || i+1 >= len(m) || m[i+1] == "" {
				continue
			}
			fields[field] = strings.TrimSpace(m[i+1])
		}
	}
	refineFuelCategory(fields, text)

	found := make([]string, 0, len(fields))
	for _, f := range rule.Expected {
		if _, ok := fields[f]; ok {
			found = append(found, f)
		}
	}
	return internal.ExtractedFields{
		Fields:   fields,
		Rule:     rule.Name,
		Found:    found,
		Expected: rule.Expected,
	}
}

// refineFuelCategory upgrades the diesel default when the invoice
// names the product.
func refineFuelCategory(fields map[string]string, text string) {
	if fields[internal.FieldCategory] != string(internal.CategoryDiesel) {
		return
	}
	if reGasoline.MatchString(text) && !reDiesel.MatchString(text) {
		fields[internal.FieldCategory] = string(internal.CategoryGasoline)
	}
}

var genericUsage = regexp.MustCompile(`(?i)([\d.,]+)\s*(kWh|MWh|m3|m³|litros|tkm|km|L)\b`)

var genericExpected = []string{
	internal.FieldCategory, internal.FieldUsageValue, internal.FieldUsageUnit,
	internal.FieldIssueDate, internal.FieldAmountTotal,
}

// genericRecognize is the fallback for text no supplier rule anchors
// on: find the first quantity with a recognizable unit token and
// whatever dates and totals are present.
func genericRecognize(text string) (internal.ExtractedFields, bool) {
	m := genericUsage.FindStringSubmatch(text)
	if m == nil {
		return internal.ExtractedFields{}, false
	}
	fields := map[string]string{
		internal.FieldUsageValue: m[1],
		internal.FieldUsageUnit:  m[2],
	}
	if cat := categoryForUnit(m[2]); cat != internal.CategoryUnknown {
		fields[internal.FieldCategory] = string(cat)
	}
	for _, cap := range []capture{capInvoice, capIssueDate, capPeriod, capAmount} {
		sm := cap.find(text)
		if sm == nil {
			continue
		}
		for i, field := range cap.fields {
			if field != "" && i+1 < len(sm) && sm[i+1] != "" {
				fields[field] = strings.TrimSpace(sm[i+1])
			}
		}
	}

	found := make([]string, 0, len(fields))
	for _, f := range genericExpected {
		if _, ok := fields[f]; ok {
			found = append(found, f)
		}
	}
	return internal.ExtractedFields{
		Fields:   fields,
		Rule:     "generic",
		Found:    found,
		Expected: genericExpected,
	}, true
}

// categoryForUnit guesses a category from a bare unit token. Liters
// stay unknown: diesel and gasoline cannot be told apart from the
// unit alone.
func categoryForUnit(unit string) internal.Category {
	switch strings.ToLower(unit) {
	case "kwh", "mwh":
		return internal.CategoryElectricity
	case "m3", "m³":
		return internal.CategoryNaturalGas
	case "tkm", "km":
		return internal.CategoryFreight
	default:
		return internal.CategoryUnknown
	}
}

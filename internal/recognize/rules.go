package recognize

import (
	"regexp"

	"luma/internal"
)

// capture binds one regex to the canonical fields its groups fill. A
// group whose field name is empty is matched but discarded. last makes
// the final occurrence win, for labels like "Total" that also appear
// mid-invoice ("Consumo total").
type capture struct {
	re     *regexp.Regexp
	fields []string
	last   bool
}

func (c capture) find(text string) []string {
	if !c.last {
		return c.re.FindStringSubmatch(text)
	}
	all := c.re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// Rule recognizes one supplier's invoice layout. The anchor decides
// whether the rule applies; captures then pull fields out of the text.
// Defaults are written before captures so an explicit match wins.
type Rule struct {
	Name     string
	Anchor   *regexp.Regexp
	Defaults map[string]string
	Captures []capture
	Expected []string
}

var (
	reDate   = `(\d{2}[/\-.]\d{2}[/\-.]\d{2,4}|\d{4}-\d{2}-\d{2})`
	reNumber = `([\d.,]+)`

	capInvoice = capture{
		re:     regexp.MustCompile(`(?i)factura\s*n[ºo°]?\.?\s*:?\s*([A-Z0-9][A-Z0-9\-/.]+)`),
		fields: []string{internal.FieldInvoiceNumber},
	}
	capIssueDate = capture{
		re:     regexp.MustCompile(`(?i)fecha(?:\s+de)?(?:\s+(?:emisi[óo]n|factura))?\s*:?\s*` + reDate),
		fields: []string{internal.FieldIssueDate},
	}
	capPeriod = capture{
		re:     regexp.MustCompile(`(?i)per[ií]odo(?:\s+de\s+facturaci[óo]n)?\s*:?\s*(?:del?\s*)?` + reDate + `\s*(?:al?|[-–])\s*` + reDate),
		fields: []string{internal.FieldPeriodStart, internal.FieldPeriodEnd},
	}
	capAmount = capture{
		re:     regexp.MustCompile(`(?i)(?:importe\s+total|total\s+(?:factura|a\s+pagar)|\btotal)\s*:?\s*` + reNumber + `\s*(?:€|EUR)?`),
		fields: []string{internal.FieldAmountTotal},
		last:   true,
	}
	capEnergyUsage = capture{
		re:     regexp.MustCompile(`(?i)consumo(?:\s+total)?(?:\s+del?\s+per[ií]odo)?\s*:?\s*` + reNumber + `\s*(kWh|MWh|m3|m³)`),
		fields: []string{internal.FieldUsageValue, internal.FieldUsageUnit},
	}
	capFuelUsage = capture{
		re:     regexp.MustCompile(`(?i)(?:litros|volumen|cantidad)\s*:?\s*` + reNumber + `\s*(L|litros)?`),
		fields: []string{internal.FieldUsageValue, internal.FieldUsageUnit},
	}
	capEmissionFactor = capture{
		re:     regexp.MustCompile(`(?i)factor\s+de\s+emisi[óo]n\s*:?\s*` + reNumber + `\s*kg\s*CO2e?\s*/\s*kWh`),
		fields: []string{internal.FieldEmissionFactor},
	}
	capDistance = capture{
		re:     regexp.MustCompile(`(?i)distancia\s*:?\s*` + reNumber + `\s*km`),
		fields: []string{internal.FieldUsageValue},
	}
	capWeight = capture{
		re:     regexp.MustCompile(`(?i)peso\s*:?\s*` + reNumber + `\s*(kg|t)`),
		fields: []string{internal.FieldFreightWeight, internal.FieldFreightWeightUnit},
	}
)

var energyExpected = []string{
	internal.FieldSupplier, internal.FieldCategory, internal.FieldInvoiceNumber,
	internal.FieldIssueDate, internal.FieldPeriodStart, internal.FieldPeriodEnd,
	internal.FieldUsageValue, internal.FieldUsageUnit, internal.FieldAmountTotal,
}

var fuelExpected = []string{
	internal.FieldSupplier, internal.FieldCategory, internal.FieldInvoiceNumber,
	internal.FieldIssueDate, internal.FieldUsageValue, internal.FieldUsageUnit,
	internal.FieldAmountTotal,
}

var freightExpected = []string{
	internal.FieldSupplier, internal.FieldCategory, internal.FieldInvoiceNumber,
	internal.FieldIssueDate, internal.FieldUsageValue, internal.FieldUsageUnit,
	internal.FieldAmountTotal, internal.FieldFreightWeight,
}

func electricityRule(name, anchor string) Rule {
	return Rule{
		Name:   name,
		Anchor: regexp.MustCompile(anchor),
		Defaults: map[string]string{
			internal.FieldSupplier: name,
			internal.FieldCategory: string(internal.CategoryElectricity),
			internal.FieldCurrency: "EUR",
		},
		Captures: []capture{capInvoice, capIssueDate, capPeriod, capEnergyUsage, capAmount, capEmissionFactor},
		Expected: energyExpected,
	}
}

func fuelRule(name, anchor string) Rule {
	return Rule{
		Name:   name,
		Anchor: regexp.MustCompile(anchor),
		Defaults: map[string]string{
			internal.FieldSupplier:  name,
			internal.FieldCategory:  string(internal.CategoryDiesel),
			internal.FieldUsageUnit: "L",
			internal.FieldCurrency:  "EUR",
		},
		Captures: []capture{capInvoice, capIssueDate, capFuelUsage, capAmount},
		Expected: fuelExpected,
	}
}

func freightRule(name, anchor string) Rule {
	return Rule{
		Name:   name,
		Anchor: regexp.MustCompile(anchor),
		Defaults: map[string]string{
			internal.FieldSupplier:  name,
			internal.FieldCategory:  string(internal.CategoryFreight),
			internal.FieldUsageUnit: "km",
			internal.FieldCurrency:  "EUR",
		},
		Captures: []capture{capInvoice, capIssueDate, capDistance, capWeight, capAmount},
		Expected: freightExpected,
	}
}

// Rules is the ordered supplier table. Order matters: the first rule
// whose anchor hits wins, so more specific brands come before generic
// ones.
func Rules() []Rule {
	naturgy := Rule{
		Name:   "Naturgy",
		Anchor: regexp.MustCompile(`(?i)\bNATURGY\b|\bGAS\s+NATURAL\s+FENOSA\b`),
		Defaults: map[string]string{
			internal.FieldSupplier: "Naturgy",
			internal.FieldCategory: string(internal.CategoryNaturalGas),
			internal.FieldCurrency: "EUR",
		},
		Captures: []capture{capInvoice, capIssueDate, capPeriod, capEnergyUsage, capAmount},
		Expected: energyExpected,
	}

	return []Rule{
		electricityRule("Iberdrola", `(?i)\bIBERDROLA\b`),
		electricityRule("Endesa", `(?i)\bENDESA\b`),
		naturgy,
		fuelRule("Repsol", `(?i)\bREPSOL\b`),
		fuelRule("Cepsa", `(?i)\bCEPSA\b`),
		fuelRule("Galp", `(?i)\bGALP\b`),
		fuelRule("Shell", `(?i)\bSHELL\b`),
		fuelRule("BP", `(?i)\bBP\s+(?:OIL|ESTACI[ÓO]N)\b|\bBP\b`),
		freightRule("DHL", `(?i)\bDHL\b`),
		freightRule("SEUR", `(?i)\bSEUR\b`),
		freightRule("MRW", `(?i)\bMRW\b`),
	}
}

// Fuel invoices rarely name the product near the anchor, so the
// category default is refined from keywords anywhere in the text.
var reGasoline = regexp.MustCompile(`(?i)gasolina|sin\s+plomo|95\s*E|98\s*E`)
var reDiesel = regexp.MustCompile(`(?i)di[ée]sel|gas[óo]leo`)

package recognize

import (
	"luma/internal"
)

var tabularExpected = []string{
	internal.FieldIssueDate, internal.FieldSupplier, internal.FieldCategory,
	internal.FieldUsageValue, internal.FieldUsageUnit, internal.FieldAmountTotal,
}

// recognizeCells wraps canonical tabular cells as extracted fields.
// The column mapper already did the naming work; here only the field
// accounting for confidence scoring is added.
func recognizeCells(cells map[string]string) internal.ExtractedFields {
	fields := make(map[string]string, len(cells))
	for k, v := range cells {
		fields[k] = v
	}

	found := make([]string, 0, len(fields))
	for _, f := range tabularExpected {
		if _, ok := fields[f]; ok {
			found = append(found, f)
		}
	}
	return internal.ExtractedFields{
		Fields:   fields,
		Rule:     "tabular",
		Found:    found,
		Expected: tabularExpected,
	}
}

package factors

import (
	"time"

	"luma/internal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func until(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

// Seed returns the built-in Spanish factor set used when no registry
// sync has run. Values follow the national inventory defaults; the
// electricity mix carries two vintages so period resolution has real
// windows to pick from. LPG is intentionally absent: those invoices
// surface a factor_not_found gap until the registry provides one.
func Seed() []internal.EmissionFactor {
	return []internal.EmissionFactor{
		{Region: "ES", Category: internal.CategoryElectricity, Scope: 2, Value: 0.250, Unit: "kWh", Source: "MITECO 2023", ValidFrom: date(2023, time.January, 1), ValidUntil: until(2024, time.January, 1)},
		{Region: "ES", Category: internal.CategoryElectricity, Scope: 2, Value: 0.231, Unit: "kWh", Source: "MITECO 2024", ValidFrom: date(2024, time.January, 1)},
		{Region: "ES", Category: internal.CategoryNaturalGas, Scope: 1, Value: 2.016, Unit: "m3", Source: "IPCC 2006", ValidFrom: date(2023, time.January, 1)},
		{Region: "ES", Category: internal.CategoryDiesel, Scope: 1, Value: 2.680, Unit: "L", Source: "MITECO 2024", ValidFrom: date(2023, time.January, 1)},
		{Region: "ES", Category: internal.CategoryGasoline, Scope: 1, Value: 2.310, Unit: "L", Source: "MITECO 2024", ValidFrom: date(2023, time.January, 1)},
		{Region: "ES", Category: internal.CategoryFuelOil, Scope: 1, Value: 3.174, Unit: "L", Source: "MITECO 2024", ValidFrom: date(2023, time.January, 1)},
		{Region: internal.RegionGlobal, Category: internal.CategoryElectricity, Scope: 2, Value: 0.436, Unit: "kWh", Source: "IEA world average", ValidFrom: date(2023, time.January, 1)},
		{Region: internal.RegionGlobal, Category: internal.CategoryNaturalGas, Scope: 1, Value: 0.202, Unit: "kWh", Source: "DEFRA 2024", ValidFrom: date(2023, time.January, 1)},
		{Region: internal.RegionGlobal, Category: internal.CategoryDiesel, Scope: 1, Value: 2.680, Unit: "L", Source: "DEFRA 2024", ValidFrom: date(2023, time.January, 1)},
		{Region: internal.RegionGlobal, Category: internal.CategoryGasoline, Scope: 1, Value: 2.310, Unit: "L", Source: "DEFRA 2024", ValidFrom: date(2023, time.January, 1)},
		{Region: internal.RegionGlobal, Category: internal.CategoryFreight, Scope: 3, Value: 0.062, Unit: "tkm", Source: "DEFRA 2024 road", ValidFrom: date(2023, time.January, 1)},
	}
}

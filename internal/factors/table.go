package factors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"luma/internal"
)

type Key struct {
	Region   string
	Category internal.Category
	Scope    int
}

// Table is an immutable snapshot of emission factors keyed by
// (region, category, scope). It is built once and injected into each
// engine invocation; the engine never mutates it.
type Table struct {
	byKey map[Key][]internal.EmissionFactor
}

// NewTable indexes a factor set. It rejects sets where two factors for
// the same key have overlapping validity windows, enforcing the
// at-most-one-current-factor invariant.
func NewTable(factors []internal.EmissionFactor) (*Table, error) {
	t := &Table{byKey: map[Key][]internal.EmissionFactor{}}
	for _, f := range factors {
		key := Key{Region: f.Region, Category: f.Category, Scope: f.Scope}
		t.byKey[key] = append(t.byKey[key], f)
	}

	for key, set := range t.byKey {
		sort.Slice(set, func(i, j int) bool { return set[i].ValidFrom.Before(set[j].ValidFrom) })
		for i := 0; i < len(set)-1; i++ {
			cur, next := set[i], set[i+1]
			if cur.ValidUntil == nil || cur.ValidUntil.After(next.ValidFrom) {
				return nil, fmt.Errorf("overlapping validity windows for %s/%s/scope%d at %s",
					key.Region, key.Category, key.Scope, next.ValidFrom.Format("2006-01-02"))
			}
		}
		t.byKey[key] = set
	}

	return t, nil
}

// Lookup returns all factor vintages for a key, oldest first.
func (t *Table) Lookup(region string, category internal.Category, scope int) []internal.EmissionFactor {
	return t.byKey[Key{Region: region, Category: category, Scope: scope}]
}

type Resolution struct {
	Factor internal.EmissionFactor
	Stale  bool // no window contained the period; nearest earlier vintage used
}

// Resolve picks the applicable factor for a record: the region-specific
// vintage whose [ValidFrom, ValidUntil) window contains the period
// start, falling back to the GLOBAL region, and degrading to the most
// recent vintage with ValidFrom <= period when no window matches. A nil
// period resolves to the latest vintage.
func (t *Table) Resolve(region string, category internal.Category, scope int, period *time.Time) (Resolution, bool) {
	for _, reg := range regionOrder(region) {
		candidates := t.Lookup(reg, category, scope)
		if len(candidates) == 0 {
			continue
		}

		if period == nil {
			return Resolution{Factor: candidates[len(candidates)-1]}, true
		}

		for _, f := range candidates {
			if f.ValidFrom.After(*period) {
				continue
			}
			if f.ValidUntil == nil || f.ValidUntil.After(*period) {
				return Resolution{Factor: f}, true
			}
		}

		// Graceful degradation: most recent vintage that started
		// before the period.
		var stale *internal.EmissionFactor
		for i := range candidates {
			if !candidates[i].ValidFrom.After(*period) {
				stale = &candidates[i]
			}
		}
		if stale != nil {
			return Resolution{Factor: *stale, Stale: true}, true
		}
	}

	return Resolution{}, false
}

func regionOrder(region string) []string {
	region = strings.TrimSpace(region)
	if region == "" || region == internal.RegionGlobal {
		return []string{internal.RegionGlobal}
	}
	return []string{region, internal.RegionGlobal}
}

// NormalizeUnit folds usage unit spellings to their canonical form so
// factor units and invoice units compare equal.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.ReplaceAll(u, "³", "3")
	switch u {
	case "kwh":
		return "kWh"
	case "mwh":
		return "MWh"
	case "m3":
		return "m3"
	case "l", "litros", "litres", "liters":
		return "L"
	case "t", "tn", "toneladas":
		return "t"
	case "kg":
		return "kg"
	case "tkm":
		return "tkm"
	case "km":
		return "km"
	default:
		return u
	}
}

type conversion struct{ from, to string }

// Known unit conversions. Gas volume to energy uses the Spanish average
// PCS of 11.63 kWh/m3.
var conversions = map[conversion]float64{
	{"m3", "kWh"}:  11.63,
	{"kWh", "m3"}:  1 / 11.63,
	{"MWh", "kWh"}: 1000,
	{"kWh", "MWh"}: 0.001,
	{"kg", "t"}:    0.001,
	{"t", "kg"}:    1000,
}

// Convert maps a usage value between units when a known conversion
// exists. Identity conversions always succeed.
func Convert(value float64, fromUnit, toUnit string) (float64, bool) {
	from := NormalizeUnit(fromUnit)
	to := NormalizeUnit(toUnit)
	if from == to {
		return value, true
	}
	if ratio, ok := conversions[conversion{from, to}]; ok {
		return value * ratio, true
	}
	return 0, false
}

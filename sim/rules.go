package sim

import (
	"math"
	"sort"
)

// === Derived-Variable Rules ===
//
// Derived quantities are pure functions of the trajectory prefix and
// the rule coefficients. They consume no randomness: re-deriving them
// from a stored trajectory reproduces the stored values exactly.

// Pension formula constants. Part of the architecture's identity: see
// Architecture.describe.
const (
	// TopIncomeYears is how many best earning years enter the pension
	// base. Careers shorter than this use every employment year.
	TopIncomeYears = 20

	// PensionDivisor converts the best-years average into the first
	// pension payment.
	PensionDivisor = 2.0
)

// Work intensity levels. The first employment year after a
// non-employment year counts as a re-entry year at half intensity.
const (
	IntensityFull    = 1.0
	IntensityReentry = 0.5
	IntensityNone    = 0.0
)

// PensionBase computes the first pension payment from a career's
// employment incomes: the mean of the TopIncomeYears best years,
// divided by PensionDivisor. A career with no employment income earns
// no pension.
func PensionBase(employmentIncomes []float64) float64 {
	if len(employmentIncomes) == 0 {
		return 0
	}
	top := make([]float64, len(employmentIncomes))
	copy(top, employmentIncomes)
	sort.Sort(sort.Reverse(sort.Float64Slice(top)))
	n := TopIncomeYears
	if len(top) < n {
		n = len(top)
	}
	sum := 0.0
	for _, v := range top[:n] {
		sum += v
	}
	return sum / float64(n) / PensionDivisor
}

// RevaluedPension compounds the pension base from the retirement year
// to the given year at the revaluation rate.
func RevaluedPension(base, rate float64, retirementYear, year int) float64 {
	if year < retirementYear {
		return 0
	}
	return base * math.Pow(1+rate, float64(year-retirementYear))
}

// ApplyDerived fills Pension and WorkIntensity on a trajectory whose
// states and incomes are already fixed. rows must be one individual's
// complete trajectory in year order: the pension base reads the whole
// employment history, so derivation over a suffix alone is undefined.
func ApplyDerived(rows []CareerRow, space *StateSpace, coeffs RuleCoefficients) {
	employed, _ := space.ByLabel("employed")
	retired, _ := space.ByLabel("retired")

	retirementYear := 0
	var incomes []float64
	for _, r := range rows {
		if r.State == employed {
			incomes = append(incomes, r.Income)
		}
		if r.State == retired && retirementYear == 0 {
			retirementYear = r.Year
		}
	}
	base := PensionBase(incomes)

	prev := StateID(0)
	for i := range rows {
		r := &rows[i]
		r.Pension = 0
		r.WorkIntensity = IntensityNone
		if r.State == retired {
			r.Pension = RevaluedPension(base, coeffs.PensionRevaluationRate, retirementYear, r.Year)
		}
		if r.State == employed {
			if i > 0 && prev == employed {
				r.WorkIntensity = IntensityFull
			} else {
				r.WorkIntensity = IntensityReentry
			}
		}
		prev = r.State
	}
}

package sim

import (
	"math"
	"math/rand"
)

// === Mortality Hazard ===

// HazardEta returns the log-hazard linear predictor for one
// individual-year:
//
//	eta = b0 + b1*(age - RefAge) + b2*(birthYear - RefCohort)/10
//
// The same predictor backs generation and likelihood code, so a curve
// recovered from data is directly comparable to the one that produced
// it.
func HazardEta(b0, b1, b2 float64, age, birthYear int) float64 {
	return b0 + b1*float64(age-RefAge) + b2*float64(birthYear-RefCohort)/10
}

// HazardFromEta maps the linear predictor to a yearly death probability
// through the complementary log-log link: q = 1 - exp(-exp(eta)).
// The result is a proper probability for any real eta.
func HazardFromEta(eta float64) float64 {
	return -math.Expm1(-math.Exp(eta))
}

// Hazard returns the yearly death probability for the given age and
// birth cohort under p.
func Hazard(p MortalityParams, age, birthYear int) float64 {
	b0, b1, b2 := p.Coefficients()
	return HazardFromEta(HazardEta(b0, b1, b2, age, birthYear))
}

// HazardTable caches yearly death probabilities for a cohort range.
// Lookups outside the cached range fall back to the closed form, so a
// table built for one birth schedule still answers for any cohort.
type HazardTable struct {
	params      MortalityParams
	startCohort int
	maxAge      int
	q           [][]float64
}

// BuildHazardTable precomputes q(age, cohort) for cohorts in
// [startCohort, endCohort] and ages 0..maxAge.
func BuildHazardTable(p MortalityParams, startCohort, endCohort, maxAge int) *HazardTable {
	t := &HazardTable{
		params:      p,
		startCohort: startCohort,
		maxAge:      maxAge,
		q:           make([][]float64, endCohort-startCohort+1),
	}
	for c := range t.q {
		row := make([]float64, maxAge+1)
		for a := 0; a <= maxAge; a++ {
			row[a] = Hazard(p, a, startCohort+c)
		}
		t.q[c] = row
	}
	return t
}

// Q returns the yearly death probability for an individual of the given
// birth year at the given age.
func (t *HazardTable) Q(birthYear, age int) float64 {
	c := birthYear - t.startCohort
	if c >= 0 && c < len(t.q) && age >= 0 && age <= t.maxAge {
		return t.q[c][age]
	}
	return Hazard(t.params, age, birthYear)
}

// SampleDeathYear walks the hazard from age zero and returns the death
// year. Death is certain at maxAge: no lifespan exceeds it.
func SampleDeathYear(rng *rand.Rand, t *HazardTable, birthYear, maxAge int) int {
	for age := 0; age < maxAge; age++ {
		if rng.Float64() < t.Q(birthYear, age) {
			return birthYear + age
		}
	}
	return birthYear + maxAge
}

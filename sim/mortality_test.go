package sim

import (
	"math"
	"math/rand"
	"testing"
)

func refMortality() MortalityParams {
	return MortalityParams{Base: 5.0e-4, AgeSlope: 0.08, CohortSlope: -0.10}
}

func TestHazard_ProperProbability(t *testing.T) {
	// BDD: The cloglog link yields a probability for any predictor value
	for _, eta := range []float64{-50, -5, 0, 2, 5, 50} {
		q := HazardFromEta(eta)
		if q < 0 || q > 1 {
			t.Errorf("HazardFromEta(%g) = %g outside [0, 1]", eta, q)
		}
	}
	if q := HazardFromEta(50); q != 1 {
		t.Errorf("extreme predictor should saturate at 1, got %g", q)
	}
}

func TestHazard_MonotoneInAge(t *testing.T) {
	p := refMortality()
	prev := -1.0
	for age := 0; age <= 95; age++ {
		q := Hazard(p, age, 1950)
		if q <= prev {
			t.Fatalf("hazard not increasing at age %d: %g <= %g", age, q, prev)
		}
		prev = q
	}
}

func TestHazard_CohortSlopeSign(t *testing.T) {
	// BDD: A negative cohort slope means later cohorts face lower hazards
	p := refMortality()
	if Hazard(p, 60, 2000) >= Hazard(p, 60, 1950) {
		t.Error("later cohort should have lower hazard under negative cohort slope")
	}
}

func TestHazard_ReferencePoint(t *testing.T) {
	// At the reference age and cohort the hazard is 1-exp(-Base).
	p := refMortality()
	want := -math.Expm1(-p.Base)
	got := Hazard(p, RefAge, RefCohort)
	if math.Abs(got-want) > 1e-15 {
		t.Errorf("hazard at reference point = %g, want %g", got, want)
	}
}

func TestHazardTable_MatchesClosedForm(t *testing.T) {
	p := refMortality()
	table := BuildHazardTable(p, 1950, 2000, 95)
	for _, cohort := range []int{1950, 1975, 2000} {
		for _, age := range []int{0, 25, 60, 95} {
			if got, want := table.Q(cohort, age), Hazard(p, age, cohort); got != want {
				t.Errorf("Q(%d, %d) = %g, want %g", cohort, age, got, want)
			}
		}
	}
}

func TestHazardTable_FallbackOutsideRange(t *testing.T) {
	p := refMortality()
	table := BuildHazardTable(p, 1950, 2000, 95)
	if got, want := table.Q(1900, 50), Hazard(p, 50, 1900); got != want {
		t.Errorf("out-of-range cohort: Q = %g, want closed form %g", got, want)
	}
	if got, want := table.Q(1950, 120), Hazard(p, 120, 1950); got != want {
		t.Errorf("out-of-range age: Q = %g, want closed form %g", got, want)
	}
}

func TestSampleDeathYear_Bounds(t *testing.T) {
	p := refMortality()
	table := BuildHazardTable(p, 1950, 2000, 95)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		death := SampleDeathYear(rng, table, 1950, 95)
		if death < 1950 || death > 1950+95 {
			t.Fatalf("death year %d outside [birth, birth+maxAge]", death)
		}
	}
}

func TestSampleDeathYear_CertainAtMaxAge(t *testing.T) {
	// BDD: A zero-hazard table still ends every lifespan at the cap
	p := MortalityParams{Base: 1e-300, AgeSlope: 0, CohortSlope: 0}
	table := BuildHazardTable(p, 1950, 1950, 80)
	rng := rand.New(rand.NewSource(1))
	if death := SampleDeathYear(rng, table, 1950, 80); death != 2030 {
		t.Errorf("death year = %d, want forced 2030", death)
	}
}

func TestSampleDeathYear_Deterministic(t *testing.T) {
	p := refMortality()
	table := BuildHazardTable(p, 1950, 2000, 95)
	a := SampleDeathYear(rand.New(rand.NewSource(7)), table, 1980, 95)
	b := SampleDeathYear(rand.New(rand.NewSource(7)), table, 1980, 95)
	if a != b {
		t.Errorf("same seed produced %d and %d", a, b)
	}
}

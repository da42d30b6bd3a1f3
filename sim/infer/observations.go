package infer

import (
	"fmt"
	"math"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// === Observations ===

// Observations is the estimator-side view of a dataset: censored
// individuals, career rows, and the support metadata needed to read
// them. It carries no parameters and no uncensored death years.
type Observations struct {
	Individuals []sim.Individual
	Careers     []sim.CareerRow
	Horizon     int

	// MaxAge is the structural age cap from the dataset header. Deaths
	// at exactly MaxAge are forced rather than drawn, so the hazard
	// block treats them as censoring. Zero means unknown.
	MaxAge int
}

// FromObservable adapts censored tables for estimation.
func FromObservable(obs sim.ObservableTables, maxAge int) Observations {
	return Observations{
		Individuals: obs.Individuals,
		Careers:     obs.Careers,
		Horizon:     obs.Horizon,
		MaxAge:      maxAge,
	}
}

// === Sufficient statistics ===

// transitionCounts tallies observed year-to-year moves per regime row.
// Counts are indexed [from][to] over the regime's row and column state
// sets, in the same label order the conjugate update reports them.
type transitionCounts struct {
	// rows[regime][fromLabel][toLabel]
	rows map[string]map[string]map[string]float64
}

// countTransitions walks consecutive career rows of each individual and
// attributes each pair to the regime of the destination year, mirroring
// how the generator draws: the row for year y is drawn from the state
// at y-1 under the regime of the age reached in y. Deterministic
// regimes (childhood, forced retirement) and moves into the terminal
// state carry no row information and are skipped.
func countTransitions(arch *sim.Architecture, exo sim.Exogenous, careers []sim.CareerRow) transitionCounts {
	tc := transitionCounts{rows: map[string]map[string]map[string]float64{
		sim.RegimePreRetirement: make(map[string]map[string]float64),
		sim.RegimePostStatutory: make(map[string]map[string]float64),
	}}
	terminal := arch.States.Terminal()
	byID := careersByIndividual(careers)
	for _, rows := range byID {
		for i := 1; i < len(rows); i++ {
			prev, cur := rows[i-1], rows[i]
			if cur.Year != prev.Year+1 {
				continue
			}
			if cur.State == terminal {
				continue
			}
			if arch.States.IsAbsorbing(prev.State) {
				continue
			}
			birth := cur.Year - cur.Age
			regime := arch.Regime(cur.Age, exo.StatutoryRetirementAge(birth))
			if regime != sim.RegimePreRetirement && regime != sim.RegimePostStatutory {
				continue
			}
			from := arch.States.Label(prev.State)
			to := arch.States.Label(cur.State)
			row := tc.rows[regime][from]
			if row == nil {
				row = make(map[string]float64)
				tc.rows[regime][from] = row
			}
			row[to]++
		}
	}
	return tc
}

// careersByIndividual groups rows by individual, preserving year order.
// Rows arrive year-ordered per individual from the dataset reader.
func careersByIndividual(careers []sim.CareerRow) map[int64][]sim.CareerRow {
	byID := make(map[int64][]sim.CareerRow)
	for _, r := range careers {
		byID[r.ID] = append(byID[r.ID], r)
	}
	return byID
}

// incomeMoments accumulates the cross-products of the log-income
// regression without materializing the design matrix. The design has
// one dummy per job type followed by the age term, matching the mean
// used at generation time.
type incomeMoments struct {
	p   int
	xtx []float64 // p*p, row major
	xty []float64
	yty float64
	n   int
}

func collectIncomeMoments(arch *sim.Architecture, careers []sim.CareerRow) incomeMoments {
	jobIndex := make(map[string]int, len(arch.JobTypes))
	for i, jt := range arch.JobTypes {
		jobIndex[jt] = i
	}
	p := len(arch.JobTypes) + 1
	m := incomeMoments{p: p, xtx: make([]float64, p*p), xty: make([]float64, p)}
	x := make([]float64, p)
	for _, r := range careers {
		if r.Income <= 0 {
			continue
		}
		j, ok := jobIndex[r.JobType]
		if !ok {
			continue
		}
		for i := range x {
			x[i] = 0
		}
		x[j] = 1
		x[p-1] = sim.AgeTerm(r.Age)
		y := math.Log(r.Income)
		for a := 0; a < p; a++ {
			if x[a] == 0 {
				continue
			}
			m.xty[a] += x[a] * y
			for b := 0; b < p; b++ {
				m.xtx[a*p+b] += x[a] * x[b]
			}
		}
		m.yty += y * y
		m.n++
	}
	return m
}

// countJobTypes counts each individual's fixed trait once.
func countJobTypes(arch *sim.Architecture, careers []sim.CareerRow) map[string]float64 {
	counts := make(map[string]float64, len(arch.JobTypes))
	seen := make(map[int64]bool)
	for _, r := range careers {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		counts[r.JobType]++
	}
	return counts
}

// HazardCell is one (age, cohort) exposure cell of the mortality
// likelihood: Survivals individuals drew this cell and lived, Deaths
// drew it and died. Cells are the block's sufficient statistics, so
// the approximate strategies iterate over a few thousand cells rather
// than the full population.
type HazardCell struct {
	Age       int
	Cohort    int
	Deaths    float64
	Survivals float64
}

// collectHazardCells reconstructs per-age exposure from death years.
// An observed death at age A contributes survivals at ages 0..A-1 and
// a death at A. A censored individual contributes survivals through
// the horizon. A death at the structural cap is forced, not drawn, so
// it contributes survivals only.
func collectHazardCells(obs Observations) []HazardCell {
	type key struct{ age, cohort int }
	acc := make(map[key]*HazardCell)
	bump := func(age, cohort int, death bool) {
		k := key{age, cohort}
		c := acc[k]
		if c == nil {
			c = &HazardCell{Age: age, Cohort: cohort}
			acc[k] = c
		}
		if death {
			c.Deaths++
		} else {
			c.Survivals++
		}
	}
	for _, ind := range obs.Individuals {
		switch {
		case ind.DeathYear == 0:
			for age := 0; age <= obs.Horizon-ind.BirthYear; age++ {
				bump(age, ind.BirthYear, false)
			}
		case obs.MaxAge > 0 && ind.DeathYear-ind.BirthYear >= obs.MaxAge:
			for age := 0; age < obs.MaxAge; age++ {
				bump(age, ind.BirthYear, false)
			}
		default:
			deathAge := ind.DeathYear - ind.BirthYear
			for age := 0; age < deathAge; age++ {
				bump(age, ind.BirthYear, false)
			}
			bump(deathAge, ind.BirthYear, true)
		}
	}
	cells := make([]HazardCell, 0, len(acc))
	for _, c := range acc {
		cells = append(cells, *c)
	}
	return cells
}

// pensionRatios collects year-over-year pension growth factors from
// consecutive retirement rows. Under annual revaluation every ratio
// equals 1+rate exactly, which identifies the rate without touching
// hidden configuration.
func pensionRatios(arch *sim.Architecture, careers []sim.CareerRow) []float64 {
	var ratios []float64
	byID := careersByIndividual(careers)
	for _, rows := range byID {
		for i := 1; i < len(rows); i++ {
			prev, cur := rows[i-1], rows[i]
			if cur.Year != prev.Year+1 {
				continue
			}
			if prev.Pension <= 0 || cur.Pension <= 0 {
				continue
			}
			ratios = append(ratios, cur.Pension/prev.Pension)
		}
	}
	return ratios
}

// yearRange reports the span of observed career years.
func yearRange(careers []sim.CareerRow) (lo, hi int, ok bool) {
	if len(careers) == 0 {
		return 0, 0, false
	}
	lo, hi = careers[0].Year, careers[0].Year
	for _, r := range careers {
		if r.Year < lo {
			lo = r.Year
		}
		if r.Year > hi {
			hi = r.Year
		}
	}
	return lo, hi, true
}

// validateObservations rejects structurally unusable inputs early.
func validateObservations(obs Observations) error {
	if len(obs.Individuals) == 0 {
		return fmt.Errorf("observations contain no individuals")
	}
	if len(obs.Careers) == 0 {
		return fmt.Errorf("observations contain no career rows")
	}
	if obs.Horizon <= 0 {
		return fmt.Errorf("observations carry no horizon year")
	}
	return nil
}

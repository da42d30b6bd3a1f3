package sim

import (
	"fmt"
	"math/rand"
)

// === Transition Model ===

// TransitionModel is the compiled career-layer state machine: base
// matrices per regime flattened to dense ID-indexed rows, with the
// exogenous environment applied at draw time.
//
// The model never decides death. Layer one fixes the death year before
// any career draw, and the walk stops there.
type TransitionModel struct {
	arch *Architecture
	exo  Exogenous

	pre  [][]float64
	post [][]float64

	inactive StateID
	employed StateID
	retired  StateID
}

// NewTransitionModel compiles params against an architecture. Params
// must already be validated.
func NewTransitionModel(arch *Architecture, p *Params, exo Exogenous) (*TransitionModel, error) {
	inactive, ok := arch.States.ByLabel("inactive")
	if !ok {
		return nil, fmt.Errorf("state space has no %q state", "inactive")
	}
	employed, ok := arch.States.ByLabel("employed")
	if !ok {
		return nil, fmt.Errorf("state space has no %q state", "employed")
	}
	retired, ok := arch.States.ByLabel("retired")
	if !ok {
		return nil, fmt.Errorf("state space has no %q state", "retired")
	}
	if exo == nil {
		exo = NewNeutralExogenous()
	}
	m := &TransitionModel{
		arch:     arch,
		exo:      exo,
		pre:      compileRegime(arch.States, p.Transitions.PreRetirement),
		post:     compileRegime(arch.States, p.Transitions.PostStatutory),
		inactive: inactive,
		employed: employed,
		retired:  retired,
	}
	return m, nil
}

// compileRegime turns label-keyed rows into a dense [from][to] table
// over the full state ID range. States without a row keep a zero row.
func compileRegime(space *StateSpace, rows map[string]map[string]float64) [][]float64 {
	n := space.Len()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for fromLabel, row := range rows {
		from, ok := space.ByLabel(fromLabel)
		if !ok {
			continue
		}
		for toLabel, prob := range row {
			if to, ok := space.ByLabel(toLabel); ok {
				out[from][to] = prob
			}
		}
	}
	return out
}

// Probabilities returns the full next-state distribution for an
// individual in state cur at the given age and birth year. The slice
// is indexed by StateID and freshly allocated.
func (m *TransitionModel) Probabilities(cur StateID, age, birthYear int) []float64 {
	n := m.arch.States.Len()
	out := make([]float64, n)
	statAge := m.exo.StatutoryRetirementAge(birthYear)

	switch m.arch.Regime(age, statAge) {
	case RegimeChildhood:
		out[cur] = 1
		return out
	case RegimeForcedRetirement:
		if m.arch.States.IsAbsorbing(cur) {
			out[cur] = 1
		} else {
			out[m.retired] = 1
		}
		return out
	}

	if m.arch.States.IsAbsorbing(cur) {
		out[cur] = 1
		return out
	}

	table := m.pre
	if m.arch.Regime(age, statAge) == RegimePostStatutory {
		table = m.post
	}
	copy(out, table[cur])

	if cur == m.employed {
		m.applyUnemployment(out, birthYear+age)
	}
	return out
}

// applyUnemployment scales the employed-to-inactive probability by the
// year's unemployment index, shifting the difference against the
// stay-employed mass. The retirement entry is untouched, and the row
// stays stochastic: the exit probability can grow only as far as the
// stay mass allows.
func (m *TransitionModel) applyUnemployment(row []float64, year int) {
	u := m.exo.UnemploymentIndex(year)
	if u == 1 {
		return
	}
	if u < 0 {
		u = 0
	}
	exit := row[m.inactive]
	stay := row[m.employed]
	scaled := u * exit
	if scaled > exit+stay {
		scaled = exit + stay
	}
	row[m.inactive] = scaled
	row[m.employed] = stay - (scaled - exit)
}

// Next draws the state for the following year.
func (m *TransitionModel) Next(rng *rand.Rand, cur StateID, age, birthYear int) StateID {
	probs := m.Probabilities(cur, age, birthYear)
	u := rng.Float64()
	acc := 0.0
	last := cur
	for id, p := range probs {
		if p <= 0 {
			continue
		}
		acc += p
		last = StateID(id)
		if u < acc {
			return last
		}
	}
	// Rounding can leave acc marginally below 1; the final positive
	// entry takes the remainder.
	return last
}

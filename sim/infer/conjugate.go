package infer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// Priors for the conjugate blocks. Flat Dirichlet priors on rows and
// shares; a weakly informative Normal-inverse-gamma on the income
// regression; a tight zero-centered normal on the revaluation rate for
// when the data cannot identify it.
const (
	priorRowAlpha     = 1.0
	priorCoefVariance = 100.0
	priorVarShape     = 2.0
	priorVarRate      = 0.5
	priorRevalSD      = 0.02
)

// === Transition rows ===

// fitTransitions turns per-regime move counts into Dirichlet rows.
// Destination columns follow the regime's reachable set in state-space
// order, so rows line up with the generator's matrices column for
// column.
func fitTransitions(arch *sim.Architecture, counts transitionCounts) TransitionPosterior {
	cols := func(ids []sim.StateID) []string {
		labels := make([]string, len(ids))
		for i, id := range ids {
			labels[i] = arch.States.Label(id)
		}
		return labels
	}
	regimeCols := map[string][]string{
		sim.RegimePreRetirement: cols(arch.States.Ordinary()),
		sim.RegimePostStatutory: cols(arch.States.Live()),
	}
	tp := TransitionPosterior{Regimes: make(map[string]map[string]DirichletRow, len(regimeCols))}
	for regime, labels := range regimeCols {
		rows := make(map[string]DirichletRow)
		for _, from := range arch.States.Ordinary() {
			fromLabel := arch.States.Label(from)
			alpha := make([]float64, len(labels))
			for i, to := range labels {
				alpha[i] = priorRowAlpha + counts.rows[regime][fromLabel][to]
			}
			rows[fromLabel] = DirichletRow{Labels: labels, Alpha: alpha}
		}
		tp.Regimes[regime] = rows
	}
	return tp
}

// transitionMarginals flattens the row posteriors in the canonical
// parameter order.
func transitionMarginals(arch *sim.Architecture, tp TransitionPosterior, level float64) []Marginal {
	var out []Marginal
	appendRegime := func(regime string) {
		for _, from := range arch.States.Ordinary() {
			row := tp.Regimes[regime][arch.States.Label(from)]
			alpha0 := 0.0
			for _, a := range row.Alpha {
				alpha0 += a
			}
			for i, to := range row.Labels {
				name := "transition." + regime + "." + arch.States.Label(from) + "." + to
				out = append(out, betaMarginal(name, row.Alpha[i], alpha0, level))
			}
		}
	}
	appendRegime(sim.RegimePreRetirement)
	appendRegime(sim.RegimePostStatutory)
	return out
}

// === Income regression ===

// fitIncome computes the Normal-inverse-gamma posterior of the
// log-income regression from accumulated cross-products. With no
// employment rows the posterior equals the prior.
func fitIncome(arch *sim.Architecture, m incomeMoments) (IncomePosterior, error) {
	p := m.p
	design := make([]string, 0, p)
	design = append(design, arch.JobTypes...)
	design = append(design, "age_term")

	// Posterior precision is the prior precision plus X'X; the prior
	// keeps it positive definite even with empty or degenerate data.
	prec := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := m.xtx[i*p+j]
			if i == j {
				v += 1 / priorCoefVariance
			}
			prec.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(prec); !ok {
		return IncomePosterior{}, fmt.Errorf("income precision matrix is not positive definite")
	}
	mean := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(mean, mat.NewVecDense(p, m.xty)); err != nil {
		return IncomePosterior{}, err
	}
	scale := mat.NewSymDense(p, nil)
	if err := chol.InverseTo(scale); err != nil {
		return IncomePosterior{}, err
	}

	fitTerm := 0.0
	for i := 0; i < p; i++ {
		fitTerm += mean.AtVec(i) * m.xty[i]
	}
	out := IncomePosterior{
		Design: design,
		Mean:   make([]float64, p),
		Scale:  make([][]float64, p),
		Shape:  priorVarShape + float64(m.n)/2,
		Rate:   priorVarRate + (m.yty-fitTerm)/2,
		Rows:   m.n,
	}
	for i := 0; i < p; i++ {
		out.Mean[i] = mean.AtVec(i)
		out.Scale[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			out.Scale[i][j] = scale.At(i, j)
		}
	}
	return out, nil
}

// incomeMarginals summarizes the regression coefficients as Student's t
// marginals and the dispersion as the square root of the
// inverse-gamma variance.
func incomeMarginals(ip IncomePosterior, level float64) []Marginal {
	var out []Marginal
	nu := 2 * ip.Shape
	for i, name := range ip.Design {
		scale := 0.0
		if ip.Shape > 0 {
			scale = math.Sqrt(ip.Rate / ip.Shape * ip.Scale[i][i])
		}
		full := "income.log_level." + name
		if i == len(ip.Design)-1 {
			full = "income.age_slope"
		}
		out = append(out, tMarginal(full, ip.Mean[i], scale, nu, level))
	}
	out = append(out, sigmaMarginal("income.log_sigma", ip.Shape, ip.Rate, level))
	return out
}

// === Job mix ===

// fitJobMix builds the Dirichlet posterior of the per-individual trait
// shares in architecture vocabulary order.
func fitJobMix(arch *sim.Architecture, counts map[string]float64) DirichletRow {
	row := DirichletRow{
		Labels: append([]string(nil), arch.JobTypes...),
		Alpha:  make([]float64, len(arch.JobTypes)),
	}
	for i, jt := range arch.JobTypes {
		row.Alpha[i] = priorRowAlpha + counts[jt]
	}
	return row
}

func jobMixMarginals(row DirichletRow, level float64) []Marginal {
	alpha0 := 0.0
	for _, a := range row.Alpha {
		alpha0 += a
	}
	out := make([]Marginal, 0, len(row.Labels))
	for i, jt := range row.Labels {
		out = append(out, betaMarginal("job_mix."+jt, row.Alpha[i], alpha0, level))
	}
	return out
}

// === Revaluation rate ===

// fitRules recovers the pension revaluation rate from observed growth
// ratios. The rule is deterministic, so any consecutive retirement pair
// pins the rate to float precision; the posterior spread reflects the
// spread of the observed ratios. With no pairs at all the rate is not
// identified and the prior is returned flagged.
func fitRules(ratios []float64) RulesPosterior {
	if len(ratios) == 0 {
		return RulesPosterior{
			RevaluationMean: 0,
			RevaluationSD:   priorRevalSD,
			RatioPairs:      0,
			Identified:      false,
		}
	}
	mean := 0.0
	for _, r := range ratios {
		mean += r - 1
	}
	mean /= float64(len(ratios))
	ss := 0.0
	for _, r := range ratios {
		d := (r - 1) - mean
		ss += d * d
	}
	sd := 0.0
	if len(ratios) > 1 {
		sd = math.Sqrt(ss / float64(len(ratios)-1) / float64(len(ratios)))
	}
	if sd < 1e-12 {
		sd = 1e-12
	}
	return RulesPosterior{
		RevaluationMean: mean,
		RevaluationSD:   sd,
		RatioPairs:      len(ratios),
		Identified:      true,
	}
}

func rulesMarginal(rp RulesPosterior, level float64) Marginal {
	return normalMarginal("rules.pension_revaluation_rate", rp.RevaluationMean, rp.RevaluationSD, level)
}

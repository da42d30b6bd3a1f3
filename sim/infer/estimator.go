package infer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
	"github.com/lifecourse-sim/lifecourse-sim/sim/access"
)

// === Strategies ===

// Strategy approximates the posterior of the mortality block, the one
// block without a closed form. Implementations must honor the context
// and budget in Options and report non-convergence through Diagnostics
// rather than an error.
type Strategy interface {
	Name() string
	Fit(ctx context.Context, cells []HazardCell, opts Options) (MortalityPosterior, Diagnostics)
}

const (
	// StrategyAuto tries the Laplace approximation and falls back to
	// the Metropolis chain if the mode search fails.
	StrategyAuto = "auto"

	// StrategyLaplace is a Gaussian approximation at the posterior mode.
	StrategyLaplace = "laplace"

	// StrategyMetropolis samples with a random-walk chain.
	StrategyMetropolis = "metropolis"
)

// Default iteration budgets per strategy.
const (
	defaultLaplaceIterations    = 200
	defaultMetropolisIterations = 20000
)

// NewStrategy returns the named concrete strategy. The "auto" policy
// lives in Fit, which needs to chain two strategies.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case StrategyLaplace:
		return laplaceStrategy{}, nil
	case StrategyMetropolis:
		return metropolisStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown estimation strategy %q (valid: %s, %s, %s)",
			name, StrategyAuto, StrategyLaplace, StrategyMetropolis)
	}
}

// === Options ===

// Budget bounds what an approximate strategy may spend. Zero fields
// mean the strategy default for iterations and no wall-clock cap.
type Budget struct {
	MaxIterations int
	MaxDuration   time.Duration
}

func (b Budget) withDefaults(iterations int) Budget {
	if b.MaxIterations <= 0 {
		b.MaxIterations = iterations
	}
	return b
}

// Options steer a fit.
type Options struct {
	// Strategy names the mortality-block approximation. Default auto.
	Strategy string

	// Budget bounds the approximate block.
	Budget Budget

	// Level is the credible level of reported intervals. Default 0.9.
	Level float64

	// Seed drives the sampling strategies. Estimation with the same
	// observations, options, and seed is reproducible.
	Seed int64

	// ScenarioID records which environment the observations were
	// generated under. Metadata only.
	ScenarioID string
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyAuto
	}
	if o.Level <= 0 || o.Level >= 1 {
		o.Level = 0.9
	}
	return o
}

// === Fit ===

// Fit estimates population parameters through an estimator view: the
// architecture and the censored tables are all it can reach.
func Fit(ctx context.Context, view access.EstimatorView, exo sim.Exogenous, opts Options) (*Posterior, error) {
	return FitObservations(ctx, view.Architecture(), exo, FromObservable(view.Observable(), 0), opts)
}

// FitObservations estimates population parameters from censored
// observations. Conjugate blocks are exact; the mortality block runs
// under the configured strategy and budget. Non-convergence and
// non-identifiability surface as diagnostics on the returned artifact,
// never as errors.
func FitObservations(ctx context.Context, arch *sim.Architecture, exo sim.Exogenous, obs Observations, opts Options) (*Posterior, error) {
	opts = opts.withDefaults()
	if err := validateObservations(obs); err != nil {
		return nil, err
	}
	var strat Strategy
	if opts.Strategy != StrategyAuto {
		var err error
		if strat, err = NewStrategy(opts.Strategy); err != nil {
			return nil, err
		}
	}
	if exo == nil {
		exo = sim.NewNeutralExogenous()
	}
	scope := beginResourceScope(defaultHeapSampleInterval)
	measured := false
	defer func() {
		if !measured {
			scope.Finish()
		}
	}()
	logrus.Infof("Estimation started: %d individuals, %d career rows, strategy=%s",
		len(obs.Individuals), len(obs.Careers), opts.Strategy)

	post := &Posterior{
		ID:             newPosteriorID(),
		ArchitectureID: arch.ID(),
		ScenarioID:     opts.ScenarioID,
		Level:          opts.Level,
		Individuals:    len(obs.Individuals),
		CareerRows:     len(obs.Careers),
	}

	var blockWarnings []string
	post.Transitions = fitTransitions(arch, countTransitions(arch, exo, obs.Careers))
	if lo, hi, ok := yearRange(obs.Careers); ok && !neutralUnemployment(exo, lo, hi) {
		blockWarnings = append(blockWarnings,
			"unemployment index is non-neutral over the observed years; employment rows estimate effective rates")
	}

	income, err := fitIncome(arch, collectIncomeMoments(arch, obs.Careers))
	if err != nil {
		return nil, fmt.Errorf("income block: %w", err)
	}
	post.Income = income
	if income.Rows == 0 {
		blockWarnings = append(blockWarnings, "no employment income observed; income block stays at its prior")
	}

	post.JobMix = fitJobMix(arch, countJobTypes(arch, obs.Careers))
	post.Rules = fitRules(pensionRatios(arch, obs.Careers))
	if !post.Rules.Identified {
		blockWarnings = append(blockWarnings,
			"numerical non-identifiability: no consecutive pension observations; revaluation rate stays at its prior")
	}

	cells := collectHazardCells(obs)
	var diag Diagnostics
	if strat != nil {
		post.Strategy = strat.Name()
		post.Mortality, diag = strat.Fit(ctx, cells, opts)
	} else {
		post.Strategy = StrategyLaplace
		post.Mortality, diag = laplaceStrategy{}.Fit(ctx, cells, opts)
		if !diag.Converged && ctx.Err() == nil {
			diag.Warn("laplace approximation did not converge; retrying with %s", StrategyMetropolis)
			carried := diag.Warnings
			post.Mortality, diag = metropolisStrategy{}.Fit(ctx, cells, opts)
			diag.Warnings = append(carried, diag.Warnings...)
			post.Strategy = StrategyMetropolis
		}
	}
	diag.Warnings = append(blockWarnings, diag.Warnings...)
	post.Diagnostics = diag

	ms := transitionMarginals(arch, post.Transitions, opts.Level)
	ms = append(ms, mortalityMarginals(post.Mortality, opts.Level)...)
	ms = append(ms, incomeMarginals(post.Income, opts.Level)...)
	ms = append(ms, jobMixMarginals(post.JobMix, opts.Level)...)
	ms = append(ms, rulesMarginal(post.Rules, opts.Level))
	post.Marginals = ms

	post.Resources = scope.Finish()
	measured = true
	logrus.Infof("Estimation finished: strategy=%s converged=%v iterations=%d wall=%s peakHeap=%.1fMB",
		post.Strategy, diag.Converged, diag.Iterations, post.Resources.WallTime.Round(time.Millisecond),
		float64(post.Resources.PeakHeapBytes)/(1<<20))
	return post, nil
}

func neutralUnemployment(exo sim.Exogenous, lo, hi int) bool {
	for y := lo; y <= hi; y++ {
		if exo.UnemploymentIndex(y) != 1 {
			return false
		}
	}
	return true
}

// mortalityMarginals reports the hazard block on the same scale as the
// parameter bundle: the base through the exp transform, slopes as-is.
// Sampling strategies summarize their draws; Gaussian strategies use
// exact transforms of the normal marginals.
func mortalityMarginals(mp MortalityPosterior, level float64) []Marginal {
	if len(mp.Samples) > 0 {
		base := make([]float64, len(mp.Samples))
		age := make([]float64, len(mp.Samples))
		cohort := make([]float64, len(mp.Samples))
		for i, draw := range mp.Samples {
			base[i] = math.Exp(draw[0])
			age[i] = draw[1]
			cohort[i] = draw[2]
		}
		return []Marginal{
			empiricalMarginal("mortality.base", base, level),
			empiricalMarginal("mortality.age_slope", age, level),
			empiricalMarginal("mortality.cohort_slope", cohort, level),
		}
	}
	sd := func(i int) float64 { return math.Sqrt(math.Max(mp.Cov[i][i], 0)) }
	return []Marginal{
		logNormalMarginal("mortality.base", mp.Mean[0], sd(0), level),
		normalMarginal("mortality.age_slope", mp.Mean[1], sd(1), level),
		normalMarginal("mortality.cohort_slope", mp.Mean[2], sd(2), level),
	}
}

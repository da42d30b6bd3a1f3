package infer

import (
	"context"
	"math"
	randv2 "math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat"
)

// === Random-walk Metropolis ===

// metropolisStrategy samples the mortality block with a random-walk
// Metropolis chain. It costs more than the Laplace approximation but
// makes no Gaussian assumption, which is what the automatic strategy
// falls back to when the mode search fails.
type metropolisStrategy struct{}

func (metropolisStrategy) Name() string { return StrategyMetropolis }

// maxKeptSamples caps the thinned draws stored in the artifact.
const maxKeptSamples = 1000

// mhStreamSalt separates the chain's random stream from any other
// consumer of the same seed.
const mhStreamSalt = 0x6d682d636861696e

func (metropolisStrategy) Fit(ctx context.Context, cells []HazardCell, opts Options) (MortalityPosterior, Diagnostics) {
	model := newHazardModel(cells)
	budget := opts.Budget.withDefaults(defaultMetropolisIterations)

	// Warm start at (or near) the mode with curvature-scaled steps.
	warm, _ := climbToMode(ctx, model, Budget{MaxIterations: 50, MaxDuration: budget.MaxDuration})
	scales := []float64{0.1, 0.01, 0.05}
	if cov, ok := model.covarianceAt(warm); ok {
		for i := range scales {
			if v := cov.At(i, i); v > 0 {
				scales[i] = 2.4 / math.Sqrt(float64(model.dim())) * math.Sqrt(v)
			}
		}
	}

	rng := randv2.New(randv2.NewPCG(uint64(opts.Seed), mhStreamSalt))
	var diag Diagnostics
	var deadline time.Time
	if budget.MaxDuration > 0 {
		deadline = time.Now().Add(budget.MaxDuration)
	}

	iters := budget.MaxIterations
	burn := iters / 5
	keepEvery := (iters - burn) / maxKeptSamples
	if keepEvery < 1 {
		keepEvery = 1
	}

	cur := append([]float64(nil), warm...)
	curLP := model.logPosterior(cur)
	cand := make([]float64, len(cur))
	scale := 1.0
	var kept [][]float64
	accepted, counted := 0, 0
	windowAccepted := 0

	for iter := 1; iter <= iters; iter++ {
		diag.Iterations = iter
		if err := ctx.Err(); err != nil {
			diag.Warn("chain stopped early: %v", err)
			break
		}
		if !deadline.IsZero() && iter%256 == 0 && time.Now().After(deadline) {
			diag.Warn("chain exhausted its %s budget", budget.MaxDuration)
			break
		}

		for i := range cand {
			cand[i] = cur[i] + scale*scales[i]*rng.NormFloat64()
		}
		candLP := model.logPosterior(cand)
		if candLP >= curLP || rng.Float64() < math.Exp(candLP-curLP) {
			copy(cur, cand)
			curLP = candLP
			windowAccepted++
			if iter > burn {
				accepted++
			}
		}
		if iter > burn {
			counted++
			if (iter-burn)%keepEvery == 0 {
				kept = append(kept, append([]float64(nil), cur...))
			}
		} else if iter%50 == 0 {
			// Tune the global step during burn-in toward a random-walk
			// acceptance rate, then freeze.
			rate := float64(windowAccepted) / 50
			scale *= math.Exp(rate - 0.3)
			windowAccepted = 0
		}
	}

	if counted > 0 {
		diag.AcceptanceRate = float64(accepted) / float64(counted)
	}
	if len(kept) < 10 {
		diag.Converged = false
		diag.Warn("chain kept %d draws; falling back to curvature at the warm start", len(kept))
		post := MortalityPosterior{Mean: warm}
		if cov, ok := model.covarianceAt(warm); ok {
			post.Cov = symToRows(cov)
		} else {
			post.Cov = symToRows(priorScaleCovariance(model))
		}
		return post, diag
	}

	post := summarizeChain(kept)
	post.Samples = kept
	diag.Converged = chainConverged(&diag, kept, post)
	return post, diag
}

// summarizeChain reduces kept draws to a mean vector and covariance.
func summarizeChain(kept [][]float64) MortalityPosterior {
	dim := len(kept[0])
	cols := make([][]float64, dim)
	for i := range cols {
		cols[i] = make([]float64, len(kept))
		for k, draw := range kept {
			cols[i][k] = draw[i]
		}
	}
	mean := make([]float64, dim)
	cov := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		mean[i] = stat.Mean(cols[i], nil)
		cov[i] = make([]float64, dim)
	}
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			c := stat.Covariance(cols[i], cols[j], nil)
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return MortalityPosterior{Mean: mean, Cov: cov}
}

// chainConverged applies two cheap checks: the acceptance rate sits in
// a workable band, and the chain halves agree to a fraction of the
// posterior spread.
func chainConverged(diag *Diagnostics, kept [][]float64, post MortalityPosterior) bool {
	ok := true
	if diag.AcceptanceRate < 0.10 || diag.AcceptanceRate > 0.60 {
		diag.Warn("acceptance rate %.2f outside [0.10, 0.60]", diag.AcceptanceRate)
		ok = false
	}
	half := len(kept) / 2
	for i := range post.Mean {
		first := make([]float64, half)
		second := make([]float64, len(kept)-half)
		for k := 0; k < half; k++ {
			first[k] = kept[k][i]
		}
		for k := half; k < len(kept); k++ {
			second[k-half] = kept[k][i]
		}
		sd := math.Sqrt(post.Cov[i][i])
		if sd <= 0 {
			continue
		}
		if drift := math.Abs(stat.Mean(first, nil)-stat.Mean(second, nil)) / sd; drift > 0.3 {
			diag.Warn("coefficient %d drifts %.2f posterior sds between chain halves", i, drift)
			ok = false
		}
	}
	return ok
}

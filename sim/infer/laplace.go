package infer

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// === Laplace approximation ===

// laplaceStrategy fits the mortality block by Gaussian approximation
// at the posterior mode: a damped Newton climb to the MAP, then the
// inverse negative Hessian as covariance. The surface is smooth and
// three dimensional, so this is the default strategy.
type laplaceStrategy struct{}

func (laplaceStrategy) Name() string { return StrategyLaplace }

func (laplaceStrategy) Fit(ctx context.Context, cells []HazardCell, opts Options) (MortalityPosterior, Diagnostics) {
	model := newHazardModel(cells)
	budget := opts.Budget.withDefaults(defaultLaplaceIterations)
	b, diag := climbToMode(ctx, model, budget)

	post := MortalityPosterior{Mean: b}
	cov, ok := model.covarianceAt(b)
	if !ok {
		diag.Converged = false
		diag.Warn("curvature at the mode is not positive definite; using prior-scale covariance")
		cov = priorScaleCovariance(model)
	}
	post.Cov = symToRows(cov)
	return post, diag
}

// priorScaleCovariance is the fallback when the Hessian will not
// factor: independent coefficients at prior spread.
func priorScaleCovariance(m *hazardModel) *mat.SymDense {
	cov := mat.NewSymDense(m.dim(), nil)
	cov.SetSym(0, 0, m.priors.b0SD*m.priors.b0SD)
	cov.SetSym(1, 1, m.priors.ageSD*m.priors.ageSD)
	cov.SetSym(2, 2, m.priors.cohortSD*m.priors.cohortSD)
	return cov
}

func symToRows(s *mat.SymDense) [][]float64 {
	n, _ := s.Dims()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = s.At(i, j)
		}
	}
	return out
}

// climbToMode runs a damped Newton ascent on the log posterior until
// the gradient collapses or the budget runs out. It always returns the
// best point seen; Diagnostics says whether that point is a converged
// mode.
func climbToMode(ctx context.Context, model *hazardModel, budget Budget) ([]float64, Diagnostics) {
	var diag Diagnostics
	n := model.dim()
	b := model.initialPoint()
	lp := model.logPosterior(b)
	grad := model.gradient(b, nil)
	damping := 1e-3

	var deadline time.Time
	if budget.MaxDuration > 0 {
		deadline = time.Now().Add(budget.MaxDuration)
	}

	step := mat.NewVecDense(n, nil)
	gvec := mat.NewVecDense(n, nil)
	cand := make([]float64, n)
	for iter := 1; iter <= budget.MaxIterations; iter++ {
		diag.Iterations = iter
		if err := ctx.Err(); err != nil {
			diag.Warn("mode search stopped early: %v", err)
			diag.GradNorm = gradNorm(grad)
			return b, diag
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			diag.Warn("mode search exhausted its %s budget", budget.MaxDuration)
			diag.GradNorm = gradNorm(grad)
			return b, diag
		}

		norm := gradNorm(grad)
		if norm < 1e-8*(1+math.Abs(lp)) {
			diag.Converged = true
			diag.GradNorm = norm
			return b, diag
		}

		hess := model.hessian(b)
		improved := false
		for attempt := 0; attempt < 30; attempt++ {
			neg := mat.NewSymDense(n, nil)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					v := -hess.At(i, j)
					if i == j {
						v += damping
					}
					neg.SetSym(i, j, v)
				}
			}
			var chol mat.Cholesky
			if !chol.Factorize(neg) {
				damping *= 10
				continue
			}
			for i := 0; i < n; i++ {
				gvec.SetVec(i, grad[i])
			}
			if err := chol.SolveVecTo(step, gvec); err != nil {
				damping *= 10
				continue
			}
			for i := 0; i < n; i++ {
				cand[i] = b[i] + step.AtVec(i)
			}
			if candLP := model.logPosterior(cand); candLP > lp {
				copy(b, cand)
				lp = candLP
				model.gradient(b, grad)
				damping = math.Max(damping/10, 1e-10)
				improved = true
				break
			}
			damping *= 10
		}
		if !improved {
			diag.Warn("mode search stalled at damping %g", damping)
			diag.GradNorm = gradNorm(grad)
			return b, diag
		}
	}
	diag.Warn("mode search used all %d iterations without converging", budget.MaxIterations)
	diag.GradNorm = gradNorm(grad)
	return b, diag
}

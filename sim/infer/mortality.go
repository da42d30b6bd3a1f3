package infer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// === Censored hazard likelihood ===

// The mortality block has no conjugate posterior: the cloglog link and
// right censoring leave a smooth but non-standard three-parameter
// surface. Both approximate strategies work on the same model: the
// coefficient vector b = (log base, age slope, cohort slope per
// decade), the exposure-cell likelihood, and weak normal priors.

// mortalityPriors are the normal priors on the hazard coefficients.
type mortalityPriors struct {
	b0Mean, b0SD    float64
	ageSD, cohortSD float64
}

func defaultMortalityPriors() mortalityPriors {
	return mortalityPriors{b0Mean: -7, b0SD: 2, ageSD: 0.5, cohortSD: 0.5}
}

// etaClamp bounds the log-hazard so exp stays finite; the optimum of
// any realistic surface is far inside.
const etaClamp = 50.0

type hazardModel struct {
	cells  []HazardCell
	priors mortalityPriors
}

func newHazardModel(cells []HazardCell) *hazardModel {
	return &hazardModel{cells: cells, priors: defaultMortalityPriors()}
}

func (m *hazardModel) dim() int { return 3 }

// eta evaluates the linear predictor for one cell.
func (m *hazardModel) eta(b []float64, c HazardCell) float64 {
	e := sim.HazardEta(b[0], b[1], b[2], c.Age, c.Cohort)
	return math.Min(math.Max(e, -etaClamp), etaClamp)
}

// logPosterior is the cell log likelihood plus the log prior, up to a
// constant. A death at a cell contributes log q, a survival -exp(eta);
// q comes from the same cloglog the generator samples with.
func (m *hazardModel) logPosterior(b []float64) float64 {
	lp := 0.0
	for _, c := range m.cells {
		eta := m.eta(b, c)
		w := math.Exp(eta)
		if c.Deaths > 0 {
			q := sim.HazardFromEta(eta)
			if q <= 0 {
				return math.Inf(-1)
			}
			lp += c.Deaths * math.Log(q)
		}
		lp -= c.Survivals * w
	}
	lp -= square(b[0]-m.priors.b0Mean) / (2 * m.priors.b0SD * m.priors.b0SD)
	lp -= square(b[1]) / (2 * m.priors.ageSD * m.priors.ageSD)
	lp -= square(b[2]) / (2 * m.priors.cohortSD * m.priors.cohortSD)
	return lp
}

// gradient writes the analytic gradient of logPosterior into dst.
func (m *hazardModel) gradient(b, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, m.dim())
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, c := range m.cells {
		eta := m.eta(b, c)
		w := math.Exp(eta)
		// d/d eta of (deaths*log q - survivals*w). The death factor
		// w*exp(-w)/q tends to 1 as w->0 and to 0 as w grows; both
		// limits fall out of the float arithmetic.
		g := -c.Survivals * w
		if c.Deaths > 0 {
			q := sim.HazardFromEta(eta)
			if q > 0 {
				g += c.Deaths * w * math.Exp(-w) / q
			} else {
				g += c.Deaths
			}
		}
		dst[0] += g
		dst[1] += g * float64(c.Age-sim.RefAge)
		dst[2] += g * float64(c.Cohort-sim.RefCohort) / 10
	}
	dst[0] -= (b[0] - m.priors.b0Mean) / (m.priors.b0SD * m.priors.b0SD)
	dst[1] -= b[1] / (m.priors.ageSD * m.priors.ageSD)
	dst[2] -= b[2] / (m.priors.cohortSD * m.priors.cohortSD)
	return dst
}

// initialPoint starts from the crude death rate with a mild age slope.
func (m *hazardModel) initialPoint() []float64 {
	deaths, exposure := 0.0, 0.0
	for _, c := range m.cells {
		deaths += c.Deaths
		exposure += c.Deaths + c.Survivals
	}
	rate := 1e-4
	if exposure > 0 && deaths > 0 {
		rate = deaths / exposure
	}
	return []float64{math.Log(rate), 0.05, 0}
}

// hessian approximates the second derivative matrix by central
// differences of the analytic gradient, symmetrized.
func (m *hazardModel) hessian(b []float64) *mat.SymDense {
	n := m.dim()
	cols := make([][]float64, n)
	bp := make([]float64, n)
	gp := make([]float64, n)
	gm := make([]float64, n)
	for i := 0; i < n; i++ {
		h := 1e-5 * (1 + math.Abs(b[i]))
		copy(bp, b)
		bp[i] = b[i] + h
		m.gradient(bp, gp)
		bp[i] = b[i] - h
		m.gradient(bp, gm)
		col := make([]float64, n)
		for j := 0; j < n; j++ {
			col[j] = (gp[j] - gm[j]) / (2 * h)
		}
		cols[i] = col
	}
	hess := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			hess.SetSym(i, j, (cols[i][j]+cols[j][i])/2)
		}
	}
	return hess
}

// covarianceAt inverts the negative Hessian at b. A ridge is added and
// grown if the factorization fails; ok is false when even the ridged
// matrix will not factor.
func (m *hazardModel) covarianceAt(b []float64) (*mat.SymDense, bool) {
	hess := m.hessian(b)
	n := m.dim()
	neg := mat.NewSymDense(n, nil)
	for ridge := 0.0; ridge <= 1e-2; ridge = nextRidge(ridge) {
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := -hess.At(i, j)
				if i == j {
					v += ridge
				}
				neg.SetSym(i, j, v)
			}
		}
		var chol mat.Cholesky
		if !chol.Factorize(neg) {
			continue
		}
		cov := mat.NewSymDense(n, nil)
		if err := chol.InverseTo(cov); err != nil {
			continue
		}
		return cov, true
	}
	return nil, false
}

func nextRidge(r float64) float64 {
	if r == 0 {
		return 1e-8
	}
	return r * 10
}

func square(x float64) float64 { return x * x }

func gradNorm(g []float64) float64 {
	s := 0.0
	for _, v := range g {
		s += v * v
	}
	return math.Sqrt(s)
}

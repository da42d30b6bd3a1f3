package infer

import (
	"encoding/json"
	"fmt"
	"math"
	randv2 "math/rand/v2"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// === Artifact types ===

// Posterior is the estimation artifact: per-block posteriors rich
// enough to draw joint parameter samples, plus flat marginal summaries
// keyed by the same canonical names sim.Params.Flatten uses, so
// evaluation can join estimates to ground truth by name.
type Posterior struct {
	ID             string  `json:"id"`
	ArchitectureID string  `json:"architecture_id"`
	ScenarioID     string  `json:"scenario_id,omitempty"`
	Strategy       string  `json:"strategy"`
	Level          float64 `json:"credible_level"`

	Individuals int `json:"individuals"`
	CareerRows  int `json:"career_rows"`

	Transitions TransitionPosterior `json:"transitions"`
	Mortality   MortalityPosterior  `json:"mortality"`
	Income      IncomePosterior     `json:"income"`
	JobMix      DirichletRow        `json:"job_mix"`
	Rules       RulesPosterior      `json:"rules"`

	Marginals   []Marginal  `json:"marginals"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Resources   Resources   `json:"resources"`
}

// DirichletRow is a Dirichlet posterior over a fixed label order.
type DirichletRow struct {
	Labels []string  `json:"labels"`
	Alpha  []float64 `json:"alpha"`
}

// TransitionPosterior holds one Dirichlet row per regime and source
// state, in the same row and column sets the generator uses.
type TransitionPosterior struct {
	Regimes map[string]map[string]DirichletRow `json:"regimes"`
}

// MortalityPosterior approximates the censored-hazard block on the
// (log base, age slope, cohort slope) scale. Strategies that sample
// keep their thinned draws; Gaussian strategies keep mean and
// covariance only.
type MortalityPosterior struct {
	Mean    []float64   `json:"mean"`
	Cov     [][]float64 `json:"cov"`
	Samples [][]float64 `json:"samples,omitempty"`
}

// IncomePosterior is the Normal-inverse-gamma posterior of the
// log-income regression: coefficients Mean with scale matrix Scale
// (multiplied by the variance draw), and Shape/Rate for the variance.
type IncomePosterior struct {
	Design []string    `json:"design"`
	Mean   []float64   `json:"mean"`
	Scale  [][]float64 `json:"scale"`
	Shape  float64     `json:"shape"`
	Rate   float64     `json:"rate"`
	Rows   int         `json:"rows"`
}

// RulesPosterior covers the deterministic-rule parameters recovered
// from derived columns. The revaluation rate is identified by pension
// growth ratios; with no retirement spans in the data it stays at the
// prior and is flagged.
type RulesPosterior struct {
	RevaluationMean float64 `json:"revaluation_mean"`
	RevaluationSD   float64 `json:"revaluation_sd"`
	RatioPairs      int     `json:"ratio_pairs"`
	Identified      bool    `json:"identified"`
}

// Marginal summarizes one scalar parameter's posterior.
type Marginal struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	SD     float64 `json:"sd"`
	Lo     float64 `json:"lo"`
	Hi     float64 `json:"hi"`
}

// Diagnostics records how the approximate block ended. Converged=false
// is a data point, not an error: the artifact is still written and the
// flag travels with it.
type Diagnostics struct {
	Converged      bool     `json:"converged"`
	Iterations     int      `json:"iterations"`
	GradNorm       float64  `json:"grad_norm,omitempty"`
	AcceptanceRate float64  `json:"acceptance_rate,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Warn appends a diagnostic warning.
func (d *Diagnostics) Warn(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// === Lookup ===

// Marginal returns the named marginal summary.
func (p *Posterior) Marginal(name string) (Marginal, bool) {
	for _, m := range p.Marginals {
		if m.Name == name {
			return m, true
		}
	}
	return Marginal{}, false
}

// === Joint sampling ===

// Sample draws one joint parameter bundle from the posterior. Draws
// from the same source sequence are reproducible, which is what lets a
// forecast be replayed from its posterior and seed alone.
func (p *Posterior) Sample(src randv2.Source) (sim.Params, error) {
	rng := randv2.New(src)
	var out sim.Params

	out.Transitions.PreRetirement = sampleRegime(p.Transitions.Regimes[sim.RegimePreRetirement], src)
	out.Transitions.PostStatutory = sampleRegime(p.Transitions.Regimes[sim.RegimePostStatutory], src)

	b, err := p.sampleMortality(rng, src)
	if err != nil {
		return sim.Params{}, err
	}
	out.Mortality = sim.MortalityParams{
		Base:        math.Exp(b[0]),
		AgeSlope:    math.Max(0, b[1]),
		CohortSlope: b[2],
	}

	coefs, sigma, err := p.sampleIncome(src)
	if err != nil {
		return sim.Params{}, err
	}
	out.Income.LogLevels = make(map[string]float64, len(p.Income.Design)-1)
	for i, name := range p.Income.Design {
		if i == len(p.Income.Design)-1 {
			out.Income.AgeSlope = coefs[i]
			continue
		}
		out.Income.LogLevels[name] = coefs[i]
	}
	out.Income.LogSigma = sigma

	out.JobMix.Shares = sampleDirichlet(p.JobMix, src)

	rate := distuv.Normal{Mu: p.Rules.RevaluationMean, Sigma: math.Max(p.Rules.RevaluationSD, 1e-12), Src: src}.Rand()
	out.Rules.PensionRevaluationRate = rate

	return out, nil
}

func sampleRegime(rows map[string]DirichletRow, src randv2.Source) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(rows))
	froms := make([]string, 0, len(rows))
	for from := range rows {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		out[from] = sampleDirichlet(rows[from], src)
	}
	return out
}

func sampleDirichlet(row DirichletRow, src randv2.Source) map[string]float64 {
	draw := distmv.NewDirichlet(row.Alpha, src).Rand(nil)
	out := make(map[string]float64, len(row.Labels))
	for i, label := range row.Labels {
		out[label] = draw[i]
	}
	return out
}

func (p *Posterior) sampleMortality(rng *randv2.Rand, src randv2.Source) ([]float64, error) {
	if n := len(p.Mortality.Samples); n > 0 {
		draw := p.Mortality.Samples[rng.IntN(n)]
		out := make([]float64, len(draw))
		copy(out, draw)
		return out, nil
	}
	dim := len(p.Mortality.Mean)
	if dim == 0 || len(p.Mortality.Cov) != dim {
		return nil, fmt.Errorf("mortality posterior is empty")
	}
	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			sym.SetSym(i, j, p.Mortality.Cov[i][j])
		}
	}
	if normal, ok := distmv.NewNormal(p.Mortality.Mean, sym, src); ok {
		return normal.Rand(nil), nil
	}
	// Non positive-definite covariance: fall back to independent
	// normals on the diagonal.
	out := make([]float64, dim)
	for i := range out {
		sd := math.Sqrt(math.Max(p.Mortality.Cov[i][i], 0))
		out[i] = p.Mortality.Mean[i] + sd*rng.NormFloat64()
	}
	return out, nil
}

func (p *Posterior) sampleIncome(src randv2.Source) ([]float64, float64, error) {
	dim := len(p.Income.Mean)
	if dim == 0 || len(p.Income.Scale) != dim {
		return nil, 0, fmt.Errorf("income posterior is empty")
	}
	varDraw := 1 / distuv.Gamma{Alpha: p.Income.Shape, Beta: p.Income.Rate, Src: src}.Rand()
	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			sym.SetSym(i, j, p.Income.Scale[i][j]*varDraw)
		}
	}
	rng := randv2.New(src)
	coefs := make([]float64, dim)
	if normal, ok := distmv.NewNormal(p.Income.Mean, sym, src); ok {
		coefs = normal.Rand(coefs)
	} else {
		for i := range coefs {
			sd := math.Sqrt(math.Max(sym.At(i, i), 0))
			coefs[i] = p.Income.Mean[i] + sd*rng.NormFloat64()
		}
	}
	return coefs, math.Sqrt(varDraw), nil
}

// === Marginal builders ===

func normalMarginal(name string, mean, sd, level float64) Marginal {
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + level/2)
	return Marginal{Name: name, Mean: mean, Median: mean, SD: sd, Lo: mean - z*sd, Hi: mean + z*sd}
}

// logNormalMarginal summarizes exp(X) for X ~ Normal(mean, sd).
func logNormalMarginal(name string, mean, sd, level float64) Marginal {
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + level/2)
	m := math.Exp(mean + sd*sd/2)
	return Marginal{
		Name:   name,
		Mean:   m,
		Median: math.Exp(mean),
		SD:     m * math.Sqrt(math.Expm1(sd*sd)),
		Lo:     math.Exp(mean - z*sd),
		Hi:     math.Exp(mean + z*sd),
	}
}

// betaMarginal summarizes one Dirichlet component, whose marginal is
// Beta(alpha_i, alpha_0-alpha_i).
func betaMarginal(name string, alphaI, alpha0, level float64) Marginal {
	b := distuv.Beta{Alpha: alphaI, Beta: alpha0 - alphaI}
	return Marginal{
		Name:   name,
		Mean:   alphaI / alpha0,
		Median: b.Quantile(0.5),
		SD:     math.Sqrt(alphaI * (alpha0 - alphaI) / (alpha0 * alpha0 * (alpha0 + 1))),
		Lo:     b.Quantile(0.5 - level/2),
		Hi:     b.Quantile(0.5 + level/2),
	}
}

// tMarginal summarizes a location-scale Student's t marginal.
func tMarginal(name string, mu, scale, nu, level float64) Marginal {
	t := distuv.StudentsT{Mu: mu, Sigma: scale, Nu: nu}
	sd := math.Inf(1)
	if nu > 2 {
		sd = scale * math.Sqrt(nu/(nu-2))
	}
	return Marginal{
		Name:   name,
		Mean:   mu,
		Median: mu,
		SD:     sd,
		Lo:     t.Quantile(0.5 - level/2),
		Hi:     t.Quantile(0.5 + level/2),
	}
}

// sigmaMarginal summarizes sqrt(V) for V ~ InverseGamma(shape, rate).
// Quantiles come from the reciprocal Gamma, moments in closed form.
func sigmaMarginal(name string, shape, rate, level float64) Marginal {
	g := distuv.Gamma{Alpha: shape, Beta: rate}
	q := func(p float64) float64 { return math.Sqrt(1 / g.Quantile(1-p)) }
	mean := math.Sqrt(rate) * math.Exp(lgamma(shape-0.5)-lgamma(shape))
	second := rate / (shape - 1)
	return Marginal{
		Name:   name,
		Mean:   mean,
		Median: q(0.5),
		SD:     math.Sqrt(math.Max(0, second-mean*mean)),
		Lo:     q(0.5 - level/2),
		Hi:     q(0.5 + level/2),
	}
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// empiricalMarginal summarizes a sample by its empirical quantiles.
func empiricalMarginal(name string, values []float64, level float64) Marginal {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return Marginal{
		Name:   name,
		Mean:   stat.Mean(s, nil),
		Median: stat.Quantile(0.5, stat.Empirical, s, nil),
		SD:     stat.StdDev(s, nil),
		Lo:     stat.Quantile(0.5-level/2, stat.Empirical, s, nil),
		Hi:     stat.Quantile(0.5+level/2, stat.Empirical, s, nil),
	}
}

// === Persistence ===

// Save writes the posterior as indented JSON.
func (p *Posterior) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling posterior: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadPosterior reads a posterior artifact written by Save.
func LoadPosterior(path string) (*Posterior, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading posterior: %w", err)
	}
	var p Posterior
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing posterior %s: %w", path, err)
	}
	return &p, nil
}

// newPosteriorID issues a fresh artifact identity.
func newPosteriorID() string { return uuid.NewString() }

// Resources records what a fit consumed.
type Resources struct {
	WallTime      time.Duration `json:"wall_time_ns"`
	PeakHeapBytes uint64        `json:"peak_heap_bytes"`
	HeapSamples   int           `json:"heap_samples"`
}

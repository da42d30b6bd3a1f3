package sim

import (
	"fmt"
	"math"
)

// === Parameter Bundle ===

// Params is the full numeric parameterization of a population: every
// quantity the generator samples from and the estimator recovers. The
// type is architecture-level and shared; concrete values live inside a
// Config and stay behind the access boundary until estimated.
type Params struct {
	Transitions TransitionParams `yaml:"transitions"`
	Mortality   MortalityParams  `yaml:"mortality"`
	Income      IncomeParams     `yaml:"income"`
	JobMix      JobMixParams     `yaml:"job_mix"`
	Rules       RuleCoefficients `yaml:"rules"`
}

// TransitionParams holds one row-stochastic base matrix per retirement
// regime, keyed by state label. Only non-absorbing states carry rows;
// absorbing states move by the absorption rule alone.
//
// PreRetirement rows range over non-absorbing destinations (retirement
// is not yet reachable). PostStatutory rows add the retirement column
// and apply from the statutory age until retirement is forced.
type TransitionParams struct {
	PreRetirement map[string]map[string]float64 `yaml:"pre_retirement"`
	PostStatutory map[string]map[string]float64 `yaml:"post_statutory"`
}

// MortalityParams parameterizes the yearly death hazard
//
//	q(age, cohort) = 1 - exp(-exp(log(Base) + AgeSlope*(age-25) + CohortSlope*(cohort-1950)/10))
//
// a complementary-log-log Gompertz curve. Base is the hazard scale at
// the reference age for the reference cohort; AgeSlope is the log-hazard
// increase per year of age; CohortSlope the change per decade of birth.
type MortalityParams struct {
	Base        float64 `yaml:"base"`
	AgeSlope    float64 `yaml:"age_slope"`
	CohortSlope float64 `yaml:"cohort_slope"`
}

// Coefficients returns the hazard coefficients (b0, b1, b2) on the
// log-hazard scale used by both sampling and likelihood code.
func (m MortalityParams) Coefficients() (b0, b1, b2 float64) {
	return math.Log(m.Base), m.AgeSlope, m.CohortSlope
}

// IncomeParams parameterizes log-normal employment income. LogLevels
// gives the mean log income per job type at the reference age; AgeSlope
// adds career progression per year of age past the reference; LogSigma
// is the dispersion of the yearly draw.
type IncomeParams struct {
	LogLevels map[string]float64 `yaml:"log_levels"`
	LogSigma  float64            `yaml:"log_sigma"`
	AgeSlope  float64            `yaml:"age_slope"`
}

// JobMixParams gives the population shares of each job type. One job
// type is assigned per individual at the start of the career layer and
// held for life.
type JobMixParams struct {
	Shares map[string]float64 `yaml:"shares"`
}

// RuleCoefficients holds the numeric coefficients consumed by the
// derived-variable rules. The rule formulas themselves are architecture
// code; only these values are population-specific.
type RuleCoefficients struct {
	PensionRevaluationRate float64 `yaml:"pension_revaluation_rate"`
}

// Reference points for the hazard and income curves. Fixed by the
// functional form, not estimated.
const (
	RefAge    = 25
	RefCohort = 1950
)

// rowSumTol is the tolerance for row-stochastic validation.
const rowSumTol = 1e-6

// === Validation ===

// Validate checks Params against an architecture's state space and job
// vocabulary. It reports the first violation found.
func (p *Params) Validate(arch *Architecture) error {
	if err := p.Transitions.validate(arch.States); err != nil {
		return fmt.Errorf("transitions: %w", err)
	}
	if p.Mortality.Base <= 0 {
		return fmt.Errorf("mortality: base must be > 0, got %g", p.Mortality.Base)
	}
	if p.Mortality.AgeSlope < 0 {
		return fmt.Errorf("mortality: age_slope must be >= 0, got %g", p.Mortality.AgeSlope)
	}
	if err := p.Income.validate(arch.JobTypes); err != nil {
		return fmt.Errorf("income: %w", err)
	}
	if err := p.JobMix.validate(arch.JobTypes); err != nil {
		return fmt.Errorf("job_mix: %w", err)
	}
	if p.Rules.PensionRevaluationRate <= -1 {
		return fmt.Errorf("rules: pension_revaluation_rate must be > -1, got %g", p.Rules.PensionRevaluationRate)
	}
	return nil
}

func (t *TransitionParams) validate(space *StateSpace) error {
	preCols := labelSet(space, space.Ordinary())
	postCols := labelSet(space, space.Live())
	if err := validateRegime(space, t.PreRetirement, preCols); err != nil {
		return fmt.Errorf("pre_retirement: %w", err)
	}
	if err := validateRegime(space, t.PostStatutory, postCols); err != nil {
		return fmt.Errorf("post_statutory: %w", err)
	}
	return nil
}

func validateRegime(space *StateSpace, rows map[string]map[string]float64, allowed map[string]bool) error {
	for _, id := range space.Ordinary() {
		label := space.Label(id)
		row, ok := rows[label]
		if !ok {
			return fmt.Errorf("missing row for state %q", label)
		}
		sum := 0.0
		for to, prob := range row {
			if !allowed[to] {
				return fmt.Errorf("row %q: destination %q not reachable in this regime (valid: %s)", label, to, joinSet(allowed))
			}
			if prob < 0 || prob > 1 {
				return fmt.Errorf("row %q: probability for %q must be in [0, 1], got %g", label, to, prob)
			}
			sum += prob
		}
		if math.Abs(sum-1) > rowSumTol {
			return fmt.Errorf("row %q: probabilities must sum to 1, got %.9f", label, sum)
		}
	}
	for label := range rows {
		if id, ok := space.ByLabel(label); !ok {
			return fmt.Errorf("row for unknown state %q", label)
		} else if space.IsAbsorbing(id) {
			return fmt.Errorf("row for absorbing state %q: absorbing states take no transition row", label)
		}
	}
	return nil
}

func (i *IncomeParams) validate(jobTypes []string) error {
	if i.LogSigma <= 0 {
		return fmt.Errorf("log_sigma must be > 0, got %g", i.LogSigma)
	}
	if len(i.LogLevels) == 0 {
		return fmt.Errorf("log_levels must name every job type")
	}
	for _, jt := range jobTypes {
		if _, ok := i.LogLevels[jt]; !ok {
			return fmt.Errorf("log_levels missing job type %q", jt)
		}
	}
	for jt := range i.LogLevels {
		if !contains(jobTypes, jt) {
			return fmt.Errorf("log_levels names unknown job type %q (valid: %v)", jt, jobTypes)
		}
	}
	return nil
}

func (j *JobMixParams) validate(jobTypes []string) error {
	if len(j.Shares) == 0 {
		return fmt.Errorf("shares must name every job type")
	}
	sum := 0.0
	for jt, share := range j.Shares {
		if !contains(jobTypes, jt) {
			return fmt.Errorf("shares names unknown job type %q (valid: %v)", jt, jobTypes)
		}
		if share < 0 || share > 1 {
			return fmt.Errorf("share for %q must be in [0, 1], got %g", jt, share)
		}
		sum += share
	}
	for _, jt := range jobTypes {
		if _, ok := j.Shares[jt]; !ok {
			return fmt.Errorf("shares missing job type %q", jt)
		}
	}
	if math.Abs(sum-1) > rowSumTol {
		return fmt.Errorf("shares must sum to 1, got %.9f", sum)
	}
	return nil
}

// === Canonical Flattening ===

// NamedValue is one scalar parameter under its canonical dotted name.
// The estimator publishes posterior marginals under the same names, so
// recovery reports can join true values to estimates without guessing.
type NamedValue struct {
	Name  string
	Value float64
}

// Flatten lists every scalar in canonical order: transition rows by
// regime then state ID, mortality, income levels by label, dispersion,
// slope, job shares by label, rule coefficients.
func (p *Params) Flatten(arch *Architecture) []NamedValue {
	var out []NamedValue

	appendRegime := func(regime string, rows map[string]map[string]float64, cols []StateID) {
		for _, from := range arch.States.Ordinary() {
			row := rows[arch.States.Label(from)]
			for _, to := range cols {
				toLabel := arch.States.Label(to)
				out = append(out, NamedValue{
					Name:  fmt.Sprintf("transition.%s.%s.%s", regime, arch.States.Label(from), toLabel),
					Value: row[toLabel],
				})
			}
		}
	}
	appendRegime(RegimePreRetirement, p.Transitions.PreRetirement, arch.States.Ordinary())
	appendRegime(RegimePostStatutory, p.Transitions.PostStatutory, arch.States.Live())

	out = append(out,
		NamedValue{"mortality.base", p.Mortality.Base},
		NamedValue{"mortality.age_slope", p.Mortality.AgeSlope},
		NamedValue{"mortality.cohort_slope", p.Mortality.CohortSlope},
	)
	for _, jt := range arch.JobTypes {
		out = append(out, NamedValue{fmt.Sprintf("income.log_level.%s", jt), p.Income.LogLevels[jt]})
	}
	out = append(out,
		NamedValue{"income.age_slope", p.Income.AgeSlope},
		NamedValue{"income.log_sigma", p.Income.LogSigma},
	)
	for _, jt := range arch.JobTypes {
		out = append(out, NamedValue{fmt.Sprintf("job_mix.%s", jt), p.JobMix.Shares[jt]})
	}
	out = append(out, NamedValue{"rules.pension_revaluation_rate", p.Rules.PensionRevaluationRate})
	return out
}

// === Helpers ===

func labelSet(space *StateSpace, ids []StateID) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[space.Label(id)] = true
	}
	return out
}

func joinSet(set map[string]bool) string {
	asMap := make(map[string]float64, len(set))
	for k := range set {
		asMap[k] = 0
	}
	labels := sortedLabels(asMap)
	return fmt.Sprintf("%v", labels)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

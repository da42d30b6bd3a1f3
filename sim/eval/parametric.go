package eval

import (
	"math"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
	"github.com/lifecourse-sim/lifecourse-sim/sim/infer"
)

// === Parameter recovery ===

// ParameterCheck compares one true scalar against its posterior
// marginal. Error is signed (mean minus truth); Covered reports
// whether the credible interval contains the truth.
type ParameterCheck struct {
	Name          string  `json:"name"`
	Truth         float64 `json:"truth"`
	Mean          float64 `json:"mean"`
	Median        float64 `json:"median"`
	SD            float64 `json:"sd"`
	Error         float64 `json:"error"`
	RelativeError float64 `json:"relative_error"`
	Lo            float64 `json:"lo"`
	Hi            float64 `json:"hi"`
	Covered       bool    `json:"covered"`
}

// ParametricSection scores every parameter the architecture names.
type ParametricSection struct {
	Level                float64          `json:"level"`
	Checks               []ParameterCheck `json:"checks"`
	Coverage             float64          `json:"coverage"`
	MeanAbsError         float64          `json:"mean_abs_error"`
	MeanAbsRelativeError float64          `json:"mean_abs_relative_error"`
	Missing              []string         `json:"missing,omitempty"`
}

// compareParameters joins the flattened truth to the posterior
// marginals by canonical name. Parameters without a marginal land in
// Missing; a correct estimator never produces any.
func compareParameters(arch *sim.Architecture, truth *sim.Params, post *infer.Posterior) ParametricSection {
	section := ParametricSection{Level: post.Level}
	covered, absErr, relErr := 0, 0.0, 0.0
	for _, nv := range truth.Flatten(arch) {
		m, ok := post.Marginal(nv.Name)
		if !ok {
			section.Missing = append(section.Missing, nv.Name)
			continue
		}
		check := ParameterCheck{
			Name:          nv.Name,
			Truth:         nv.Value,
			Mean:          m.Mean,
			Median:        m.Median,
			SD:            m.SD,
			Error:         m.Mean - nv.Value,
			RelativeError: math.Abs(m.Mean-nv.Value) / math.Max(math.Abs(nv.Value), 1e-9),
			Lo:            m.Lo,
			Hi:            m.Hi,
			Covered:       m.Lo <= nv.Value && nv.Value <= m.Hi,
		}
		if check.Covered {
			covered++
		}
		absErr += math.Abs(check.Error)
		relErr += check.RelativeError
		section.Checks = append(section.Checks, check)
	}
	if n := len(section.Checks); n > 0 {
		section.Coverage = float64(covered) / float64(n)
		section.MeanAbsError = absErr / float64(n)
		section.MeanAbsRelativeError = relErr / float64(n)
	}
	return section
}

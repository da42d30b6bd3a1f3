package sim

import (
	"math"
	"math/rand"
)

// === Job Type and Income ===

// SampleJobType draws a job type from the mix, iterating the
// architecture's declaration order so the draw is deterministic.
func SampleJobType(rng *rand.Rand, jobTypes []string, mix JobMixParams) string {
	u := rng.Float64()
	acc := 0.0
	for _, jt := range jobTypes {
		acc += mix.Shares[jt]
		if u < acc {
			return jt
		}
	}
	return jobTypes[len(jobTypes)-1]
}

// AgeTerm is the career-progression regressor: years of age past the
// reference, negative for workers younger than it. Income sampling and
// income estimation MUST share this design, which is why it lives here.
func AgeTerm(age int) float64 {
	return float64(age - RefAge)
}

// MeanLogIncome returns the mean of the log-income draw for a job type
// at an age.
func MeanLogIncome(p IncomeParams, jobType string, age int) float64 {
	return p.LogLevels[jobType] + p.AgeSlope*AgeTerm(age)
}

// SampleIncome draws one year of employment income: log-normal around
// the job type's level with career progression.
func SampleIncome(rng *rand.Rand, p IncomeParams, jobType string, age int) float64 {
	return math.Exp(rng.NormFloat64()*p.LogSigma + MeanLogIncome(p, jobType, age))
}

package sim

import (
	"math"
	"math/rand"
	"testing"
)

func refIncome() IncomeParams {
	return IncomeParams{
		LogLevels: map[string]float64{"manual": 10.4, "clerical": 10.7, "professional": 11.1},
		LogSigma:  0.5,
		AgeSlope:  0.025,
	}
}

func TestSampleJobType_RespectsShares(t *testing.T) {
	jobTypes := []string{"manual", "clerical", "professional"}
	mix := JobMixParams{Shares: map[string]float64{"manual": 0.35, "clerical": 0.40, "professional": 0.25}}

	rng := rand.New(rand.NewSource(42))
	counts := make(map[string]int)
	const n = 20000
	for i := 0; i < n; i++ {
		counts[SampleJobType(rng, jobTypes, mix)]++
	}
	for jt, share := range mix.Shares {
		got := float64(counts[jt]) / n
		if math.Abs(got-share) > 0.02 {
			t.Errorf("share of %s = %.3f, want about %.2f", jt, got, share)
		}
	}
}

func TestSampleJobType_DegenerateMix(t *testing.T) {
	jobTypes := []string{"manual", "clerical"}
	mix := JobMixParams{Shares: map[string]float64{"manual": 0, "clerical": 1}}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if jt := SampleJobType(rng, jobTypes, mix); jt != "clerical" {
			t.Fatalf("zero-share job type drawn: %s", jt)
		}
	}
}

func TestMeanLogIncome_Design(t *testing.T) {
	p := refIncome()
	if got := MeanLogIncome(p, "manual", RefAge); got != 10.4 {
		t.Errorf("level at reference age = %g, want 10.4", got)
	}
	if got, want := MeanLogIncome(p, "manual", RefAge+10), 10.4+0.25; math.Abs(got-want) > 1e-12 {
		t.Errorf("ten years of progression = %g, want %g", got, want)
	}
	if got, want := MeanLogIncome(p, "professional", 20), 11.1-5*0.025; math.Abs(got-want) > 1e-12 {
		t.Errorf("young professional level = %g, want %g", got, want)
	}
}

func TestSampleIncome_Positive(t *testing.T) {
	p := refIncome()
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 1000; i++ {
		if v := SampleIncome(rng, p, "clerical", 30); v <= 0 {
			t.Fatalf("income draw %g not positive", v)
		}
	}
}

func TestSampleIncome_LogMeanRecovered(t *testing.T) {
	// BDD: The sample mean of log income approaches the design mean
	p := refIncome()
	rng := rand.New(rand.NewSource(11))
	sum := 0.0
	const n = 50000
	for i := 0; i < n; i++ {
		sum += math.Log(SampleIncome(rng, p, "manual", 45))
	}
	want := MeanLogIncome(p, "manual", 45)
	if got := sum / n; math.Abs(got-want) > 0.01 {
		t.Errorf("mean log income = %.4f, want about %.4f", got, want)
	}
}

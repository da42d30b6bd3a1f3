package eval

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// === Distributional distances ===

// DefaultMinSample is the smallest stratum compared by default.
// Distances on a handful of observations say more about noise than
// about the model.
const DefaultMinSample = 30

// StratumDistance is the distance between a true and a comparison
// sample within one stratum. Skipped strata carry a reason instead of
// a distance.
type StratumDistance struct {
	Stratum     string  `json:"stratum"`
	TruthN      int     `json:"truth_n"`
	OtherN      int     `json:"other_n"`
	Wasserstein float64 `json:"wasserstein"`
	TruthMean   float64 `json:"truth_mean"`
	OtherMean   float64 `json:"other_mean"`
	Skipped     bool    `json:"skipped,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// DistributionSection holds stratified distances for the two money
// distributions: employment income by job type and age decade, pension
// payments by five-year age band.
type DistributionSection struct {
	MinSample int               `json:"min_sample"`
	Income    []StratumDistance `json:"income"`
	Pension   []StratumDistance `json:"pension"`
}

// Wasserstein1 is the exact first Wasserstein distance between two
// empirical distributions: the area between their CDFs, swept over the
// merged support.
func Wasserstein1(xs, ys []float64) float64 {
	if len(xs) == 0 || len(ys) == 0 {
		return math.NaN()
	}
	a := append([]float64(nil), xs...)
	b := append([]float64(nil), ys...)
	sort.Float64s(a)
	sort.Float64s(b)

	i, j := 0, 0
	total := 0.0
	prev := math.Min(a[0], b[0])
	for i < len(a) || j < len(b) {
		var next float64
		switch {
		case i >= len(a):
			next = b[j]
		case j >= len(b):
			next = a[i]
		default:
			next = math.Min(a[i], b[j])
		}
		fa := float64(i) / float64(len(a))
		fb := float64(j) / float64(len(b))
		total += math.Abs(fa-fb) * (next - prev)
		for i < len(a) && a[i] == next {
			i++
		}
		for j < len(b) && b[j] == next {
			j++
		}
		prev = next
	}
	return total
}

// compareDistributions stratifies both sides the same way and reports
// one distance per stratum present on either side.
func compareDistributions(truth, other []sim.CareerRow, minSample int) DistributionSection {
	if minSample <= 0 {
		minSample = DefaultMinSample
	}
	section := DistributionSection{MinSample: minSample}
	section.Income = strataDistances(
		incomeStrata(truth), incomeStrata(other), minSample)
	section.Pension = strataDistances(
		pensionStrata(truth), pensionStrata(other), minSample)
	return section
}

// incomeStrata groups employment incomes by job type and age decade.
func incomeStrata(careers []sim.CareerRow) map[string][]float64 {
	out := make(map[string][]float64)
	for _, r := range careers {
		if r.State != sim.StateEmployed || r.Income <= 0 {
			continue
		}
		key := fmt.Sprintf("%s/%d0s", r.JobType, r.Age/10)
		out[key] = append(out[key], r.Income)
	}
	return out
}

// pensionStrata groups pension payments by five-year age band.
func pensionStrata(careers []sim.CareerRow) map[string][]float64 {
	out := make(map[string][]float64)
	for _, r := range careers {
		if r.State != sim.StateRetired || r.Pension <= 0 {
			continue
		}
		lo := r.Age / 5 * 5
		key := fmt.Sprintf("%d-%d", lo, lo+4)
		out[key] = append(out[key], r.Pension)
	}
	return out
}

func strataDistances(truth, other map[string][]float64, minSample int) []StratumDistance {
	keys := make(map[string]bool, len(truth)+len(other))
	for k := range truth {
		keys[k] = true
	}
	for k := range other {
		keys[k] = true
	}
	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	out := make([]StratumDistance, 0, len(ordered))
	for _, key := range ordered {
		tv, ov := truth[key], other[key]
		d := StratumDistance{
			Stratum:   key,
			TruthN:    len(tv),
			OtherN:    len(ov),
			TruthMean: mean(tv),
			OtherMean: mean(ov),
		}
		if len(tv) < minSample || len(ov) < minSample {
			d.Skipped = true
			d.Reason = fmt.Sprintf("sample %d vs %d below minimum %d", len(tv), len(ov), minSample)
		} else {
			d.Wasserstein = Wasserstein1(tv, ov)
		}
		out = append(out, d)
	}
	return out
}

// mean guards stat.Mean against empty strata: a missing side reports
// zero rather than NaN, which would not survive JSON encoding.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

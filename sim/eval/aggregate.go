package eval

import (
	"math"
	"sort"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// === Yearly aggregates ===

// YearAggregate is one calendar year of population-level series: how
// many individuals worked, how many drew a pension, and the money that
// moved.
type YearAggregate struct {
	Year         int     `json:"year"`
	Active       int     `json:"active"`
	Pensioners   int     `json:"pensioners"`
	IncomePaid   float64 `json:"income_paid"`
	PensionsPaid float64 `json:"pensions_paid"`
}

// AggregateByYear reduces career rows to yearly series, sorted by year.
func AggregateByYear(careers []sim.CareerRow) []YearAggregate {
	byYear := make(map[int]*YearAggregate)
	for _, r := range careers {
		agg := byYear[r.Year]
		if agg == nil {
			agg = &YearAggregate{Year: r.Year}
			byYear[r.Year] = agg
		}
		switch r.State {
		case sim.StateEmployed:
			agg.Active++
			agg.IncomePaid += r.Income
		case sim.StateRetired:
			agg.Pensioners++
			agg.PensionsPaid += r.Pension
		}
	}
	out := make([]YearAggregate, 0, len(byYear))
	for _, agg := range byYear {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// SeriesDistance summarizes how far one yearly series drifts from the
// truth over the compared years. RelativeError is the L1 distance
// normalized by the truth's total mass.
type SeriesDistance struct {
	Name          string  `json:"name"`
	TruthMean     float64 `json:"truth_mean"`
	OtherMean     float64 `json:"other_mean"`
	MeanAbsError  float64 `json:"mean_abs_error"`
	RelativeError float64 `json:"relative_error"`
}

// AggregateSection compares yearly series over the intersection of the
// two year ranges. A forecast extends past the truth's horizon and the
// truth starts before a continuation; only shared years are comparable.
type AggregateSection struct {
	YearLo   int              `json:"year_lo"`
	YearHi   int              `json:"year_hi"`
	Years    int              `json:"years"`
	Truth    []YearAggregate  `json:"truth"`
	Other    []YearAggregate  `json:"other"`
	Distance []SeriesDistance `json:"distance"`
}

// compareAggregates builds both series and their distances. The
// returned section has Years == 0 when the ranges do not overlap.
func compareAggregates(truth, other []sim.CareerRow) AggregateSection {
	truthAgg := AggregateByYear(truth)
	otherAgg := AggregateByYear(other)
	if len(truthAgg) == 0 || len(otherAgg) == 0 {
		return AggregateSection{}
	}
	lo := max(truthAgg[0].Year, otherAgg[0].Year)
	hi := min(truthAgg[len(truthAgg)-1].Year, otherAgg[len(otherAgg)-1].Year)
	if lo > hi {
		return AggregateSection{YearLo: lo, YearHi: hi}
	}

	section := AggregateSection{
		YearLo: lo,
		YearHi: hi,
		Years:  hi - lo + 1,
		Truth:  sliceYears(truthAgg, lo, hi),
		Other:  sliceYears(otherAgg, lo, hi),
	}

	series := []struct {
		name string
		get  func(YearAggregate) float64
	}{
		{"active", func(a YearAggregate) float64 { return float64(a.Active) }},
		{"pensioners", func(a YearAggregate) float64 { return float64(a.Pensioners) }},
		{"income_paid", func(a YearAggregate) float64 { return a.IncomePaid }},
		{"pensions_paid", func(a YearAggregate) float64 { return a.PensionsPaid }},
	}
	for _, s := range series {
		d := SeriesDistance{Name: s.name}
		truthTotal := 0.0
		for i := range section.Truth {
			tv := valueAt(section.Truth, lo, section.Truth[i].Year, s.get)
			ov := valueAt(section.Other, lo, section.Truth[i].Year, s.get)
			d.TruthMean += tv
			d.OtherMean += ov
			d.MeanAbsError += math.Abs(tv - ov)
			truthTotal += math.Abs(tv)
		}
		n := float64(section.Years)
		d.TruthMean /= n
		d.OtherMean /= n
		d.MeanAbsError /= n
		if truthTotal > 0 {
			d.RelativeError = d.MeanAbsError * n / truthTotal
		}
		section.Distance = append(section.Distance, d)
	}
	return section
}

// sliceYears returns the aggregates for lo..hi, filling years absent
// from the input with zero rows so both sides align index for index.
func sliceYears(aggs []YearAggregate, lo, hi int) []YearAggregate {
	byYear := make(map[int]YearAggregate, len(aggs))
	for _, a := range aggs {
		byYear[a.Year] = a
	}
	out := make([]YearAggregate, 0, hi-lo+1)
	for y := lo; y <= hi; y++ {
		a, ok := byYear[y]
		if !ok {
			a = YearAggregate{Year: y}
		}
		out = append(out, a)
	}
	return out
}

func valueAt(aggs []YearAggregate, lo, year int, get func(YearAggregate) float64) float64 {
	return get(aggs[year-lo])
}

package eval

import (
	"math"
	"testing"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

func yearRow(id int64, year int, state sim.StateID, income, pension float64) sim.CareerRow {
	return sim.CareerRow{ID: id, Year: year, Age: 40, State: state, JobType: "manual", Income: income, Pension: pension}
}

func TestAggregateByYear(t *testing.T) {
	rows := []sim.CareerRow{
		yearRow(1, 2000, sim.StateEmployed, 100, 0),
		yearRow(2, 2000, sim.StateEmployed, 200, 0),
		yearRow(3, 2000, sim.StateRetired, 0, 50),
		yearRow(4, 2000, sim.StateInactive, 0, 0),
		yearRow(1, 2001, sim.StateEmployed, 110, 0),
	}
	aggs := AggregateByYear(rows)
	if len(aggs) != 2 {
		t.Fatalf("year count = %d, want 2", len(aggs))
	}
	y0 := aggs[0]
	if y0.Year != 2000 || y0.Active != 2 || y0.Pensioners != 1 {
		t.Errorf("2000 = %+v", y0)
	}
	if y0.IncomePaid != 300 || y0.PensionsPaid != 50 {
		t.Errorf("2000 money = %+v", y0)
	}
	if aggs[1].Year != 2001 || aggs[1].Active != 1 {
		t.Errorf("2001 = %+v", aggs[1])
	}
}

func TestCompareAggregatesIntersectsYearRanges(t *testing.T) {
	var truth, other []sim.CareerRow
	for y := 2000; y <= 2010; y++ {
		truth = append(truth, yearRow(1, y, sim.StateEmployed, 100, 0))
	}
	for y := 2005; y <= 2020; y++ {
		other = append(other, yearRow(1, y, sim.StateEmployed, 100, 0))
	}
	section := compareAggregates(truth, other)
	if section.YearLo != 2005 || section.YearHi != 2010 {
		t.Fatalf("range = %d-%d, want 2005-2010", section.YearLo, section.YearHi)
	}
	if section.Years != 6 || len(section.Truth) != 6 || len(section.Other) != 6 {
		t.Fatalf("years = %d truth=%d other=%d, want 6 each", section.Years, len(section.Truth), len(section.Other))
	}
	for _, d := range section.Distance {
		if d.MeanAbsError != 0 || d.RelativeError != 0 {
			t.Errorf("identical shared years should have zero distance, got %+v", d)
		}
	}
}

func TestCompareAggregatesDistance(t *testing.T) {
	truth := []sim.CareerRow{
		yearRow(1, 2000, sim.StateEmployed, 100, 0),
		yearRow(2, 2000, sim.StateEmployed, 100, 0),
		yearRow(1, 2001, sim.StateEmployed, 100, 0),
		yearRow(2, 2001, sim.StateEmployed, 100, 0),
	}
	other := []sim.CareerRow{
		yearRow(1, 2000, sim.StateEmployed, 100, 0),
		yearRow(1, 2001, sim.StateEmployed, 100, 0),
	}
	section := compareAggregates(truth, other)

	var active SeriesDistance
	for _, d := range section.Distance {
		if d.Name == "active" {
			active = d
		}
	}
	if active.TruthMean != 2 || active.OtherMean != 1 {
		t.Errorf("active means = %g vs %g, want 2 vs 1", active.TruthMean, active.OtherMean)
	}
	if active.MeanAbsError != 1 {
		t.Errorf("active mean abs error = %g, want 1", active.MeanAbsError)
	}
	if math.Abs(active.RelativeError-0.5) > 1e-12 {
		t.Errorf("active relative error = %g, want 0.5", active.RelativeError)
	}
}

func TestCompareAggregatesDisjointYears(t *testing.T) {
	truth := []sim.CareerRow{yearRow(1, 2000, sim.StateEmployed, 1, 0)}
	other := []sim.CareerRow{yearRow(1, 2050, sim.StateEmployed, 1, 0)}
	section := compareAggregates(truth, other)
	if section.Years != 0 {
		t.Errorf("disjoint ranges produced %d shared years", section.Years)
	}
	if len(section.Distance) != 0 {
		t.Errorf("disjoint ranges produced distances: %+v", section.Distance)
	}
}

func TestCompareAggregatesFillsMissingYears(t *testing.T) {
	// The other side has a gap year; it must align as a zero row, not
	// shift the series.
	truth := []sim.CareerRow{
		yearRow(1, 2000, sim.StateEmployed, 100, 0),
		yearRow(1, 2001, sim.StateEmployed, 100, 0),
		yearRow(1, 2002, sim.StateEmployed, 100, 0),
	}
	other := []sim.CareerRow{
		yearRow(1, 2000, sim.StateEmployed, 100, 0),
		yearRow(1, 2002, sim.StateEmployed, 100, 0),
	}
	section := compareAggregates(truth, other)
	if section.Years != 3 {
		t.Fatalf("years = %d, want 3", section.Years)
	}
	if section.Other[1].Active != 0 {
		t.Errorf("gap year = %+v, want zero row", section.Other[1])
	}
	if section.Other[2].Active != 1 {
		t.Errorf("year after gap = %+v, want one active", section.Other[2])
	}
}

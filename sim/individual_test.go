package sim

import (
	"errors"
	"strings"
	"testing"
)

// validRows builds a small legal trajectory for an individual born 2000
// and still alive at the horizon.
func validRows(arch *Architecture, ind Individual, horizon int) []CareerRow {
	space := arch.States
	inactive := space.Initial()
	employed, _ := space.ByLabel("employed")
	terminal := space.Terminal()

	end := ind.DeathYear
	if horizon < end {
		end = horizon
	}
	var rows []CareerRow
	for year := ind.BirthYear; year <= end; year++ {
		age := year - ind.BirthYear
		state := inactive
		if year == ind.DeathYear {
			state = terminal
		} else if age >= 20 && age <= 40 {
			state = employed
		}
		row := CareerRow{ID: ind.ID, Year: year, Age: age, State: state, JobType: "manual"}
		if state == employed {
			row.Income = 1000
		}
		rows = append(rows, row)
	}
	ApplyDerived(rows, space, RuleCoefficients{PensionRevaluationRate: 0.01})
	return rows
}

func TestValidateTrajectory_Accepts(t *testing.T) {
	arch := DefaultArchitecture()
	tests := []struct {
		name string
		ind  Individual
	}{
		{"censored by horizon", Individual{ID: 1, BirthYear: 1990, DeathYear: 2090}},
		{"death observed", Individual{ID: 2, BirthYear: 1950, DeathYear: 2000}},
		{"death at birth", Individual{ID: 3, BirthYear: 1980, DeathYear: 1980}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := validRows(arch, tt.ind, 2025)
			if err := ValidateTrajectory(arch, tt.ind, rows, 2025); err != nil {
				t.Errorf("ValidateTrajectory: %v", err)
			}
		})
	}
}

func TestValidateTrajectory_Rejects(t *testing.T) {
	arch := DefaultArchitecture()
	space := arch.States
	employed, _ := space.ByLabel("employed")
	retired, _ := space.ByLabel("retired")
	terminal := space.Terminal()
	ind := Individual{ID: 1, BirthYear: 1990, DeathYear: 2090}

	tests := []struct {
		name    string
		mutate  func([]CareerRow) []CareerRow
		wantErr string
	}{
		{
			"missing row",
			func(rows []CareerRow) []CareerRow { return rows[:len(rows)-1] },
			"expected 36 rows",
		},
		{
			"year gap",
			func(rows []CareerRow) []CareerRow { rows[3].Year++; return rows },
			"expected year",
		},
		{
			"age mismatch",
			func(rows []CareerRow) []CareerRow { rows[3].Age = 99; return rows },
			"age 99 does not match",
		},
		{
			"foreign row",
			func(rows []CareerRow) []CareerRow { rows[2].ID = 7; return rows },
			"row belongs to individual 7",
		},
		{
			"wrong first state",
			func(rows []CareerRow) []CareerRow { rows[0].State = employed; rows[0].Income = 1; rows[0].WorkIntensity = 0.5; return rows },
			`first row must be "inactive"`,
		},
		{
			"resurrection from retirement",
			func(rows []CareerRow) []CareerRow {
				rows[30].State = retired
				rows[30].Income = 0
				rows[30].WorkIntensity = 0
				return rows
			},
			"illegal transition",
		},
		{
			"early death state",
			func(rows []CareerRow) []CareerRow {
				rows[35].State = terminal
				rows[35].Income = 0
				rows[35].WorkIntensity = 0
				return rows
			},
			"deceased before recorded death year",
		},
		{
			"income outside employment",
			func(rows []CareerRow) []CareerRow { rows[0].Income = 5; return rows },
			"income 5 outside employment",
		},
		{
			"employment without income",
			func(rows []CareerRow) []CareerRow { rows[25].Income = 0; return rows },
			"employment year without income",
		},
		{
			"pension outside retirement",
			func(rows []CareerRow) []CareerRow { rows[0].Pension = 10; return rows },
			"pension 10 outside retirement",
		},
		{
			"undefined intensity level",
			func(rows []CareerRow) []CareerRow { rows[25].WorkIntensity = 0.7; return rows },
			"not a defined level",
		},
		{
			"intensity inconsistent with state",
			func(rows []CareerRow) []CareerRow { rows[0].WorkIntensity = IntensityFull; return rows },
			"work intensity inconsistent",
		},
		{
			"job type changes",
			func(rows []CareerRow) []CareerRow { rows[4].JobType = "clerical"; return rows },
			"job type changed",
		},
		{
			"unknown job type",
			func(rows []CareerRow) []CareerRow { rows[4].JobType = "astronaut"; return rows },
			`unknown job type "astronaut"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tt.mutate(validRows(arch, ind, 2025))
			err := ValidateTrajectory(arch, ind, rows, 2025)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var trajErr *TrajectoryError
			if !errors.As(err, &trajErr) {
				t.Fatalf("error type %T, want *TrajectoryError", err)
			}
			if trajErr.ID != ind.ID {
				t.Errorf("error names individual %d, want %d", trajErr.ID, ind.ID)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestTables_Observable(t *testing.T) {
	full := Tables{
		Individuals: []Individual{
			{ID: 1, BirthYear: 1950, DeathYear: 2000},
			{ID: 2, BirthYear: 1960, DeathYear: 2040},
		},
		Careers: []CareerRow{{ID: 1, Year: 1950}},
	}
	obs := full.Observable(2025)

	if obs.Individuals[0].DeathYear != 2000 {
		t.Errorf("observed death censored: %d", obs.Individuals[0].DeathYear)
	}
	if obs.Individuals[1].DeathYear != 0 {
		t.Errorf("future death leaked: %d", obs.Individuals[1].DeathYear)
	}
	if full.Individuals[1].DeathYear != 2040 {
		t.Error("projection must not mutate the full table")
	}
	if obs.Horizon != 2025 {
		t.Errorf("horizon = %d, want 2025", obs.Horizon)
	}
}

func TestCareersByID(t *testing.T) {
	rows := []CareerRow{
		{ID: 1, Year: 2000}, {ID: 1, Year: 2001}, {ID: 2, Year: 1990},
	}
	grouped := CareersByID(rows)
	if len(grouped) != 2 || len(grouped[1]) != 2 || len(grouped[2]) != 1 {
		t.Errorf("unexpected grouping: %v", grouped)
	}
	if grouped[1][1].Year != 2001 {
		t.Error("year order not preserved within an individual")
	}
}

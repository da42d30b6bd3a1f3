package sim

import (
	"fmt"
)

// === Core Tables ===

// Individual is one row of the population register: the product of the
// lifespan layer. DeathYear is always set in full tables; observable
// tables zero it for individuals alive at the horizon.
type Individual struct {
	ID        int64
	BirthYear int
	DeathYear int
}

// Age returns the individual's age in the given calendar year.
func (ind Individual) Age(year int) int {
	return year - ind.BirthYear
}

// CareerRow is one individual-year of the career layer. Income is
// nonzero only in employment years, Pension only in retirement years.
// JobType is the individual's fixed trait, repeated on every row.
type CareerRow struct {
	ID            int64
	Year          int
	Age           int
	State         StateID
	JobType       string
	Income        float64
	Pension       float64
	WorkIntensity float64
}

// Tables bundles the two generated tables. Careers holds every
// individual's rows contiguously, in ID order then year order.
type Tables struct {
	Individuals []Individual
	Careers     []CareerRow
}

// ObservableTables is the estimator-facing projection of Tables: the
// same career rows, with death years censored to 0 for individuals
// whose death falls after the horizon.
type ObservableTables struct {
	Individuals []Individual
	Careers     []CareerRow
	Horizon     int
}

// Observable projects full tables to the observable view.
func (t Tables) Observable(horizon int) ObservableTables {
	inds := make([]Individual, len(t.Individuals))
	for i, ind := range t.Individuals {
		if ind.DeathYear > horizon {
			ind.DeathYear = 0
		}
		inds[i] = ind
	}
	careers := make([]CareerRow, len(t.Careers))
	copy(careers, t.Careers)
	return ObservableTables{Individuals: inds, Careers: careers, Horizon: horizon}
}

// CareersByID groups career rows by individual, preserving year order.
func CareersByID(rows []CareerRow) map[int64][]CareerRow {
	out := make(map[int64][]CareerRow)
	for _, r := range rows {
		out[r.ID] = append(out[r.ID], r)
	}
	return out
}

// === Trajectory Validation ===

// TrajectoryError reports an individual whose trajectory violates a
// structural invariant. It always aborts the run that produced it: a
// trajectory that breaks the state machine is a bug, not noise.
type TrajectoryError struct {
	ID     int64
	Year   int
	Reason string
}

func (e *TrajectoryError) Error() string {
	return fmt.Sprintf("invalid trajectory for individual %d at year %d: %s", e.ID, e.Year, e.Reason)
}

// ValidateTrajectory checks one individual's rows against every
// structural invariant: contiguous years over the observable lifetime,
// legal state ordering, death placement, and derived-variable support.
func ValidateTrajectory(arch *Architecture, ind Individual, rows []CareerRow, horizon int) error {
	space := arch.States
	terminal := space.Terminal()
	employed, _ := space.ByLabel("employed")
	retired, _ := space.ByLabel("retired")

	end := ind.DeathYear
	if horizon < end {
		end = horizon
	}
	wantRows := end - ind.BirthYear + 1
	if len(rows) != wantRows {
		return &TrajectoryError{ID: ind.ID, Year: ind.BirthYear,
			Reason: fmt.Sprintf("expected %d rows for years %d-%d, got %d", wantRows, ind.BirthYear, end, len(rows))}
	}

	for i, r := range rows {
		year := ind.BirthYear + i
		if r.ID != ind.ID {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("row belongs to individual %d", r.ID)}
		}
		if r.Year != year {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("expected year %d, got %d", year, r.Year)}
		}
		if r.Age != year-ind.BirthYear {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("age %d does not match year", r.Age)}
		}
		if _, ok := space.Def(r.State); !ok {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("unknown state %d", r.State)}
		}
		if !contains(arch.JobTypes, r.JobType) {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("unknown job type %q", r.JobType)}
		}
		if r.JobType != rows[0].JobType {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: "job type changed mid-trajectory"}
		}

		if i == 0 {
			if r.State != space.Initial() && !(r.State == terminal && ind.DeathYear == ind.BirthYear) {
				return &TrajectoryError{ID: ind.ID, Year: year,
					Reason: fmt.Sprintf("first row must be %q, got %q", space.Label(space.Initial()), space.Label(r.State))}
			}
		} else if !space.CanFollow(rows[i-1].State, r.State) {
			return &TrajectoryError{ID: ind.ID, Year: year,
				Reason: fmt.Sprintf("illegal transition %q to %q", space.Label(rows[i-1].State), space.Label(r.State))}
		}

		if r.State == terminal && year != ind.DeathYear {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("deceased before recorded death year %d", ind.DeathYear)}
		}
		if year == ind.DeathYear && r.State != terminal {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: "death year row is not deceased"}
		}

		if r.State != employed && r.Income != 0 {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("income %g outside employment", r.Income)}
		}
		if r.State == employed && r.Income <= 0 {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: "employment year without income"}
		}
		if r.State != retired && r.Pension != 0 {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("pension %g outside retirement", r.Pension)}
		}
		switch r.WorkIntensity {
		case IntensityNone, IntensityReentry, IntensityFull:
		default:
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: fmt.Sprintf("work intensity %g not a defined level", r.WorkIntensity)}
		}
		if (r.WorkIntensity != IntensityNone) != (r.State == employed) {
			return &TrajectoryError{ID: ind.ID, Year: year, Reason: "work intensity inconsistent with state"}
		}
	}
	return nil
}

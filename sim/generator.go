package sim

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// === Generator ===

// GenerateOptions tunes one generation run without touching the
// population's identity.
type GenerateOptions struct {
	// Workers caps the generation goroutines. Zero means GOMAXPROCS.
	// The output is byte-identical for every worker count.
	Workers int
}

// Generator produces synthetic populations in two layers: first
// lifespans (birth and death years) from the mortality hazard, then a
// career walk over the state machine for each lifespan. Every derived
// quantity is filled deterministically afterwards.
type Generator struct {
	arch   *Architecture
	cfg    *Config
	exo    Exogenous
	model  *TransitionModel
	hazard *HazardTable
	rng    *PartitionedRNG

	employed StateID
	terminal StateID
}

// NewGenerator validates the configuration against the architecture
// and compiles the sampling tables.
func NewGenerator(arch *Architecture, cfg *Config, exo Exogenous) (*Generator, error) {
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid architecture: %w", err)
	}
	if err := cfg.Validate(arch); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if exo == nil {
		exo = NewNeutralExogenous()
	}
	model, err := NewTransitionModel(arch, &cfg.Params, exo)
	if err != nil {
		return nil, fmt.Errorf("compiling transition model: %w", err)
	}
	employed, _ := arch.States.ByLabel("employed")
	return &Generator{
		arch:     arch,
		cfg:      cfg,
		exo:      exo,
		model:    model,
		hazard:   BuildHazardTable(cfg.Params.Mortality, cfg.Births.StartYear, cfg.Births.EndYear, cfg.MaxAge),
		rng:      NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		employed: employed,
		terminal: arch.States.Terminal(),
	}, nil
}

// Generate produces the full synthetic tables. Individuals are sharded
// across workers; each individual draws from its own seed-derived
// streams, so the result does not depend on scheduling.
//
// The first invalid trajectory aborts the run with a *TrajectoryError.
func (g *Generator) Generate(opts GenerateOptions) (Tables, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := g.cfg.Population
	if workers > n {
		workers = n
	}

	start := time.Now()
	logrus.Infof("generating population: %s", g.cfg.Summary())

	inds := make([]Individual, n)
	rowsByInd := make([][]CareerRow, n)
	errs := make([]error, workers)

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				ind, rows, err := g.generateIndividual(int64(i) + 1)
				if err != nil {
					errs[w] = err
					return
				}
				inds[i] = ind
				rowsByInd[i] = rows
			}
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Tables{}, err
		}
	}

	total := 0
	for _, rows := range rowsByInd {
		total += len(rows)
	}
	careers := make([]CareerRow, 0, total)
	for _, rows := range rowsByInd {
		careers = append(careers, rows...)
	}

	t := Tables{Individuals: inds, Careers: careers}
	g.logSummary(t, time.Since(start), workers)
	return t, nil
}

// generateIndividual runs both layers for one individual. Lifespan and
// career draws come from separate streams keyed by the individual's ID.
func (g *Generator) generateIndividual(id int64) (Individual, []CareerRow, error) {
	lifeRNG := g.rng.ForIndividual(StageLifespan, id)
	birth := g.cfg.Births.Sample(lifeRNG)
	death := SampleDeathYear(lifeRNG, g.hazard, birth, g.cfg.MaxAge)
	ind := Individual{ID: id, BirthYear: birth, DeathYear: death}

	careerRNG := g.rng.ForIndividual(StageCareer, id)
	jobType := SampleJobType(careerRNG, g.arch.JobTypes, g.cfg.Params.JobMix)
	rows := g.walk(ind, jobType, careerRNG)
	ApplyDerived(rows, g.arch.States, g.cfg.Params.Rules)

	if err := ValidateTrajectory(g.arch, ind, rows, g.cfg.Horizon); err != nil {
		return ind, nil, err
	}
	return ind, rows, nil
}

// walk produces the state and income sequence for one lifespan. The
// trajectory covers every year from birth to death or horizon,
// whichever comes first; the death year, when observed, is the single
// terminal row.
func (g *Generator) walk(ind Individual, jobType string, rng *rand.Rand) []CareerRow {
	end := min(ind.DeathYear, g.cfg.Horizon)
	rows := make([]CareerRow, 0, end-ind.BirthYear+1)
	state := g.arch.States.Initial()
	for year := ind.BirthYear; year <= end; year++ {
		age := year - ind.BirthYear
		if year == ind.DeathYear {
			rows = append(rows, CareerRow{ID: ind.ID, Year: year, Age: age, State: g.terminal, JobType: jobType})
			break
		}
		if year > ind.BirthYear {
			state = g.model.Next(rng, state, age, ind.BirthYear)
		}
		row := CareerRow{ID: ind.ID, Year: year, Age: age, State: state, JobType: jobType}
		if state == g.employed {
			row.Income = SampleIncome(rng, g.cfg.Params.Income, jobType, age)
		}
		rows = append(rows, row)
	}
	return rows
}

// logSummary reports run shape without exposing parameter values.
func (g *Generator) logSummary(t Tables, elapsed time.Duration, workers int) {
	deaths := 0
	for _, ind := range t.Individuals {
		if ind.DeathYear <= g.cfg.Horizon {
			deaths++
		}
	}
	logrus.Infof("generated %d individuals (%d deceased by %d), %d career rows in %s with %d workers",
		len(t.Individuals), deaths, g.cfg.Horizon, len(t.Careers), elapsed.Round(time.Millisecond), workers)

	states := make(map[StateID]int)
	var incomes []float64
	for _, r := range t.Careers {
		states[r.State]++
		if r.Income > 0 {
			incomes = append(incomes, r.Income)
		}
	}
	dist := ""
	for id := StateID(0); int(id) < g.arch.States.Len(); id++ {
		if dist != "" {
			dist += " "
		}
		dist += fmt.Sprintf("%s=%d", g.arch.States.Label(id), states[id])
	}
	mean, median := incomeMoments(incomes)
	logrus.Infof("state person-years: %s; income mean=%.0f median=%.0f over %d employment years",
		dist, mean, median, len(incomes))
}

// incomeMoments returns the mean and median of positive incomes.
func incomeMoments(v []float64) (mean, median float64) {
	if len(v) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	sum := 0.0
	for _, x := range sorted {
		sum += x
	}
	mid := len(sorted) / 2
	median = sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return sum / float64(len(sorted)), median
}

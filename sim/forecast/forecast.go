package forecast

import (
	"fmt"
	randv2 "math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
	"github.com/lifecourse-sim/lifecourse-sim/sim/access"
	"github.com/lifecourse-sim/lifecourse-sim/sim/infer"
)

// === Options ===

// DefaultLookahead is how far past the observation horizon a forecast
// extends when no horizon is given.
const DefaultLookahead = 25

// DefaultMaxAge caps lifespans when the caller does not pass the
// published support cap from the dataset header.
const DefaultMaxAge = 110

// Options steer one forecast. The zero value forecasts a single draw
// over the default lookahead.
type Options struct {
	// Draws is the number of posterior draws. Each draw produces one
	// table pair under its own sampled parameter vector. Zero means
	// one.
	Draws int

	// Horizon is the last forecast year. Zero means the observation
	// horizon plus DefaultLookahead.
	Horizon int

	// Population sizes each de-novo draw. Zero means the observed
	// population size. Continuation ignores it: the observed
	// individuals are the population.
	Population int

	// MaxAge bounds lifespans; death is certain at this age. Zero
	// means DefaultMaxAge.
	MaxAge int

	// Seed is the master seed of the forecast stream family. Repeating
	// a forecast with the same posterior, options, and seed reproduces
	// it exactly.
	Seed int64

	// Workers caps the goroutines of each draw. Zero means GOMAXPROCS.
	Workers int
}

func (o Options) withDefaults(obs sim.ObservableTables) Options {
	if o.Draws <= 0 {
		o.Draws = 1
	}
	if o.Horizon == 0 {
		o.Horizon = obs.Horizon + DefaultLookahead
	}
	if o.Population <= 0 {
		o.Population = len(obs.Individuals)
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	return o
}

// === Forecaster ===

// Forecaster projects fitted posteriors past the observation horizon.
// It holds exactly what the forecaster role may see: the shared
// architecture, the censored tables, and the scenario environment.
type Forecaster struct {
	arch *sim.Architecture
	obs  sim.ObservableTables
	exo  sim.Exogenous
}

// New builds a Forecaster from the forecaster's view of an experiment.
// A nil exo forecasts under the neutral environment.
func New(view access.ForecasterView, exo sim.Exogenous) *Forecaster {
	return NewFromObservable(view.Architecture(), view.Observable(), exo)
}

// NewFromObservable builds a Forecaster directly from the artifacts the
// forecaster role may hold, for callers working from files rather than
// an in-process boundary.
func NewFromObservable(arch *sim.Architecture, obs sim.ObservableTables, exo sim.Exogenous) *Forecaster {
	if exo == nil {
		exo = sim.NewNeutralExogenous()
	}
	return &Forecaster{arch: arch, obs: obs, exo: exo}
}

// Result is one posterior draw's forecast: the sampled parameter
// vector and the tables it produced. Tables follow full-table
// semantics, death years included.
type Result struct {
	Draw   int
	Params sim.Params
	Tables sim.Tables
}

// check rejects option and posterior combinations no draw can satisfy.
func (f *Forecaster) check(post *infer.Posterior, opts Options) error {
	if post == nil {
		return fmt.Errorf("posterior must not be nil")
	}
	if post.ArchitectureID != f.arch.ID() {
		return fmt.Errorf("posterior %s was fitted under architecture %s, not %s",
			post.ID, post.ArchitectureID, f.arch.ID())
	}
	if len(f.obs.Individuals) == 0 {
		return fmt.Errorf("observable tables hold no individuals")
	}
	if opts.Horizon < f.obs.Horizon {
		return fmt.Errorf("forecast horizon %d precedes observation horizon %d", opts.Horizon, f.obs.Horizon)
	}
	if !post.Diagnostics.Converged {
		logrus.Warnf("forecasting from non-converged posterior %s", post.ID)
	}
	return nil
}

// drawParams samples one parameter vector under the draw's own stream.
// The returned seed keys every other stream of the draw.
func drawParams(post *infer.Posterior, key sim.SimulationKey, draw int) (sim.Params, int64, error) {
	seed := sim.IndividualSeed(key, sim.SubsystemForecast(draw), 0)
	params, err := post.Sample(randv2.NewPCG(uint64(seed), uint64(draw)))
	if err != nil {
		return sim.Params{}, 0, fmt.Errorf("draw %d: sampling posterior: %w", draw, err)
	}
	return params, seed, nil
}

// === De-novo Regeneration ===

// Regenerate synthesizes a fresh population per posterior draw: one
// full generator run under each sampled parameter vector, with birth
// years drawn from the observed empirical schedule. Individual IDs are
// offset per draw so pooled draws never collide.
func (f *Forecaster) Regenerate(post *infer.Posterior, opts Options) ([]Result, error) {
	opts = opts.withDefaults(f.obs)
	if err := f.check(post, opts); err != nil {
		return nil, err
	}
	births := observedBirthSchedule(f.obs)
	key := sim.NewSimulationKey(opts.Seed)

	start := time.Now()
	results := make([]Result, 0, opts.Draws)
	for d := 0; d < opts.Draws; d++ {
		params, seed, err := drawParams(post, key, d)
		if err != nil {
			return nil, err
		}
		cfg := &sim.Config{
			Name:       fmt.Sprintf("forecast-%d", d),
			Seed:       seed,
			Population: opts.Population,
			Horizon:    opts.Horizon,
			MaxAge:     opts.MaxAge,
			Births:     births,
			Params:     params,
		}
		gen, err := sim.NewGenerator(f.arch, cfg, f.exo)
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", d, err)
		}
		t, err := gen.Generate(sim.GenerateOptions{Workers: opts.Workers})
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", d, err)
		}
		offsetIDs(&t, int64(d)*int64(opts.Population))
		results = append(results, Result{Draw: d, Params: params, Tables: t})
	}
	logrus.Infof("regenerated %d draws of %d individuals through %d in %s",
		opts.Draws, opts.Population, opts.Horizon, time.Since(start).Round(time.Millisecond))
	return results, nil
}

// observedBirthSchedule fits the empirical birth-year distribution of
// the observed population, so regenerated cohort shares track the data
// even when the generating schedule was not uniform.
func observedBirthSchedule(obs sim.ObservableTables) sim.BirthSchedule {
	lo, hi := obs.Individuals[0].BirthYear, obs.Individuals[0].BirthYear
	for _, ind := range obs.Individuals {
		lo = min(lo, ind.BirthYear)
		hi = max(hi, ind.BirthYear)
	}
	weights := make([]float64, hi-lo+1)
	for _, ind := range obs.Individuals {
		weights[ind.BirthYear-lo]++
	}
	return sim.BirthSchedule{StartYear: lo, EndYear: hi, Weights: weights}
}

// offsetIDs shifts every individual and career ID by the draw's base
// offset.
func offsetIDs(t *sim.Tables, offset int64) {
	if offset == 0 {
		return
	}
	for i := range t.Individuals {
		t.Individuals[i].ID += offset
	}
	for i := range t.Careers {
		t.Careers[i].ID += offset
	}
}

// === Continuation ===

// Continue resumes every censored individual past the horizon under
// each posterior draw. Completed trajectories pass through unchanged.
// Censored ones get a death year redrawn conditional on survival to
// the horizon, a career walk from their last observed state, and
// derived values computed over the full income history; the observed
// rows themselves are preserved exactly as recorded. Individual IDs
// are kept, so a continued individual is joinable to its observed
// prefix across draws.
func (f *Forecaster) Continue(post *infer.Posterior, opts Options) ([]Result, error) {
	opts = opts.withDefaults(f.obs)
	if err := f.check(post, opts); err != nil {
		return nil, err
	}
	births := observedBirthSchedule(f.obs)
	byID := sim.CareersByID(f.obs.Careers)
	key := sim.NewSimulationKey(opts.Seed)
	employed, _ := f.arch.States.ByLabel("employed")

	censored := 0
	for _, ind := range f.obs.Individuals {
		if ind.DeathYear == 0 {
			censored++
		}
	}

	start := time.Now()
	results := make([]Result, 0, opts.Draws)
	for d := 0; d < opts.Draws; d++ {
		params, seed, err := drawParams(post, key, d)
		if err != nil {
			return nil, err
		}
		if err := params.Validate(f.arch); err != nil {
			return nil, fmt.Errorf("draw %d: sampled parameters: %w", d, err)
		}
		model, err := sim.NewTransitionModel(f.arch, &params, f.exo)
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", d, err)
		}
		run := &continuation{
			arch:     f.arch,
			obs:      f.obs,
			opts:     opts,
			income:   params.Income,
			rules:    params.Rules,
			model:    model,
			hazard:   sim.BuildHazardTable(params.Mortality, births.StartYear, births.EndYear, opts.MaxAge),
			rng:      sim.NewPartitionedRNG(sim.NewSimulationKey(seed)),
			byID:     byID,
			employed: employed,
			terminal: f.arch.States.Terminal(),
		}
		t, err := run.extendAll(opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", d, err)
		}
		results = append(results, Result{Draw: d, Params: params, Tables: t})
	}
	logrus.Infof("continued %d individuals (%d censored) through %d across %d draws in %s",
		len(f.obs.Individuals), censored, opts.Horizon, opts.Draws, time.Since(start).Round(time.Millisecond))
	return results, nil
}

// continuation is one draw's resume state: the sampled model compiled
// once, shared read-only across workers.
type continuation struct {
	arch   *sim.Architecture
	obs    sim.ObservableTables
	opts   Options
	income sim.IncomeParams
	rules  sim.RuleCoefficients
	model  *sim.TransitionModel
	hazard *sim.HazardTable
	rng    *sim.PartitionedRNG
	byID   map[int64][]sim.CareerRow

	employed sim.StateID
	terminal sim.StateID
}

// extendAll shards individuals across workers the way the generator
// does. Per-individual streams keep the output identical for any
// worker count.
func (c *continuation) extendAll(workers int) (sim.Tables, error) {
	n := len(c.obs.Individuals)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	inds := make([]sim.Individual, n)
	rowsByInd := make([][]sim.CareerRow, n)
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
				ind, rows, err := c.extendIndividual(c.obs.Individuals[i])
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
			return sim.Tables{}, err
		}
	}

	total := 0
	for _, rows := range rowsByInd {
		total += len(rows)
	}
	careers := make([]sim.CareerRow, 0, total)
	for _, rows := range rowsByInd {
		careers = append(careers, rows...)
	}
	return sim.Tables{Individuals: inds, Careers: careers}, nil
}

// extendIndividual returns the individual with a definite death year
// and their trajectory through the forecast horizon.
func (c *continuation) extendIndividual(ind sim.Individual) (sim.Individual, []sim.CareerRow, error) {
	observed := c.byID[ind.ID]
	if len(observed) == 0 {
		return ind, nil, fmt.Errorf("individual %d has no observed rows", ind.ID)
	}

	if ind.DeathYear != 0 {
		// Death observed: the trajectory is already complete.
		rows := make([]sim.CareerRow, len(observed))
		copy(rows, observed)
		return ind, rows, nil
	}

	last := observed[len(observed)-1]
	if last.Year != c.obs.Horizon {
		return ind, nil, fmt.Errorf("individual %d is censored but observed only to %d, horizon %d",
			ind.ID, last.Year, c.obs.Horizon)
	}
	ageAtHorizon := c.obs.Horizon - ind.BirthYear
	if ageAtHorizon >= c.opts.MaxAge {
		return ind, nil, fmt.Errorf("individual %d is age %d at the horizon, at or past the lifespan cap %d",
			ind.ID, ageAtHorizon, c.opts.MaxAge)
	}

	ind.DeathYear = c.resumeDeath(ind, ageAtHorizon)
	rows := c.resumeCareer(ind, last, observed)
	if err := sim.ValidateTrajectory(c.arch, ind, rows, c.opts.Horizon); err != nil {
		return ind, nil, err
	}
	return ind, rows, nil
}

// resumeDeath redraws the death year conditional on survival to the
// horizon: surviving the observation window means every hazard draw up
// to the horizon age came up alive, so the walk picks up at the first
// unobserved age. Death is certain at the cap.
func (c *continuation) resumeDeath(ind sim.Individual, ageAtHorizon int) int {
	rng := c.rng.ForIndividual(sim.StageLifespan, ind.ID)
	for age := ageAtHorizon + 1; age < c.opts.MaxAge; age++ {
		if rng.Float64() < c.hazard.Q(ind.BirthYear, age) {
			return ind.BirthYear + age
		}
	}
	return ind.BirthYear + c.opts.MaxAge
}

// resumeCareer walks the career forward from the last observed state
// and fills derived values over the full trajectory. The pension base
// reads the whole employment history, observed years included, and the
// observed prefix then keeps its recorded values.
func (c *continuation) resumeCareer(ind sim.Individual, last sim.CareerRow, observed []sim.CareerRow) []sim.CareerRow {
	rng := c.rng.ForIndividual(sim.StageCareer, ind.ID)
	end := min(ind.DeathYear, c.opts.Horizon)

	rows := make([]sim.CareerRow, len(observed), len(observed)+end-c.obs.Horizon)
	copy(rows, observed)

	state := last.State
	for year := c.obs.Horizon + 1; year <= end; year++ {
		age := year - ind.BirthYear
		if year == ind.DeathYear {
			rows = append(rows, sim.CareerRow{ID: ind.ID, Year: year, Age: age, State: c.terminal, JobType: last.JobType})
			break
		}
		state = c.model.Next(rng, state, age, ind.BirthYear)
		row := sim.CareerRow{ID: ind.ID, Year: year, Age: age, State: state, JobType: last.JobType}
		if state == c.employed {
			row.Income = sim.SampleIncome(rng, c.income, last.JobType, age)
		}
		rows = append(rows, row)
	}

	sim.ApplyDerived(rows, c.arch.States, c.rules)
	copy(rows[:len(observed)], observed)
	return rows
}

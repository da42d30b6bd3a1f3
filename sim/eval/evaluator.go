package eval

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
	"github.com/lifecourse-sim/lifecourse-sim/sim/access"
	"github.com/lifecourse-sim/lifecourse-sim/sim/infer"
)

// Evaluator scores estimates and regenerated datasets against the
// ground truth behind the boundary. Construct it from an evaluator
// view; no other role can.
type Evaluator struct {
	arch *sim.Architecture
	cfg  *sim.Config
	full sim.Tables
}

// New builds an evaluator over one experiment's ground truth.
func New(view access.EvaluatorView) *Evaluator {
	return &Evaluator{
		arch: view.Architecture(),
		cfg:  view.Config(),
		full: view.FullTables(),
	}
}

// Parametric scores a posterior against the true parameter bundle.
func (e *Evaluator) Parametric(post *infer.Posterior) ParametricSection {
	return compareParameters(e.arch, &e.cfg.Params, post)
}

// Aggregates compares yearly series of a regenerated or forecast
// dataset against the true ones over the shared years.
func (e *Evaluator) Aggregates(other sim.Tables) AggregateSection {
	return compareAggregates(e.full.Careers, other.Careers)
}

// Distributions compares stratified income and pension distributions.
// minSample <= 0 selects the default threshold.
func (e *Evaluator) Distributions(other sim.Tables, minSample int) DistributionSection {
	return compareDistributions(e.full.Careers, other.Careers, minSample)
}

// Report runs every section the inputs allow and assembles the
// artifact: parametric checks when a posterior is given, aggregate and
// distributional sections when comparison tables are given.
func (e *Evaluator) Report(post *infer.Posterior, comparison *sim.Tables, label string) *Report {
	started := time.Now()
	r := &Report{
		ID:              newReportID(),
		CreatedAt:       started.UTC(),
		ConfigID:        e.cfg.ID(),
		ArchitectureID:  e.arch.ID(),
		ComparisonLabel: label,
	}
	if post != nil {
		r.PosteriorID = post.ID
		resources := post.Resources
		r.FitResources = &resources
		if post.ArchitectureID != r.ArchitectureID {
			r.Notes = append(r.Notes,
				"posterior was fitted under a different architecture; parametric checks may join wrong names")
		}
		if !post.Diagnostics.Converged {
			r.Notes = append(r.Notes, "posterior is flagged not converged; read parametric checks accordingly")
		}
		section := e.Parametric(post)
		r.Parametric = &section
	}
	if comparison != nil {
		agg := e.Aggregates(*comparison)
		r.Aggregates = &agg
		dist := e.Distributions(*comparison, 0)
		r.Distributions = &dist
	}
	logrus.Infof("Evaluation report %s assembled in %s: %s", r.ID, time.Since(started).Round(time.Millisecond), r.Summary())
	return r
}

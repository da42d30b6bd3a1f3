// Package infer recovers population parameters from observable tables.
//
// # Reading Guide
//
// The estimator splits the parameter bundle into blocks by tractability:
//   - observations.go: sufficient statistics extracted once from the
//     censored tables (transition counts per regime, income regression
//     moments, job-type counts, hazard exposure cells, pension ratios)
//   - conjugate.go: blocks with closed-form posteriors (Dirichlet
//     transition rows, Normal-inverse-gamma income regression,
//     Dirichlet job mix, the revaluation-rate identity)
//   - mortality.go, laplace.go, metropolis.go: the censored-hazard
//     block, which has no closed form; a Strategy approximates it
//   - estimator.go: Fit, which runs every block, measures resources,
//     and assembles the Posterior artifact
//
// # Convergence and Budgets
//
// Approximate strategies run under an iteration and wall-clock budget
// and check their context between iterations. A fit that exhausts its
// budget or fails its convergence checks still returns a Posterior:
// the artifact is flagged not-converged and carries diagnostics, and
// downstream consumers decide what to do with it. Fit returns an error
// only for structural problems, such as empty observations.
//
// # What the Estimator Sees
//
// Everything here works from the architecture, the scenario, and the
// death-censored tables. Nothing in this package imports a Config or
// uncensored data; see sim/access for the boundary that keeps it so.
package infer

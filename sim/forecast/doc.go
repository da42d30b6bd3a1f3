// Package forecast projects a fitted posterior forward in time.
//
// A forecast never runs from a point estimate. Each draw samples a
// complete parameter vector from the posterior and drives the
// generation machinery under it, so the spread across draws carries
// parameter uncertainty and not just sampling noise. Two modes answer
// the two questions a fitted model supports:
//
//   - Regenerate synthesizes a fresh population per draw, with birth
//     years drawn from the observed empirical schedule: what do
//     populations like this one look like beyond the horizon.
//   - Continue resumes every censored individual from their last
//     observed row, with death redrawn conditional on survival to the
//     horizon: what happens next to these particular individuals.
//
// Like the estimator, the forecaster works behind the access boundary.
// access.ForecasterView exposes the shared architecture and the
// censored tables only; the generating Config never reaches this
// package. Forecast tables follow full-table semantics, death years
// included, and the evaluator consumes them unchanged.
package forecast

// Package eval scores recovery experiments against ground truth.
//
// The evaluator is the one pipeline role allowed behind the access
// boundary: judging an estimate means comparing it to the Config and
// the uncensored tables that produced the data. It answers three
// questions, each in its own section of the report:
//
//   - parametric: does each posterior marginal sit near its true
//     value, and do the credible intervals cover it? (report.go joins
//     the two sides by canonical parameter name)
//   - aggregate: do yearly population series (active counts,
//     pensioner counts, income and pension flows) from a regenerated
//     or forecast dataset track the true ones over the years both
//     cover?
//   - distributional: how far apart are the income and pension
//     distributions, stratum by stratum, in exact one-dimensional
//     Wasserstein distance?
//
// Reports are JSON artifacts with their own identity, written to the
// reports scope of a run layout.
package eval

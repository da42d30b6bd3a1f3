// Package sim provides the core life-course simulation engine: a
// two-layer stochastic generator that turns a parameter bundle into
// synthetic population and career tables.
//
// # Reading Guide
//
// Start with these three files to understand the generative model:
//   - state.go: the extensible state space and the absorption ordering
//   - mortality.go: layer one, the cohort hazard that fixes lifespans
//   - generator.go: layer two, the career walk over each lifespan and
//     the deterministic derived-variable pass
//
// # Architecture
//
// The sim package owns the generative semantics; the surrounding
// pipeline lives in sub-packages:
//   - sim/scenario/: exogenous environments (unemployment paths,
//     statutory retirement schedules)
//   - sim/access/: the role boundary separating ground truth from
//     estimation code
//   - sim/dataset/: on-disk tables and the scoped artifact layout
//   - sim/infer/: parameter recovery from observable tables
//   - sim/eval/: recovery reports comparing estimates to ground truth
//   - sim/forecast/: population regeneration from posterior draws
//
// # Key Types
//
// Two artifacts anchor the pipeline:
//   - Architecture: the structural declaration (states, job types,
//     regime boundaries, rule formulas). Shared with every role.
//   - Config: a named parameter bundle plus run identity. Hidden from
//     estimation and forecasting code; see sim/access for the rules.
//
// Params is the numeric bundle inside a Config. The generator consumes
// it directly; the forecaster reconstructs one from posterior draws
// without ever seeing the original.
//
// Determinism is load-bearing throughout: a Config fully determines
// its tables. rng.go derives one stream per individual and stage, so
// results do not depend on worker count or scheduling.
package sim

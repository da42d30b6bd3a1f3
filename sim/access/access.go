// Package access enforces the information boundary of a recovery
// experiment: which pipeline role may read which artifact.
//
// The rules exist to keep an experiment honest. Estimation and
// forecasting must work from observable data alone; a code path that
// hands them the generating Config or the uncensored tables invalidates
// every recovery claim downstream.
//
// Enforcement is layered:
//   - compile time: the per-role views (EstimatorView, ForecasterView)
//     simply have no accessor for forbidden artifacts
//   - run time: the Role-keyed Boundary methods check the permission
//     matrix and fail loudly with a *PermissionError
//   - at rest: sim/dataset maps artifact kinds to scoped directories
//     and consults the same matrix before reading
package access

import (
	"fmt"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// Role identifies a pipeline role.
type Role uint8

const (
	RoleGenerator Role = iota
	RoleEstimator
	RoleEvaluator
	RoleForecaster
)

// String returns the role's name.
func (r Role) String() string {
	switch r {
	case RoleGenerator:
		return "generator"
	case RoleEstimator:
		return "estimator"
	case RoleEvaluator:
		return "evaluator"
	case RoleForecaster:
		return "forecaster"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Kind identifies a protected artifact class.
type Kind uint8

const (
	// KindConfig is the generating parameter bundle: ground truth.
	KindConfig Kind = iota

	// KindArchitecture is the shared structural declaration.
	KindArchitecture

	// KindFullData is the uncensored tables, death years included.
	KindFullData

	// KindObservableData is the death-censored projection.
	KindObservableData
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindArchitecture:
		return "architecture"
	case KindFullData:
		return "full data"
	case KindObservableData:
		return "observable data"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Allowed reports the permission matrix. The architecture and the
// observable projection are open to every role; the Config and the
// full tables are open only to the generator that made them and the
// evaluator that scores against them.
func Allowed(role Role, kind Kind) bool {
	switch kind {
	case KindArchitecture, KindObservableData:
		return true
	case KindConfig, KindFullData:
		return role == RoleGenerator || role == RoleEvaluator
	default:
		return false
	}
}

// PermissionError reports a denied read. It is always a programming or
// wiring error, never a recoverable condition: callers crash on it.
type PermissionError struct {
	Role Role
	Kind Kind
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("access violation: role %s may not read %s", e.Role, e.Kind)
}

// === Boundary ===

// Boundary holds one experiment's artifacts and serves them by role.
// The zero value is unusable; construct with NewBoundary.
type Boundary struct {
	cfg  *sim.Config
	arch *sim.Architecture
	full sim.Tables
	obs  sim.ObservableTables
}

// NewBoundary wraps an experiment's artifacts. The observable
// projection is derived here, once, so every reader sees the same
// censoring.
func NewBoundary(cfg *sim.Config, arch *sim.Architecture, full sim.Tables) *Boundary {
	return &Boundary{
		cfg:  cfg,
		arch: arch,
		full: full,
		obs:  full.Observable(cfg.Horizon),
	}
}

// Config returns the generating Config, or a *PermissionError.
func (b *Boundary) Config(role Role) (*sim.Config, error) {
	if !Allowed(role, KindConfig) {
		return nil, &PermissionError{Role: role, Kind: KindConfig}
	}
	return b.cfg, nil
}

// Architecture returns the shared declaration. Every role may read it;
// the error return keeps the call shape uniform.
func (b *Boundary) Architecture(role Role) (*sim.Architecture, error) {
	if !Allowed(role, KindArchitecture) {
		return nil, &PermissionError{Role: role, Kind: KindArchitecture}
	}
	return b.arch, nil
}

// FullTables returns the uncensored tables, or a *PermissionError.
func (b *Boundary) FullTables(role Role) (sim.Tables, error) {
	if !Allowed(role, KindFullData) {
		return sim.Tables{}, &PermissionError{Role: role, Kind: KindFullData}
	}
	return b.full, nil
}

// Observable returns the censored projection.
func (b *Boundary) Observable(role Role) (sim.ObservableTables, error) {
	if !Allowed(role, KindObservableData) {
		return sim.ObservableTables{}, &PermissionError{Role: role, Kind: KindObservableData}
	}
	return b.obs, nil
}

// === Compile-time Views ===

// EstimatorView is what estimation code receives: the architecture and
// the observable tables. There is no Config accessor to misuse.
type EstimatorView struct {
	b *Boundary
}

// ForEstimator narrows the boundary to the estimator's surface.
func (b *Boundary) ForEstimator() EstimatorView {
	return EstimatorView{b: b}
}

// Architecture returns the shared declaration.
func (v EstimatorView) Architecture() *sim.Architecture {
	return v.b.arch
}

// Observable returns the censored tables.
func (v EstimatorView) Observable() sim.ObservableTables {
	return v.b.obs
}

// ForecasterView is what forecasting code receives. Like the
// estimator's view, it cannot reach the Config or the full tables.
type ForecasterView struct {
	b *Boundary
}

// ForForecaster narrows the boundary to the forecaster's surface.
func (b *Boundary) ForForecaster() ForecasterView {
	return ForecasterView{b: b}
}

// Architecture returns the shared declaration.
func (v ForecasterView) Architecture() *sim.Architecture {
	return v.b.arch
}

// Observable returns the censored tables.
func (v ForecasterView) Observable() sim.ObservableTables {
	return v.b.obs
}

// EvaluatorView is what evaluation code receives: everything, because
// scoring a recovery means comparing against ground truth.
type EvaluatorView struct {
	b *Boundary
}

// ForEvaluator narrows the boundary to the evaluator's surface.
func (b *Boundary) ForEvaluator() EvaluatorView {
	return EvaluatorView{b: b}
}

// Config returns the generating Config.
func (v EvaluatorView) Config() *sim.Config {
	return v.b.cfg
}

// Architecture returns the shared declaration.
func (v EvaluatorView) Architecture() *sim.Architecture {
	return v.b.arch
}

// FullTables returns the uncensored tables.
func (v EvaluatorView) FullTables() sim.Tables {
	return v.b.full
}

// Observable returns the censored tables.
func (v EvaluatorView) Observable() sim.ObservableTables {
	return v.b.obs
}

package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
	"github.com/lifecourse-sim/lifecourse-sim/sim/access"
)

// Scope names the visibility class of an artifact directory inside a
// run. The directory split is the at-rest arm of the access rules: a
// process wired to read only shared/ cannot stumble into ground truth.
type Scope string

const (
	// ScopeHidden holds the Config and the uncensored tables.
	ScopeHidden Scope = "hidden"

	// ScopeShared holds the architecture, the scenario, and the
	// observable tables.
	ScopeShared Scope = "shared"

	// ScopeEstimates holds posterior artifacts.
	ScopeEstimates Scope = "estimates"

	// ScopeForecasts holds regenerated table pairs.
	ScopeForecasts Scope = "forecasts"

	// ScopeReports holds evaluation reports.
	ScopeReports Scope = "reports"
)

// ScopeForKind maps a protected artifact kind to its at-rest scope.
func ScopeForKind(kind access.Kind) Scope {
	switch kind {
	case access.KindConfig, access.KindFullData:
		return ScopeHidden
	default:
		return ScopeShared
	}
}

// RunAddress derives the stable directory suffix of a run from the
// identities that define it. Two runs share an address exactly when
// config, architecture, scenario, and population size all match.
func RunAddress(configID, architectureID, scenarioID string, population int) string {
	canon := fmt.Sprintf("run|%s|%s|%s|%d", configID, architectureID, scenarioID, population)
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])[:16]
}

// Layout resolves artifact paths inside one run directory.
type Layout struct {
	Root string
}

// NewLayout returns a layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

// Init creates every scope directory.
func (l Layout) Init() error {
	for _, s := range []Scope{ScopeHidden, ScopeShared, ScopeEstimates, ScopeForecasts, ScopeReports} {
		if err := os.MkdirAll(l.Dir(s), 0o755); err != nil {
			return fmt.Errorf("creating %s scope: %w", s, err)
		}
	}
	return nil
}

// Dir returns the directory of a scope.
func (l Layout) Dir(s Scope) string {
	return filepath.Join(l.Root, string(s))
}

// ConfigPath is the hidden Config artifact.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.Dir(ScopeHidden), "config.yaml")
}

// FullDataDir is the hidden uncensored table pair.
func (l Layout) FullDataDir() string {
	return filepath.Join(l.Dir(ScopeHidden), "full")
}

// ArchitecturePath is the shared structural declaration.
func (l Layout) ArchitecturePath() string {
	return filepath.Join(l.Dir(ScopeShared), "architecture.yaml")
}

// ScenarioPath is the shared scenario spec, when one was used.
func (l Layout) ScenarioPath() string {
	return filepath.Join(l.Dir(ScopeShared), "scenario.yaml")
}

// ObservableDir is the shared censored table pair.
func (l Layout) ObservableDir() string {
	return filepath.Join(l.Dir(ScopeShared), "observable")
}

// PosteriorPath is a posterior artifact under estimates/.
func (l Layout) PosteriorPath(id string) string {
	return filepath.Join(l.Dir(ScopeEstimates), fmt.Sprintf("posterior-%s.json", id))
}

// ReportPath is an evaluation report under reports/.
func (l Layout) ReportPath(id string) string {
	return filepath.Join(l.Dir(ScopeReports), fmt.Sprintf("report-%s.json", id))
}

// ForecastDir is one regenerated table pair under forecasts/.
func (l Layout) ForecastDir(label string) string {
	return filepath.Join(l.Dir(ScopeForecasts), label)
}

// === Role-checked Reads ===
//
// These helpers are the only read paths the commands use. Each checks
// the permission matrix before touching the filesystem, so a wiring
// mistake surfaces as a *access.PermissionError naming role and kind
// instead of quietly widening a role's view.

// ReadConfig loads the hidden Config for a role.
func (l Layout) ReadConfig(role access.Role) (*sim.Config, error) {
	if !access.Allowed(role, access.KindConfig) {
		return nil, &access.PermissionError{Role: role, Kind: access.KindConfig}
	}
	return sim.LoadConfig(l.ConfigPath())
}

// ReadArchitecture loads the shared declaration for a role.
func (l Layout) ReadArchitecture(role access.Role) (*sim.Architecture, error) {
	if !access.Allowed(role, access.KindArchitecture) {
		return nil, &access.PermissionError{Role: role, Kind: access.KindArchitecture}
	}
	return sim.LoadArchitecture(l.ArchitecturePath())
}

// ReadFullTables loads the hidden uncensored tables for a role.
func (l Layout) ReadFullTables(role access.Role, space *sim.StateSpace) (Header, sim.Tables, error) {
	if !access.Allowed(role, access.KindFullData) {
		return Header{}, sim.Tables{}, &access.PermissionError{Role: role, Kind: access.KindFullData}
	}
	return ReadTables(l.FullDataDir(), space)
}

// ReadObservableTables loads the shared censored tables for a role.
func (l Layout) ReadObservableTables(role access.Role, space *sim.StateSpace) (Header, sim.ObservableTables, error) {
	if !access.Allowed(role, access.KindObservableData) {
		return Header{}, sim.ObservableTables{}, &access.PermissionError{Role: role, Kind: access.KindObservableData}
	}
	return ReadObservable(l.ObservableDir(), space)
}

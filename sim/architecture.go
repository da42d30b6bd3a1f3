package sim

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// === Architecture ===

// Regime names for the transition model. Which regime applies to an
// individual-year depends only on age and the scenario's statutory
// retirement age, never on parameter values.
const (
	// RegimeChildhood covers ages below MinWorkingAge: the individual
	// stays in the initial state, no draw consumed.
	RegimeChildhood = "childhood"

	// RegimePreRetirement covers working ages below the statutory
	// retirement age: transitions move among non-absorbing states.
	RegimePreRetirement = "pre_retirement"

	// RegimePostStatutory covers ages from the statutory age until
	// retirement is forced: the retirement destination opens up.
	RegimePostStatutory = "post_statutory"

	// RegimeForcedRetirement covers ages past statutory +
	// ForcedRetirementLag: any individual not yet absorbed retires, no
	// draw consumed.
	RegimeForcedRetirement = "forced_retirement"
)

// TransitionForm names the functional form of the career layer. A
// single form ships today; the field exists so the shared declaration
// stays honest if alternatives are added.
const TransitionFormRegimeGated = "regime-gated-base-matrix"

// Architecture is the structural declaration of the simulation: state
// space, job vocabulary, regime boundaries, functional forms, and the
// derived-variable rules. It is shared with every pipeline role. It
// carries no parameter values.
type Architecture struct {
	Name                string
	States              *StateSpace
	JobTypes            []string
	MinWorkingAge       int
	ForcedRetirementLag int
	Form                string
}

// DefaultArchitecture returns the canonical architecture: four states,
// three job types, working life from 16, retirement forced five years
// past the statutory age.
func DefaultArchitecture() *Architecture {
	return &Architecture{
		Name:                "lifecourse-v1",
		States:              DefaultStateSpace(),
		JobTypes:            []string{"manual", "clerical", "professional"},
		MinWorkingAge:       16,
		ForcedRetirementLag: 5,
		Form:                TransitionFormRegimeGated,
	}
}

// Validate checks structural consistency.
func (a *Architecture) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("architecture name must not be empty")
	}
	if a.States == nil {
		return fmt.Errorf("architecture has no state space")
	}
	if len(a.JobTypes) == 0 {
		return fmt.Errorf("architecture needs at least one job type")
	}
	seen := make(map[string]bool, len(a.JobTypes))
	for _, jt := range a.JobTypes {
		if jt == "" {
			return fmt.Errorf("job types must be non-empty")
		}
		if seen[jt] {
			return fmt.Errorf("duplicate job type %q", jt)
		}
		seen[jt] = true
	}
	if a.MinWorkingAge < 0 {
		return fmt.Errorf("min_working_age must be >= 0, got %d", a.MinWorkingAge)
	}
	if a.ForcedRetirementLag < 0 {
		return fmt.Errorf("forced_retirement_lag must be >= 0, got %d", a.ForcedRetirementLag)
	}
	if a.Form != TransitionFormRegimeGated {
		return fmt.Errorf("unknown transition form %q (valid: %s)", a.Form, TransitionFormRegimeGated)
	}
	return nil
}

// Regime returns the regime for an individual of the given age under
// the given statutory retirement age.
func (a *Architecture) Regime(age, statutoryAge int) string {
	switch {
	case age < a.MinWorkingAge:
		return RegimeChildhood
	case age < statutoryAge:
		return RegimePreRetirement
	case age < statutoryAge+a.ForcedRetirementLag:
		return RegimePostStatutory
	default:
		return RegimeForcedRetirement
	}
}

// ID returns the structural identity hash: the hex SHA-256 of the
// canonical description. Equal IDs mean the same state space, job
// vocabulary, regime boundaries, form, and rule set.
func (a *Architecture) ID() string {
	sum := sha256.Sum256([]byte(a.describe()))
	return hex.EncodeToString(sum[:])
}

// ShortID returns the first 12 hex characters of ID, used in artifact
// directory names.
func (a *Architecture) ShortID() string {
	return a.ID()[:12]
}

// describe renders the canonical identity string. Rule constants are
// included so a change to the pension or intensity formulas changes the
// identity.
func (a *Architecture) describe() string {
	return strings.Join([]string{
		"v1",
		a.Name,
		"states=" + a.States.describe(),
		"jobs=" + strings.Join(a.JobTypes, ","),
		fmt.Sprintf("min_working_age=%d", a.MinWorkingAge),
		fmt.Sprintf("forced_retirement_lag=%d", a.ForcedRetirementLag),
		"form=" + a.Form,
		fmt.Sprintf("rules=pension:top%d/%g+reval,work_intensity:reentry", TopIncomeYears, PensionDivisor),
	}, "|")
}

// === YAML Round-trip ===

// architectureSpec is the on-disk shape of an Architecture. Only the
// declarative identity persists; rule code ships with the binary.
type architectureSpec struct {
	Name                string     `yaml:"name"`
	States              []StateDef `yaml:"states"`
	JobTypes            []string   `yaml:"job_types"`
	MinWorkingAge       int        `yaml:"min_working_age"`
	ForcedRetirementLag int        `yaml:"forced_retirement_lag"`
	Form                string     `yaml:"form"`
}

// MarshalYAML implements yaml.Marshaler.
func (a *Architecture) MarshalYAML() (interface{}, error) {
	return architectureSpec{
		Name:                a.Name,
		States:              a.States.Defs(),
		JobTypes:            a.JobTypes,
		MinWorkingAge:       a.MinWorkingAge,
		ForcedRetirementLag: a.ForcedRetirementLag,
		Form:                a.Form,
	}, nil
}

// Save writes the architecture declaration to path as YAML.
func (a *Architecture) Save(path string) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling architecture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing architecture: %w", err)
	}
	return nil
}

// LoadArchitecture reads an architecture declaration from a YAML file.
// Unknown fields are rejected.
func LoadArchitecture(path string) (*Architecture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading architecture file: %w", err)
	}
	var spec architectureSpec
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing architecture file %s: %w", path, err)
	}
	states, err := NewStateSpace(spec.States)
	if err != nil {
		return nil, fmt.Errorf("parsing architecture file %s: states: %w", path, err)
	}
	a := &Architecture{
		Name:                spec.Name,
		States:              states,
		JobTypes:            spec.JobTypes,
		MinWorkingAge:       spec.MinWorkingAge,
		ForcedRetirementLag: spec.ForcedRetirementLag,
		Form:                spec.Form,
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid architecture %s: %w", path, err)
	}
	return a, nil
}

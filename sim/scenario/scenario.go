// Package scenario provides exogenous environments for the life-course
// engine: statutory retirement schedules and unemployment paths. A
// scenario is architecture-side knowledge, visible to every pipeline
// role, and never carries population parameters.
package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// BaselineName identifies the built-in neutral scenario.
const BaselineName = "baseline"

// Spec is the on-disk shape of a scenario.
type Spec struct {
	Name         string           `yaml:"name"`
	Retirement   RetirementSpec   `yaml:"statutory_retirement"`
	Unemployment UnemploymentSpec `yaml:"unemployment"`
}

// RetirementSpec sets the statutory retirement age per birth cohort:
// DefaultAge applies to everyone, and each step raises (or lowers) the
// age for cohorts born in or after its FromCohort.
type RetirementSpec struct {
	DefaultAge int              `yaml:"default_age"`
	Steps      []RetirementStep `yaml:"steps,omitempty"`
}

// RetirementStep is one cohort boundary in a retirement schedule.
type RetirementStep struct {
	FromCohort int `yaml:"from_cohort"`
	Age        int `yaml:"age"`
}

// UnemploymentSpec sets the unemployment index per calendar year, with
// a default for unlisted years. 1 is neutral.
type UnemploymentSpec struct {
	DefaultIndex float64         `yaml:"default_index"`
	Years        map[int]float64 `yaml:"years,omitempty"`
}

// Scenario is a validated, immutable environment implementing
// sim.Exogenous.
type Scenario struct {
	name         string
	defaultAge   int
	steps        []RetirementStep
	defaultIndex float64
	years        map[int]float64
}

// New validates a spec and builds a Scenario.
func New(spec Spec) (*Scenario, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("scenario name must not be empty")
	}
	if strings.ContainsAny(spec.Name, "/\\ ") {
		return nil, fmt.Errorf("scenario name %q must not contain path separators or spaces", spec.Name)
	}
	if spec.Retirement.DefaultAge <= 0 {
		return nil, fmt.Errorf("statutory_retirement: default_age must be > 0, got %d", spec.Retirement.DefaultAge)
	}
	steps := make([]RetirementStep, len(spec.Retirement.Steps))
	copy(steps, spec.Retirement.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].FromCohort < steps[j].FromCohort })
	for i, step := range steps {
		if step.Age <= 0 {
			return nil, fmt.Errorf("statutory_retirement: step %d: age must be > 0, got %d", i, step.Age)
		}
		if i > 0 && steps[i-1].FromCohort == step.FromCohort {
			return nil, fmt.Errorf("statutory_retirement: duplicate step for cohort %d", step.FromCohort)
		}
	}
	if spec.Unemployment.DefaultIndex < 0 {
		return nil, fmt.Errorf("unemployment: default_index must be >= 0, got %g", spec.Unemployment.DefaultIndex)
	}
	years := make(map[int]float64, len(spec.Unemployment.Years))
	for year, idx := range spec.Unemployment.Years {
		if idx < 0 {
			return nil, fmt.Errorf("unemployment: index for %d must be >= 0, got %g", year, idx)
		}
		years[year] = idx
	}
	return &Scenario{
		name:         spec.Name,
		defaultAge:   spec.Retirement.DefaultAge,
		steps:        steps,
		defaultIndex: spec.Unemployment.DefaultIndex,
		years:        years,
	}, nil
}

// Baseline returns the neutral environment: the default statutory age
// for every cohort and a unit unemployment index everywhere.
func Baseline() *Scenario {
	s, err := New(Spec{
		Name:         BaselineName,
		Retirement:   RetirementSpec{DefaultAge: sim.DefaultStatutoryAge},
		Unemployment: UnemploymentSpec{DefaultIndex: 1},
	})
	if err != nil {
		panic(fmt.Sprintf("baseline scenario invalid: %v", err))
	}
	return s
}

// Load reads a scenario spec from a YAML file. Unknown fields are
// rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var spec Spec
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}
	return New(spec)
}

// Resolve maps a command-line argument to a scenario: the built-in
// name, or a path to a spec file.
func Resolve(nameOrPath string) (*Scenario, error) {
	if nameOrPath == "" || nameOrPath == BaselineName {
		return Baseline(), nil
	}
	if _, err := os.Stat(nameOrPath); err != nil {
		return nil, fmt.Errorf("unknown scenario %q: not a built-in (valid: %s) and not a readable file", nameOrPath, BaselineName)
	}
	return Load(nameOrPath)
}

// Name returns the scenario's declared name.
func (s *Scenario) Name() string {
	return s.name
}

// StatutoryRetirementAge implements sim.Exogenous.
func (s *Scenario) StatutoryRetirementAge(birthYear int) int {
	age := s.defaultAge
	for _, step := range s.steps {
		if birthYear >= step.FromCohort {
			age = step.Age
		} else {
			break
		}
	}
	return age
}

// UnemploymentIndex implements sim.Exogenous.
func (s *Scenario) UnemploymentIndex(year int) float64 {
	if idx, ok := s.years[year]; ok {
		return idx
	}
	return s.defaultIndex
}

// Spec reconstructs the on-disk shape of the scenario.
func (s *Scenario) Spec() Spec {
	steps := make([]RetirementStep, len(s.steps))
	copy(steps, s.steps)
	years := make(map[int]float64, len(s.years))
	for y, idx := range s.years {
		years[y] = idx
	}
	return Spec{
		Name:         s.name,
		Retirement:   RetirementSpec{DefaultAge: s.defaultAge, Steps: steps},
		Unemployment: UnemploymentSpec{DefaultIndex: s.defaultIndex, Years: years},
	}
}

// Save writes the scenario spec to path as YAML.
func (s *Scenario) Save(path string) error {
	data, err := yaml.Marshal(s.Spec())
	if err != nil {
		return fmt.Errorf("marshaling scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing scenario: %w", err)
	}
	return nil
}

// Describe renders the canonical identity string: name, schedule steps
// in cohort order, year overrides in year order.
func (s *Scenario) Describe() string {
	parts := []string{"scenario", s.name, fmt.Sprintf("default_age=%d", s.defaultAge)}
	for _, step := range s.steps {
		parts = append(parts, fmt.Sprintf("step=%d:%d", step.FromCohort, step.Age))
	}
	parts = append(parts, fmt.Sprintf("default_index=%g", s.defaultIndex))
	years := make([]int, 0, len(s.years))
	for y := range s.years {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		parts = append(parts, fmt.Sprintf("year=%d:%g", y, s.years[y]))
	}
	return strings.Join(parts, "|")
}

// ID returns the hex SHA-256 of the canonical description.
func (s *Scenario) ID() string {
	sum := sha256.Sum256([]byte(s.Describe()))
	return hex.EncodeToString(sum[:])
}

package sim

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// === Config ===

// Config is the complete specification of one synthetic population:
// run identity, population size, observation window, birth schedule,
// and the full parameter bundle.
//
// A Config is the ground truth of a recovery experiment. It is visible
// to the generator and the evaluator only; estimation and forecasting
// code never receives one. See sim/access.
type Config struct {
	Name       string        `yaml:"name"`
	Seed       int64         `yaml:"seed"`
	Population int           `yaml:"population"`
	Horizon    int           `yaml:"horizon"`
	MaxAge     int           `yaml:"max_age"`
	Births     BirthSchedule `yaml:"births"`
	Params     Params        `yaml:"params"`
}

// BirthSchedule assigns birth years. With no weights, years are drawn
// uniformly from [StartYear, EndYear]; otherwise Weights gives one
// relative weight per year in order.
type BirthSchedule struct {
	StartYear int       `yaml:"start_year"`
	EndYear   int       `yaml:"end_year"`
	Weights   []float64 `yaml:"weights,omitempty"`
}

// Validate checks the schedule in isolation.
func (b *BirthSchedule) Validate() error {
	if b.EndYear < b.StartYear {
		return fmt.Errorf("end_year %d before start_year %d", b.EndYear, b.StartYear)
	}
	if len(b.Weights) != 0 {
		if len(b.Weights) != b.Years() {
			return fmt.Errorf("weights length %d does not match %d schedule years", len(b.Weights), b.Years())
		}
		total := 0.0
		for i, w := range b.Weights {
			if w < 0 {
				return fmt.Errorf("weight for year %d must be >= 0, got %g", b.StartYear+i, w)
			}
			total += w
		}
		if total <= 0 {
			return fmt.Errorf("weights must not all be zero")
		}
	}
	return nil
}

// Years returns the number of years the schedule spans.
func (b *BirthSchedule) Years() int {
	return b.EndYear - b.StartYear + 1
}

// Sample draws one birth year.
func (b *BirthSchedule) Sample(rng *rand.Rand) int {
	if len(b.Weights) == 0 {
		return b.StartYear + rng.Intn(b.Years())
	}
	total := 0.0
	for _, w := range b.Weights {
		total += w
	}
	u := rng.Float64() * total
	acc := 0.0
	for i, w := range b.Weights {
		acc += w
		if u < acc {
			return b.StartYear + i
		}
	}
	return b.EndYear
}

// === Validation ===

// Validate checks the Config against an architecture. It reports the
// first violation found.
func (c *Config) Validate(arch *Architecture) error {
	if c.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if strings.ContainsAny(c.Name, "/\\ ") {
		return fmt.Errorf("name %q must not contain path separators or spaces", c.Name)
	}
	if c.Population <= 0 {
		return fmt.Errorf("population must be > 0, got %d", c.Population)
	}
	if c.MaxAge <= arch.MinWorkingAge {
		return fmt.Errorf("max_age must exceed min working age %d, got %d", arch.MinWorkingAge, c.MaxAge)
	}
	if err := c.Births.Validate(); err != nil {
		return fmt.Errorf("births: %w", err)
	}
	if c.Horizon < c.Births.StartYear {
		return fmt.Errorf("horizon %d before first birth year %d", c.Horizon, c.Births.StartYear)
	}
	if err := c.Params.Validate(arch); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

// === Identity ===

// ID returns the content hash of the Config: the hex SHA-256 of its
// canonical YAML rendering. Any parameter change changes the ID.
func (c *Config) ID() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		// Marshal of a validated Config cannot fail.
		panic(fmt.Sprintf("marshaling config for hashing: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortID returns the first 12 hex characters of ID.
func (c *Config) ShortID() string {
	return c.ID()[:12]
}

// Summary returns a one-line description safe to log: it names run
// identity and scale but no parameter values.
func (c *Config) Summary() string {
	return fmt.Sprintf("config %s (id %s): population=%d births=%d-%d horizon=%d seed=%d",
		c.Name, c.ShortID(), c.Population, c.Births.StartYear, c.Births.EndYear, c.Horizon, c.Seed)
}

// === Loading ===

// LoadConfig reads a Config from a YAML file. Unknown fields are
// rejected so a typo fails loudly rather than silently falling back to
// a default. The caller validates against its architecture.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var c Config
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the Config to path as YAML. Callers are responsible for
// placing it under the hidden artifact scope.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// === Default ===

// DefaultConfig returns the reference population: one thousand
// individuals born 1950-2000, observed through 2025.
func DefaultConfig() *Config {
	return &Config{
		Name:       "baseline",
		Seed:       42,
		Population: 1000,
		Horizon:    2025,
		MaxAge:     95,
		Births: BirthSchedule{
			StartYear: 1950,
			EndYear:   2000,
		},
		Params: Params{
			Transitions: TransitionParams{
				PreRetirement: map[string]map[string]float64{
					"inactive": {"inactive": 0.78, "employed": 0.22},
					"employed": {"inactive": 0.05, "employed": 0.95},
				},
				PostStatutory: map[string]map[string]float64{
					"inactive": {"inactive": 0.55, "employed": 0.05, "retired": 0.40},
					"employed": {"inactive": 0.02, "employed": 0.58, "retired": 0.40},
				},
			},
			Mortality: MortalityParams{
				Base:        5.0e-4,
				AgeSlope:    0.08,
				CohortSlope: -0.10,
			},
			Income: IncomeParams{
				LogLevels: map[string]float64{
					"manual":       10.4,
					"clerical":     10.7,
					"professional": 11.1,
				},
				LogSigma: 0.5,
				AgeSlope: 0.025,
			},
			JobMix: JobMixParams{
				Shares: map[string]float64{
					"manual":       0.35,
					"clerical":     0.40,
					"professional": 0.25,
				},
			},
			Rules: RuleCoefficients{
				PensionRevaluationRate: 0.015,
			},
		},
	}
}

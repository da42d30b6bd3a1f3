package sim

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	arch := DefaultArchitecture()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate(arch))
	assert.Equal(t, 1000, cfg.Population)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 51, cfg.Births.Years())
}

func TestConfig_Validate_Errors(t *testing.T) {
	arch := DefaultArchitecture()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"empty name",
			func(c *Config) { c.Name = "" },
			"name must not be empty",
		},
		{
			"name with separator",
			func(c *Config) { c.Name = "a/b" },
			"path separators",
		},
		{
			"zero population",
			func(c *Config) { c.Population = 0 },
			"population must be > 0",
		},
		{
			"horizon before births",
			func(c *Config) { c.Horizon = 1900 },
			"horizon 1900 before first birth year",
		},
		{
			"max age too small",
			func(c *Config) { c.MaxAge = 10 },
			"max_age must exceed",
		},
		{
			"transition row not stochastic",
			func(c *Config) {
				c.Params.Transitions.PreRetirement["inactive"]["employed"] = 0.9
			},
			"must sum to 1",
		},
		{
			"transition to unreachable destination",
			func(c *Config) {
				c.Params.Transitions.PreRetirement["inactive"] = map[string]float64{
					"inactive": 0.5, "employed": 0.2, "retired": 0.3,
				}
			},
			"not reachable in this regime",
		},
		{
			"row for absorbing state",
			func(c *Config) {
				c.Params.Transitions.PostStatutory["retired"] = map[string]float64{"retired": 1}
			},
			"absorbing states take no transition row",
		},
		{
			"negative probability",
			func(c *Config) {
				c.Params.Transitions.PostStatutory["inactive"] = map[string]float64{
					"inactive": -0.1, "employed": 0.7, "retired": 0.4,
				}
			},
			"must be in [0, 1]",
		},
		{
			"missing transition row",
			func(c *Config) { delete(c.Params.Transitions.PreRetirement, "employed") },
			`missing row for state "employed"`,
		},
		{
			"nonpositive mortality base",
			func(c *Config) { c.Params.Mortality.Base = 0 },
			"base must be > 0",
		},
		{
			"negative age slope",
			func(c *Config) { c.Params.Mortality.AgeSlope = -0.1 },
			"age_slope must be >= 0",
		},
		{
			"missing income level",
			func(c *Config) { delete(c.Params.Income.LogLevels, "clerical") },
			`log_levels missing job type "clerical"`,
		},
		{
			"unknown income level",
			func(c *Config) { c.Params.Income.LogLevels["farmer"] = 10 },
			"unknown job type",
		},
		{
			"nonpositive sigma",
			func(c *Config) { c.Params.Income.LogSigma = 0 },
			"log_sigma must be > 0",
		},
		{
			"job shares not summing",
			func(c *Config) { c.Params.JobMix.Shares["manual"] = 0.5 },
			"shares must sum to 1",
		},
		{
			"revaluation rate at -1",
			func(c *Config) { c.Params.Rules.PensionRevaluationRate = -1 },
			"pension_revaluation_rate must be > -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate(arch)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ID_TracksContent(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	assert.Equal(t, a.ID(), b.ID(), "identical configs must hash identically")

	b.Params.Mortality.Base = 6.0e-4
	assert.NotEqual(t, a.ID(), b.ID(), "a parameter change must change the ID")
	assert.Len(t, a.ID(), 64)
	assert.Equal(t, a.ID()[:12], a.ShortID())
}

func TestConfig_Summary_HidesParams(t *testing.T) {
	s := DefaultConfig().Summary()
	assert.Contains(t, s, "population=1000")
	assert.NotContains(t, s, "0.08", "summary must not leak parameter values")
	assert.NotContains(t, s, "transition")
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	orig := DefaultConfig()
	require.NoError(t, orig.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate(DefaultArchitecture()))
	assert.Equal(t, orig.ID(), loaded.ID(), "round-trip must preserve identity")
}

func TestLoadConfig_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := strings.Join([]string{
		"name: typo-test",
		"seed: 1",
		"popluation: 10",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "popluation")
}

func TestBirthSchedule_Sample(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	uniform := BirthSchedule{StartYear: 1950, EndYear: 1952}
	for i := 0; i < 200; i++ {
		y := uniform.Sample(rng)
		if y < 1950 || y > 1952 {
			t.Fatalf("sampled year %d outside schedule", y)
		}
	}

	// BDD: Zero-weight years are never drawn
	weighted := BirthSchedule{StartYear: 1950, EndYear: 1952, Weights: []float64{1, 0, 1}}
	require.NoError(t, weighted.Validate())
	for i := 0; i < 200; i++ {
		if y := weighted.Sample(rng); y == 1951 {
			t.Fatal("sampled a zero-weight year")
		}
	}
}

func TestBirthSchedule_Validate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sched   BirthSchedule
		wantErr string
	}{
		{"reversed years", BirthSchedule{StartYear: 2000, EndYear: 1990}, "before start_year"},
		{"weight length", BirthSchedule{StartYear: 1950, EndYear: 1952, Weights: []float64{1}}, "weights length"},
		{"negative weight", BirthSchedule{StartYear: 1950, EndYear: 1951, Weights: []float64{1, -2}}, "must be >= 0"},
		{"all zero weights", BirthSchedule{StartYear: 1950, EndYear: 1951, Weights: []float64{0, 0}}, "not all be zero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sched.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

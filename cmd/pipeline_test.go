package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
	"github.com/lifecourse-sim/lifecourse-sim/sim/dataset"
	"github.com/lifecourse-sim/lifecourse-sim/sim/eval"
	"github.com/lifecourse-sim/lifecourse-sim/sim/forecast"
	"github.com/lifecourse-sim/lifecourse-sim/sim/infer"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

// smallConfig writes a reduced population config and returns its path.
func smallConfig(t *testing.T, population int) string {
	t.Helper()
	cfg := sim.DefaultConfig()
	cfg.Population = population
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

// BDD: the pipeline chains every phase over one run directory and
// leaves a recovery report plus one scored forecast per draw.
func TestPipelineEndToEnd(t *testing.T) {
	out := t.TempDir()
	configPath := smallConfig(t, 200)

	reports, err := runPipeline(configPath, "", "", out, infer.StrategyLaplace, 17, 1, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// GIVEN the run directory the pipeline laid out
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	layout := dataset.NewLayout(filepath.Join(out, entries[0].Name()))

	for _, scope := range []dataset.Scope{dataset.ScopeHidden, dataset.ScopeShared, dataset.ScopeEstimates, dataset.ScopeForecasts, dataset.ScopeReports} {
		if _, err := os.Stat(layout.Dir(scope)); err != nil {
			t.Fatalf("scope %s missing: %v", scope, err)
		}
	}

	// THEN the shared tables are censored and carry no seed
	obsHeader, err := dataset.ReadHeader(layout.ObservableDir())
	require.NoError(t, err)
	assert.True(t, obsHeader.Censored)
	assert.Zero(t, obsHeader.Seed)
	assert.Equal(t, dataset.SourceGenerator, obsHeader.Source)

	// AND the recovery report scores parameters only
	recovery, err := eval.LoadReport(reports[0])
	require.NoError(t, err)
	require.NotNil(t, recovery.Parametric)
	assert.Nil(t, recovery.Aggregates)
	assert.NotEmpty(t, recovery.Parametric.Checks)

	// AND the forecast report compares tables tagged source: forecast
	fcHeader, err := dataset.ReadHeader(layout.ForecastDir("regenerate-0"))
	require.NoError(t, err)
	assert.Equal(t, dataset.SourceForecast, fcHeader.Source)

	scored, err := eval.LoadReport(reports[1])
	require.NoError(t, err)
	assert.Equal(t, "regenerate-0", scored.ComparisonLabel)
	require.NotNil(t, scored.Aggregates)
	require.NotNil(t, scored.Distributions)
}

// BDD: estimation runs entirely from the shared scope; deleting the
// hidden ground truth does not touch it.
func TestEstimateNeedsOnlySharedScope(t *testing.T) {
	layout, err := runGenerate(smallConfig(t, 150), "", "", t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(layout.Dir(dataset.ScopeHidden)))

	path, post, err := runEstimate(layout.Root, infer.Options{Strategy: infer.StrategyLaplace, Seed: 3})
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.NotEmpty(t, post.Marginals)
}

// BDD: evaluation is the role that does need hidden ground truth.
func TestEvaluateRequiresHiddenScope(t *testing.T) {
	layout, err := runGenerate(smallConfig(t, 150), "", "", t.TempDir(), 0)
	require.NoError(t, err)
	_, _, err = runEstimate(layout.Root, infer.Options{Strategy: infer.StrategyLaplace, Seed: 3})
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(layout.Dir(dataset.ScopeHidden)))

	_, _, err = runEvaluate(layout.Root, "", "")
	require.Error(t, err)
}

// BDD: the same config lands at the same address with byte-identical
// tables, wherever the run is laid out.
func TestGenerateIsReproducible(t *testing.T) {
	configPath := smallConfig(t, 100)

	a, err := runGenerate(configPath, "", "", t.TempDir(), 1)
	require.NoError(t, err)
	b, err := runGenerate(configPath, "", "", t.TempDir(), 4)
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(a.Root), filepath.Base(b.Root))
	for _, name := range []string{"individuals.csv", "careers.csv"} {
		fa, err := os.ReadFile(filepath.Join(a.FullDataDir(), name))
		require.NoError(t, err)
		fb, err := os.ReadFile(filepath.Join(b.FullDataDir(), name))
		require.NoError(t, err)
		assert.Equal(t, fa, fb, "file %s differs between runs", name)
	}
}

func TestForecastRejectsUnknownMode(t *testing.T) {
	_, err := runForecast(t.TempDir(), "", "oracle", "", forecast.Options{})
	require.ErrorContains(t, err, "unknown forecast mode")
	require.ErrorContains(t, err, modeRegenerate)
}

func TestResolvePosteriorPicksNewest(t *testing.T) {
	layout := dataset.NewLayout(t.TempDir())
	require.NoError(t, layout.Init())
	older := layout.PosteriorPath("older")
	newer := layout.PosteriorPath("newer")
	require.NoError(t, os.WriteFile(older, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("{}"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	got, err := resolvePosterior(layout, "")
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	got, err = resolvePosterior(layout, "older")
	require.NoError(t, err)
	assert.Equal(t, older, got)

	got, err = resolvePosterior(layout, newer)
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestResolvePosteriorEmptyScope(t *testing.T) {
	layout := dataset.NewLayout(t.TempDir())
	require.NoError(t, layout.Init())
	_, err := resolvePosterior(layout, "")
	require.ErrorContains(t, err, "no artifacts")
}

func TestRunScenarioDefaultsToBaseline(t *testing.T) {
	layout := dataset.NewLayout(t.TempDir())
	scen, err := runScenario(layout)
	require.NoError(t, err)
	assert.Equal(t, "baseline", scen.Name())
}

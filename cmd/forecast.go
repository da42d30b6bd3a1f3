package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lifecourse-sim/lifecourse-sim/sim/access"
	"github.com/lifecourse-sim/lifecourse-sim/sim/dataset"
	"github.com/lifecourse-sim/lifecourse-sim/sim/forecast"
	"github.com/lifecourse-sim/lifecourse-sim/sim/infer"
	"github.com/lifecourse-sim/lifecourse-sim/sim/scenario"
)

// Forecast modes.
const (
	modeRegenerate = "regenerate"
	modeContinue   = "continue"
)

var (
	forecastRun        string
	forecastPosterior  string
	forecastMode       string
	forecastDraws      int
	forecastHorizon    int
	forecastPopulation int
	forecastMaxAge     int
	forecastSeed       int64
	forecastWorkers    int
	forecastScenario   string
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project a fitted posterior past the observation horizon",
	Long: "Forecast reads the shared scope and a posterior, never the hidden " +
		"ground truth. Each posterior draw writes one table pair under " +
		"forecasts/<mode>-<draw>, tagged source: forecast; the labels are printed " +
		"to stdout, ready for evaluate --forecast.",
	Run: func(cmd *cobra.Command, args []string) {
		labels, err := runForecast(forecastRun, forecastPosterior, forecastMode, forecastScenario, forecast.Options{
			Draws:      forecastDraws,
			Horizon:    forecastHorizon,
			Population: forecastPopulation,
			MaxAge:     forecastMaxAge,
			Seed:       forecastSeed,
			Workers:    forecastWorkers,
		})
		if err != nil {
			logrus.Fatalf("forecast: %v", err)
		}
		for _, label := range labels {
			fmt.Println(label)
		}
	},
}

func runForecast(runDir, posteriorArg, mode, scenarioArg string, opts forecast.Options) ([]string, error) {
	if mode != modeRegenerate && mode != modeContinue {
		return nil, fmt.Errorf("unknown forecast mode %q (valid: %s, %s)", mode, modeRegenerate, modeContinue)
	}

	layout := dataset.NewLayout(runDir)
	arch, err := layout.ReadArchitecture(access.RoleForecaster)
	if err != nil {
		return nil, err
	}
	header, obs, err := layout.ReadObservableTables(access.RoleForecaster, arch.States)
	if err != nil {
		return nil, err
	}

	postPath, err := resolvePosterior(layout, posteriorArg)
	if err != nil {
		return nil, err
	}
	post, err := infer.LoadPosterior(postPath)
	if err != nil {
		return nil, err
	}

	scen, err := forecastEnvironment(layout, scenarioArg)
	if err != nil {
		return nil, err
	}

	// Pin every option before the run so the written headers match the
	// tables exactly.
	if opts.Draws <= 0 {
		opts.Draws = 1
	}
	if opts.Horizon == 0 {
		opts.Horizon = obs.Horizon + forecast.DefaultLookahead
	}
	if opts.Population <= 0 {
		opts.Population = len(obs.Individuals)
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = header.MaxAge
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = forecast.DefaultMaxAge
	}

	fc := forecast.NewFromObservable(arch, obs, scen)
	var results []forecast.Result
	switch mode {
	case modeRegenerate:
		results, err = fc.Regenerate(post, opts)
	case modeContinue:
		results, err = fc.Continue(post, opts)
	}
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(results))
	for _, res := range results {
		label := fmt.Sprintf("%s-%d", mode, res.Draw)
		h := dataset.Header{
			FormatVersion:  dataset.FormatVersion,
			Source:         dataset.SourceForecast,
			Name:           label,
			ConfigID:       header.ConfigID,
			ArchitectureID: header.ArchitectureID,
			ScenarioID:     scen.ID(),
			Scenario:       scen.Name(),
			Seed:           opts.Seed,
			Population:     len(res.Tables.Individuals),
			Horizon:        opts.Horizon,
			MaxAge:         opts.MaxAge,
		}
		if err := dataset.WriteTables(layout.ForecastDir(label), h, arch.States, res.Tables); err != nil {
			return nil, fmt.Errorf("writing forecast %s: %w", label, err)
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// forecastEnvironment picks the forecast scenario: an explicit override
// wins, otherwise the one the run was generated under.
func forecastEnvironment(layout dataset.Layout, scenarioArg string) (*scenario.Scenario, error) {
	if scenarioArg != "" {
		return scenario.Resolve(scenarioArg)
	}
	return runScenario(layout)
}

func init() {
	forecastCmd.Flags().StringVar(&forecastRun, "run", "", "Run directory produced by generate")
	forecastCmd.Flags().StringVar(&forecastPosterior, "posterior", "", "Posterior ID or path (empty: newest under estimates/)")
	forecastCmd.Flags().StringVar(&forecastMode, "mode", modeRegenerate, "Forecast mode (regenerate, continue)")
	forecastCmd.Flags().IntVar(&forecastDraws, "draws", 1, "Posterior draws, one table pair each")
	forecastCmd.Flags().IntVar(&forecastHorizon, "horizon", 0, "Forecast end year (0: observation horizon plus lookahead)")
	forecastCmd.Flags().IntVar(&forecastPopulation, "population", 0, "De-novo population per draw (0: observed size)")
	forecastCmd.Flags().IntVar(&forecastMaxAge, "max-age", 0, "Lifespan cap (0: the dataset header's cap)")
	forecastCmd.Flags().Int64Var(&forecastSeed, "seed", 0, "Master seed of the forecast streams")
	forecastCmd.Flags().IntVar(&forecastWorkers, "workers", 0, "Goroutines per draw (0: GOMAXPROCS)")
	forecastCmd.Flags().StringVar(&forecastScenario, "scenario", "", "Scenario override (empty: the run's scenario)")
	_ = forecastCmd.MarkFlagRequired("run")

	rootCmd.AddCommand(forecastCmd)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lifecourse-sim/lifecourse-sim/sim/access"
	"github.com/lifecourse-sim/lifecourse-sim/sim/dataset"
	"github.com/lifecourse-sim/lifecourse-sim/sim/infer"
	"github.com/lifecourse-sim/lifecourse-sim/sim/scenario"
)

var (
	estimateRun        string
	estimateStrategy   string
	estimateIterations int
	estimateTimeout    time.Duration
	estimateLevel      float64
	estimateSeed       int64
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Fit the posterior from a run's observable tables",
	Long: "Estimate reads only the shared scope of a run: the architecture, the " +
		"scenario, and the censored tables. The fitted posterior is written under " +
		"estimates/ and its path printed to stdout. Non-convergence and " +
		"identifiability problems are recorded on the artifact, not fatal.",
	Run: func(cmd *cobra.Command, args []string) {
		path, post, err := runEstimate(estimateRun, infer.Options{
			Strategy: estimateStrategy,
			Budget:   infer.Budget{MaxIterations: estimateIterations, MaxDuration: estimateTimeout},
			Level:    estimateLevel,
			Seed:     estimateSeed,
		})
		if err != nil {
			logrus.Fatalf("estimate: %v", err)
		}
		for _, w := range post.Diagnostics.Warnings {
			logrus.Warnf("estimate: %s", w)
		}
		fmt.Println(path)
	},
}

// runScenario loads the run's shared scenario, defaulting to baseline
// when none was recorded.
func runScenario(layout dataset.Layout) (*scenario.Scenario, error) {
	if _, err := os.Stat(layout.ScenarioPath()); err != nil {
		return scenario.Baseline(), nil
	}
	return scenario.Load(layout.ScenarioPath())
}

func runEstimate(runDir string, opts infer.Options) (string, *infer.Posterior, error) {
	layout := dataset.NewLayout(runDir)
	arch, err := layout.ReadArchitecture(access.RoleEstimator)
	if err != nil {
		return "", nil, err
	}
	header, obs, err := layout.ReadObservableTables(access.RoleEstimator, arch.States)
	if err != nil {
		return "", nil, err
	}
	scen, err := runScenario(layout)
	if err != nil {
		return "", nil, err
	}
	opts.ScenarioID = scen.ID()

	post, err := infer.FitObservations(context.Background(), arch, scen, infer.FromObservable(obs, header.MaxAge), opts)
	if err != nil {
		return "", nil, err
	}
	path := layout.PosteriorPath(post.ID)
	if err := post.Save(path); err != nil {
		return "", nil, err
	}
	return path, post, nil
}

// latestArtifact returns the most recently modified JSON artifact in
// dir.
func latestArtifact(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}
	best := ""
	var bestTime time.Time
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = filepath.Join(dir, e.Name())
			bestTime = info.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no artifacts under %s", dir)
	}
	return best, nil
}

// resolvePosterior maps a command-line argument to a posterior path:
// empty means the newest artifact under estimates/, an existing file is
// taken as-is, anything else is treated as a posterior ID.
func resolvePosterior(layout dataset.Layout, arg string) (string, error) {
	if arg == "" {
		return latestArtifact(layout.Dir(dataset.ScopeEstimates))
	}
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}
	return layout.PosteriorPath(arg), nil
}

func init() {
	estimateCmd.Flags().StringVar(&estimateRun, "run", "", "Run directory produced by generate")
	estimateCmd.Flags().StringVar(&estimateStrategy, "strategy", infer.StrategyAuto, "Mortality-block strategy (auto, laplace, metropolis)")
	estimateCmd.Flags().IntVar(&estimateIterations, "iterations", 0, "Iteration budget (0: strategy default)")
	estimateCmd.Flags().DurationVar(&estimateTimeout, "timeout", 0, "Wall-clock budget for the approximate block (0: none)")
	estimateCmd.Flags().Float64Var(&estimateLevel, "level", 0.9, "Credible level of reported intervals")
	estimateCmd.Flags().Int64Var(&estimateSeed, "seed", 0, "Seed for sampling strategies")
	_ = estimateCmd.MarkFlagRequired("run")

	rootCmd.AddCommand(estimateCmd)
}

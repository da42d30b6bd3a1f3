package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
	"github.com/lifecourse-sim/lifecourse-sim/sim/access"
	"github.com/lifecourse-sim/lifecourse-sim/sim/dataset"
	"github.com/lifecourse-sim/lifecourse-sim/sim/eval"
	"github.com/lifecourse-sim/lifecourse-sim/sim/infer"
)

var (
	evaluateRun       string
	evaluatePosterior string
	evaluateForecast  string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a posterior against the run's ground truth",
	Long: "Evaluate is the one role that reads hidden/. It scores a posterior's " +
		"parametric recovery against the generating Config, and, given a forecast " +
		"label, the forecast tables' yearly aggregates and income and pension " +
		"distributions against the uncensored truth. The report lands under " +
		"reports/ and its path is printed to stdout.",
	Run: func(cmd *cobra.Command, args []string) {
		path, _, err := runEvaluate(evaluateRun, evaluatePosterior, evaluateForecast)
		if err != nil {
			logrus.Fatalf("evaluate: %v", err)
		}
		fmt.Println(path)
	},
}

func runEvaluate(runDir, posteriorArg, forecastLabel string) (string, *eval.Report, error) {
	layout := dataset.NewLayout(runDir)
	arch, err := layout.ReadArchitecture(access.RoleEvaluator)
	if err != nil {
		return "", nil, err
	}
	cfg, err := layout.ReadConfig(access.RoleEvaluator)
	if err != nil {
		return "", nil, err
	}
	_, full, err := layout.ReadFullTables(access.RoleEvaluator, arch.States)
	if err != nil {
		return "", nil, err
	}

	postPath, err := resolvePosterior(layout, posteriorArg)
	if err != nil {
		return "", nil, err
	}
	post, err := infer.LoadPosterior(postPath)
	if err != nil {
		return "", nil, err
	}

	var comparison *sim.Tables
	label := ""
	if forecastLabel != "" {
		_, tables, err := dataset.ReadTables(layout.ForecastDir(forecastLabel), arch.States)
		if err != nil {
			return "", nil, fmt.Errorf("forecast %q: %w", forecastLabel, err)
		}
		comparison, label = &tables, forecastLabel
	}

	ev := eval.New(access.NewBoundary(cfg, arch, full).ForEvaluator())
	rep := ev.Report(post, comparison, label)
	path := layout.ReportPath(rep.ID)
	if err := rep.Save(path); err != nil {
		return "", nil, err
	}
	return path, rep, nil
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateRun, "run", "", "Run directory produced by generate")
	evaluateCmd.Flags().StringVar(&evaluatePosterior, "posterior", "", "Posterior ID or path (empty: newest under estimates/)")
	evaluateCmd.Flags().StringVar(&evaluateForecast, "forecast", "", "Forecast label under forecasts/ to score against truth")
	_ = evaluateCmd.MarkFlagRequired("run")

	rootCmd.AddCommand(evaluateCmd)
}

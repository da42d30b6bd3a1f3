package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
	"github.com/lifecourse-sim/lifecourse-sim/sim/dataset"
	"github.com/lifecourse-sim/lifecourse-sim/sim/scenario"
)

var (
	generateConfigPath string
	generateArchPath   string
	generateScenario   string
	generateOut        string
	generateWorkers    int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic population and lay out its run directory",
	Long: "Generate runs the two-layer engine under a Config and writes the run " +
		"directory: ground truth under hidden/, the architecture, scenario, and " +
		"censored tables under shared/. The run directory path is printed to stdout.",
	Run: func(cmd *cobra.Command, args []string) {
		layout, err := runGenerate(generateConfigPath, generateArchPath, generateScenario, generateOut, generateWorkers)
		if err != nil {
			logrus.Fatalf("generate: %v", err)
		}
		fmt.Println(layout.Root)
	},
}

// loadInputs resolves the three generation inputs, falling back to the
// shipped defaults, and validates the config against the architecture.
func loadInputs(configPath, archPath, scenarioArg string) (*sim.Config, *sim.Architecture, *scenario.Scenario, error) {
	arch := sim.DefaultArchitecture()
	if archPath != "" {
		var err error
		if arch, err = sim.LoadArchitecture(archPath); err != nil {
			return nil, nil, nil, err
		}
	}
	cfg := sim.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = sim.LoadConfig(configPath); err != nil {
			return nil, nil, nil, err
		}
	}
	scen, err := scenario.Resolve(scenarioArg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(arch); err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, arch, scen, nil
}

func runGenerate(configPath, archPath, scenarioArg, out string, workers int) (dataset.Layout, error) {
	cfg, arch, scen, err := loadInputs(configPath, archPath, scenarioArg)
	if err != nil {
		return dataset.Layout{}, err
	}

	gen, err := sim.NewGenerator(arch, cfg, scen)
	if err != nil {
		return dataset.Layout{}, err
	}
	full, err := gen.Generate(sim.GenerateOptions{Workers: workers})
	if err != nil {
		return dataset.Layout{}, err
	}

	address := dataset.RunAddress(cfg.ID(), arch.ID(), scen.ID(), cfg.Population)
	layout := dataset.NewLayout(filepath.Join(out, address))
	if err := layout.Init(); err != nil {
		return layout, err
	}

	if err := cfg.Save(layout.ConfigPath()); err != nil {
		return layout, err
	}
	if err := arch.Save(layout.ArchitecturePath()); err != nil {
		return layout, err
	}
	if err := scen.Save(layout.ScenarioPath()); err != nil {
		return layout, err
	}

	h := dataset.Header{
		FormatVersion:  dataset.FormatVersion,
		Source:         dataset.SourceGenerator,
		Name:           cfg.Name,
		ConfigID:       cfg.ID(),
		ArchitectureID: arch.ID(),
		ScenarioID:     scen.ID(),
		Scenario:       scen.Name(),
		Seed:           cfg.Seed,
		Population:     cfg.Population,
		Horizon:        cfg.Horizon,
		MaxAge:         cfg.MaxAge,
	}
	if err := dataset.WriteTables(layout.FullDataDir(), h, arch.States, full); err != nil {
		return layout, err
	}
	if err := dataset.WriteObservable(layout.ObservableDir(), h, arch.States, full.Observable(cfg.Horizon)); err != nil {
		return layout, err
	}
	logrus.Infof("run %s laid out at %s", address, layout.Root)
	return layout, nil
}

func init() {
	generateCmd.Flags().StringVar(&generateConfigPath, "config", "", "Config YAML path (empty: shipped default config)")
	generateCmd.Flags().StringVar(&generateArchPath, "arch", "", "Architecture YAML path (empty: shipped default architecture)")
	generateCmd.Flags().StringVar(&generateScenario, "scenario", scenario.BaselineName, "Scenario name or spec path")
	generateCmd.Flags().StringVar(&generateOut, "out", "runs", "Directory to lay runs out under")
	generateCmd.Flags().IntVar(&generateWorkers, "workers", 0, "Generation goroutines (0: GOMAXPROCS)")

	rootCmd.AddCommand(generateCmd)
}

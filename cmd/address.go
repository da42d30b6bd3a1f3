package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lifecourse-sim/lifecourse-sim/sim/dataset"
	"github.com/lifecourse-sim/lifecourse-sim/sim/scenario"
)

var (
	addressConfigPath string
	addressArchPath   string
	addressScenario   string
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the run address for a config, architecture, and scenario",
	Long: "Address derives the content-addressed run directory name without " +
		"generating anything, so scripts can locate or dedupe runs up front.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, arch, scen, err := loadInputs(addressConfigPath, addressArchPath, addressScenario)
		if err != nil {
			logrus.Fatalf("address: %v", err)
		}
		fmt.Println(dataset.RunAddress(cfg.ID(), arch.ID(), scen.ID(), cfg.Population))
	},
}

func init() {
	addressCmd.Flags().StringVar(&addressConfigPath, "config", "", "Config YAML path (empty: shipped default config)")
	addressCmd.Flags().StringVar(&addressArchPath, "arch", "", "Architecture YAML path (empty: shipped default architecture)")
	addressCmd.Flags().StringVar(&addressScenario, "scenario", scenario.BaselineName, "Scenario name or spec path")

	rootCmd.AddCommand(addressCmd)
}

// Package cli implements the arbiter command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arbiterhq/arbiter/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Decision and recommendation orchestration service",
	Long: `Arbiter runs recommendation pipelines under resource admission control:
candidate generation, ranking, decision validation and lifecycle tracking.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetBuildInfo()
		fmt.Printf("arbiter %s (go %s)\n", info.MainVersion, info.GoVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search for config.yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

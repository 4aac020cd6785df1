// Command airq runs the statistics and forecast engines over a JSON file of
// readings and prints the same documents the API serves.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "airq",
		Short: "Air-quality statistics and forecasts from a readings file",
		Long: `airq loads sensor readings from a JSON file (an array of readings or
{"readings": [...]}) and computes period statistics or metric forecasts
with the same engines and output format as the airq API.`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.InputFile, "input", "i", "", "Readings file, - for stdin (required)")
	rootCmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "Config file for risk bands, forecast window and timezone")
	rootCmd.PersistentFlags().StringVar(&opts.Now, "now", "", "Analysis time: RFC3339, 'latest' for the newest reading, empty for the current time")
	rootCmd.PersistentFlags().BoolVar(&opts.Pretty, "pretty", false, "Indent JSON output")
	_ = rootCmd.MarkPersistentFlagRequired("input")

	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newForecastCmd(opts))

	return rootCmd
}

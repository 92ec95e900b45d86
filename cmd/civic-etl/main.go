// civic-etl turns St. Louis open-data dumps into the static artifacts the
// civic dashboard reads.
//
// Usage:
//
//	civic-etl run [--only <step>] [--list]
//	civic-etl validate [--file public/data/vacancies.json]
//	civic-etl serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "civic-etl",
	Short: "Batch ETL for St. Louis civic open data",
	Long: `civic-etl reads raw city datasets from RAW_DIR, normalizes them and
writes the dashboard artifacts to OUT_DIR. Vacant parcels are scored by the
triage model and optionally published to Kafka.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

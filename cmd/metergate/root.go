package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metergate",
	Short: "Real-time usage metering for multi-tenant API gateways",
	Long: `Metergate tracks per-key and per-model API usage in real time.

It keeps rolling 24-hour per-minute series, 90-day daily rollups and a
recent-call ring, and serves them over a JSON API.

Quick start:
  metergate serve     # Start the metering server

Management:
  metergate validate  # Validate configuration
  metergate version   # Print version information`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "metergate.yaml", "config file path")
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/metergate/bootstrap"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metering server",
	Long: `Start the metergate server.

The server will:
  - Load configuration from metergate.yaml (or --config)
  - Or load configuration from METERGATE_* environment variables
  - Start the background aggregator, flush and cleanup loops
  - Serve the stats JSON API

Environment variables (for Docker deployments):
  METERGATE_AUTH_KEY          - API key gating the stats API
  METERGATE_SERVER_PORT       - Server port (default: 8080)
  METERGATE_STATS_DAILY_LIMIT - Per-key daily call limit for percentages
  METERGATE_DAILY_DRIVER      - Daily rollup store: json or sqlite
  METERGATE_DAILY_PATH        - Daily rollup store path
  METERGATE_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  metergate serve
  metergate serve --config /etc/metergate/config.yaml
  metergate serve --hot-reload=false

  # Docker (env vars only):
  METERGATE_AUTH_KEY=sk-secret metergate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if _, err := os.Stat(path); err != nil {
		// Fall back to env-only configuration.
		path = ""
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: path,
		HotReload:  hotReload,
	})
	if err != nil {
		return err
	}

	return app.Run()
}

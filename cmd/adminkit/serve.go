package main

import (
	"fmt"

	"github.com/artpar/adminkit/bootstrap"
	"github.com/artpar/adminkit/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the AdminKit HTTP server.

The server will:
  - Load configuration from adminkit.yaml (or --config)
  - Or load configuration from ADMINKIT_* environment variables
  - Load resource declarations and run the enabled plugins
  - Create a table for every resource
  - Serve the REST API, plugin routes, assets, /openapi.json and /metrics

Only logging.level is applied on reload; other changes need a restart.

Environment variables (for Docker deployments):
  ADMINKIT_DATABASE_DSN      - Database path (default: adminkit.db)
  ADMINKIT_SERVER_PORT       - Server port (default: 8080)
  ADMINKIT_RESOURCES_DIR     - Directory of resource declarations
  ADMINKIT_PLUGINS           - Comma-separated plugin ids (default: auth,cms)
  ADMINKIT_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  adminkit serve
  adminkit serve --config /etc/adminkit/config.yaml
  adminkit serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of the log level")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := bootstrap.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	if !hasConfigFile() {
		logger.Info().Msg("running with environment variables (no config file)")
	}

	app, err := bootstrap.New(cmd.Context(), cfg, logger, bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Hot reload only works with config file
	if hasConfigFile() && hotReload {
		if err := watchConfig(app, logger); err != nil {
			logger.Warn().Err(err).Msg("config hot reload disabled")
		}
	}

	return app.Run(cmd.Context())
}

func watchConfig(app *bootstrap.App, logger zerolog.Logger) error {
	holder, err := config.NewHolder(cfgFile, logger)
	if err != nil {
		return err
	}
	return app.WatchConfig(holder)
}

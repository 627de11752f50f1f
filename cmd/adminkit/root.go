package main

import (
	"fmt"
	"os"

	"github.com/artpar/adminkit/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "adminkit",
	Short: "Schema-driven admin backend with plugins",
	Long: `AdminKit serves a REST API, dashboards and plugin routes generated from
resource declarations.

Resources are declared in YAML under resources.dir or in code. Built-in
plugins (auth, cms) extend the schema before it is frozen.

Commands:
  adminkit serve     # Start the HTTP server
  adminkit schema    # Print the frozen schema
  adminkit records   # Manage records from the command line
  adminkit shell     # Interactive record shell
  adminkit validate  # Check configuration and resource declarations`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "adminkit.yaml", "config file path")
}

// loadConfig reads cfgFile, falling back to ADMINKIT_* variables when the
// file does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func hasConfigFile() bool {
	_, err := os.Stat(cfgFile)
	return err == nil
}

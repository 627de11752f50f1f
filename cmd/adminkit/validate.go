package main

import (
	"errors"
	"fmt"

	"github.com/artpar/adminkit/bootstrap"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and resource declarations",
	Long: `Validate the AdminKit configuration file and every resource declaration
under resources.dir.

Checks:
  - Configuration is valid
  - Every declaration parses and compiles
  - Resource slugs and tables do not collide
  - Enabled plugins exist

Plugins are not run; use 'adminkit schema' to see the final schema.

Examples:
  adminkit validate
  adminkit validate --config /etc/adminkit/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return err
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)
	fmt.Fprintf(out, "  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)

	failed := false
	known := map[string]bool{}
	for _, id := range bootstrap.BuiltinIDs() {
		known[id] = true
	}
	for _, id := range cfg.Plugins.Enabled {
		if known[id] {
			fmt.Fprintf(out, "  %s Plugin %s\n", checkMark, id)
			continue
		}
		fmt.Fprintf(out, "  %s Plugin %s\n", crossMark, id)
		fmt.Fprintf(out, "      Error: %v\n", &bootstrap.UnknownPluginError{ID: id})
		failed = true
	}

	report, err := bootstrap.CheckResources(cfg.Resources.Dir)
	if err != nil {
		fmt.Fprintf(out, "  %s Resources readable\n", crossMark)
		return err
	}
	for _, f := range report.Files {
		if f.Err != nil {
			fmt.Fprintf(out, "  %s %s\n", crossMark, f.Path)
			fmt.Fprintf(out, "      Error: %v\n", f.Err)
			continue
		}
		fmt.Fprintf(out, "  %s %s (%s)\n", checkMark, f.Path, f.Resource)
	}
	if report.Registry != nil {
		fmt.Fprintf(out, "  %s Resources compose\n", crossMark)
		fmt.Fprintf(out, "      Error: %v\n", report.Registry)
	}

	if failed || !report.OK() {
		fmt.Fprintln(out)
		return errors.New("validation failed")
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration is valid (%d resource files).\n", len(report.Files))
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

package main

import (
	"fmt"

	"github.com/artpar/adminkit/bootstrap"
	"github.com/artpar/adminkit/core/formatter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	schemaFormat   string
	schemaCompact  bool
	schemaNoHeader bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the frozen schema",
	Long: `Run the enabled plugins against an in-memory database and print the
resulting schema: resources, dashboards and permissions.

Examples:
  adminkit schema
  adminkit schema --output json
  adminkit schema -o yaml --config /etc/adminkit/config.yaml`,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVarP(&schemaFormat, "output", "o", "table", "output format (table, json, yaml)")
	schemaCmd.Flags().BoolVar(&schemaCompact, "compact", false, "compact json output")
	schemaCmd.Flags().BoolVar(&schemaNoHeader, "no-header", false, "omit table headers")
}

func runSchema(cmd *cobra.Command, args []string) error {
	f, err := formatter.Lookup(schemaFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, err := bootstrap.Inspect(cmd.Context(), cfg, zerolog.Nop(), bootstrap.Options{})
	if err != nil {
		f.FormatError(cmd.ErrOrStderr(), err)
		return fmt.Errorf("schema failed")
	}

	return f.FormatSchema(cmd.OutOrStdout(), reg.Serialize(), formatter.FormatOptions{
		Compact:  schemaCompact,
		NoHeader: schemaNoHeader,
	})
}

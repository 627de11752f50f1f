package main

import (
	"fmt"
	"strings"

	"github.com/artpar/adminkit/bootstrap"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records <resource> <command> [flags]",
	Short: "Manage records from the command line",
	Long: `Run list, get, create, update, delete or a custom action against the
configured database. Commands are generated from the frozen schema, so
every resource declared in YAML or added by a plugin is available.

Examples:
  adminkit records post list --search hello
  adminkit records post create --title "Hello" -o json
  adminkit records post update 9b1d... --status hidden
  adminkit records post delete 9b1d... --force
  adminkit records user list --config /etc/adminkit/config.yaml`,
	DisableFlagParsing: true,
	RunE:               runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
}

// runRecords parses --config itself since the generated subcommands own the
// remaining flags.
func runRecords(cmd *cobra.Command, args []string) error {
	args = extractConfigFlag(args)
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return cmd.Help()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := bootstrap.New(cmd.Context(), cfg, zerolog.Nop(), bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer app.Shutdown(cmd.Context())

	cmds, err := app.CLI.Commands()
	if err != nil {
		return err
	}

	root := &cobra.Command{
		Use:          "adminkit records",
		SilenceUsage: true,
	}
	root.AddCommand(cmds...)
	root.SetOut(cmd.OutOrStdout())
	root.SetErr(cmd.ErrOrStderr())
	root.SetArgs(args)
	return root.ExecuteContext(cmd.Context())
}

// extractConfigFlag sets cfgFile from --config/-c and returns the other args.
func extractConfigFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case (arg == "--config" || arg == "-c") && i+1 < len(args):
			cfgFile = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			cfgFile = strings.TrimPrefix(arg, "--config=")
		default:
			out = append(out, arg)
		}
	}
	return out
}

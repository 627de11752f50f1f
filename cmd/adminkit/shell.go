package main

import (
	"fmt"

	"github.com/artpar/adminkit/bootstrap"
	"github.com/artpar/adminkit/core/channel/tty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	shellPrompt  string
	shellNoStats bool
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive record shell",
	Long: `Open a prompt that accepts the same commands as "adminkit records"
without the prefix, against a single open database.

Example session:
  adminkit> post create --title "Hello"
  adminkit> post list -o yaml
  adminkit> stats
  adminkit> quit`,
	RunE: runShell,
}

func init() {
	shellCmd.Flags().StringVar(&shellPrompt, "prompt", "adminkit> ", "prompt string")
	shellCmd.Flags().BoolVar(&shellNoStats, "no-stats", false, "hide timing and memory after each command")
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := bootstrap.New(cmd.Context(), cfg, zerolog.Nop(), bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer app.Shutdown(cmd.Context())

	shell := tty.New(app.CLI,
		tty.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
		tty.WithPrompt(shellPrompt),
		tty.WithStats(!shellNoStats),
	)
	return shell.Run(cmd.Context())
}

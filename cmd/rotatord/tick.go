package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single evaluation pass and exit",
	Long: `Evaluates every rotation job exactly once, applies the resulting
updates, persists state and exits. Intended for external schedulers
(cron, systemd timers); alternating with the daemon is safe because
both share the same state file.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := setup()

		if err := app.engine.Tick(context.Background()); err != nil {
			app.log.Error().Err(err).Msg("tick failed")
			os.Exit(exitConfigFault)
		}
		os.Exit(exitOK)
	},
}

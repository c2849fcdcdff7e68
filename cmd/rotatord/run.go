package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/Issei-177013/Cloudflare-Utils/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the rotation daemon",
	Long: `Verifies every account token, then evaluates all rotation jobs on a
fixed tick until interrupted. One tick fires immediately at startup so
overdue jobs do not wait a full period.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := setup()
		log := app.log.With().Str("component", "daemon").Logger()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := app.engine.VerifyAccounts(ctx); err != nil {
			log.Error().Err(err).Msg("credential verification failed")
			os.Exit(exitCredentials)
		}

		var srv *server.Server
		if app.settings.StatusAddr != "" {
			srv = server.New(app.settings.StatusAddr, app.engine, app.log)
			go func() {
				if err := srv.Start(); err != nil {
					log.Error().Err(err).Msg("status endpoint failed")
				}
			}()
		}

		tick := func() {
			if err := app.engine.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("tick failed")
			}
		}

		c := cron.New()
		spec := fmt.Sprintf("@every %ds", app.settings.TickSeconds)
		if _, err := c.AddFunc(spec, tick); err != nil {
			log.Error().Err(err).Str("spec", spec).Msg("failed to schedule tick")
			os.Exit(exitConfigFault)
		}

		log.Info().
			Int("tick_seconds", app.settings.TickSeconds).
			Str("data_dir", app.settings.DataDir).
			Msg("rotation daemon started")

		tick()
		c.Start()

		<-ctx.Done()
		log.Info().Msg("shutting down")

		cronCtx := c.Stop()
		<-cronCtx.Done()

		if srv != nil {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutCtx); err != nil {
				log.Error().Err(err).Msg("status endpoint shutdown failed")
			}
		}

		log.Info().Msg("rotation daemon stopped")
	},
}

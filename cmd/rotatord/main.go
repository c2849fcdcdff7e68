// Package main is the rotation daemon for Cloudflare-Utils. It
// evaluates operator-defined rotation jobs against the Cloudflare API,
// either as a long-lived process with its own ticker (run) or as a
// single pass driven by an external scheduler (tick). Both modes share
// the same evaluator and state-file discipline, so alternating between
// them does not corrupt state.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Issei-177013/Cloudflare-Utils/internal/agent"
	"github.com/Issei-177013/Cloudflare-Utils/internal/clock"
	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
	"github.com/Issei-177013/Cloudflare-Utils/internal/engine"
	"github.com/Issei-177013/Cloudflare-Utils/internal/provider/cloudflare"
	"github.com/Issei-177013/Cloudflare-Utils/internal/state"
	"github.com/Issei-177013/Cloudflare-Utils/internal/trigger"
	"github.com/Issei-177013/Cloudflare-Utils/pkg/logger"
)

// Version information (set via ldflags during build)
var Version = "dev"

// Exit codes per the operational contract.
const (
	exitOK          = 0
	exitConfigFault = 2
	exitStateFault  = 3
	exitCredentials = 4
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rotatord",
	Short: "DNS record rotation engine for Cloudflare",
	Long: `rotatord rotates the values of DNS A/AAAA records on Cloudflare
according to operator-defined jobs: single-record pool rotation,
multi-record windowed pool rotation, and cyclic shuffles of live
values. State is persisted crash-safely so rotations are idempotent
under restart and never fire faster than the configured cadence.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(verifyCmd)
}

// app bundles everything a subcommand needs.
type app struct {
	settings *config.Settings
	log      zerolog.Logger
	cfg      *config.Store
	st       *state.Store
	engine   *engine.Engine
}

// setup wires stores, agents, triggers and the engine. Failures exit
// the process with the matching fault code: a configuration that fails
// to parse or validate is fatal at startup, as is an unreadable state
// file.
func setup() *app {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfigFault)
	}

	log := logger.New(logger.Config{Level: settings.LogLevel, Pretty: true})
	logger.SetGlobalLogger(log)

	cfgStore := config.NewStore(settings.ConfigPath())
	if _, err := cfgStore.Load(); err != nil {
		log.Error().Err(err).Msg("configuration fault")
		os.Exit(exitConfigFault)
	}

	stStore := state.NewStore(settings.StatePath())
	if err := stStore.Load(); err != nil {
		log.Error().Err(err).Msg("state-file fault")
		os.Exit(exitStateFault)
	}

	clk := clock.System()
	agents := func(a config.Agent) (agent.Client, error) {
		return agent.NewFromConfig(a, stStore, clk, log)
	}

	eng := engine.New(engine.Options{
		Config:     cfgStore,
		State:      stStore,
		Clock:      clk,
		NewClient:  cloudflare.NewClient,
		Triggers:   trigger.NewEvaluator(stStore, agents, log),
		Log:        log,
		TickPeriod: settings.TickPeriodDuration(),
	})

	return &app{
		settings: settings,
		log:      log,
		cfg:      cfgStore,
		st:       stStore,
		engine:   eng,
	}
}

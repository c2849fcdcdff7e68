// Package trigger evaluates traffic-usage triggers against agent
// totals. A trigger fires at most once per (trigger, period): the
// period identifier of the last firing is persisted in the state
// store and compared before every evaluation.
package trigger

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Issei-177013/Cloudflare-Utils/internal/agent"
	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
	"github.com/Issei-177013/Cloudflare-Utils/internal/state"
)

// ClientFactory builds an agent client for an agent entry. Injected so
// tests can substitute fakes.
type ClientFactory func(a config.Agent) (agent.Client, error)

// Evaluator checks every configured trigger on the engine's
// sub-cadence and records alerts through the structured log.
type Evaluator struct {
	store   *state.Store
	clients ClientFactory
	log     zerolog.Logger
}

// NewEvaluator creates a trigger evaluator.
func NewEvaluator(store *state.Store, clients ClientFactory, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		store:   store,
		clients: clients,
		log:     log.With().Str("component", "trigger").Logger(),
	}
}

// Evaluate polls usage for every trigger in the document and fires
// those whose window total exceeds the limit. Agent failures skip the
// trigger; they are retried at the next sub-cadence invocation.
func (e *Evaluator) Evaluate(ctx context.Context, doc *config.Document) {
	for _, t := range doc.Triggers {
		e.evaluateOne(ctx, doc, t)
	}
}

func (e *Evaluator) evaluateOne(ctx context.Context, doc *config.Document, t config.Trigger) {
	agentCfg := doc.FindAgent(t.AgentID)
	if agentCfg == nil {
		e.log.Warn().Str("trigger", t.ID).Str("agent", t.AgentID).Msg("trigger references unknown agent")
		return
	}

	client, err := e.clients(*agentCfg)
	if err != nil {
		e.log.Error().Err(err).Str("trigger", t.ID).Msg("failed to build agent client")
		return
	}

	usage, err := client.Usage(ctx, t.Window)
	if err != nil {
		e.log.Warn().Err(err).Str("trigger", t.ID).Msg("could not get usage, skipping trigger")
		return
	}

	if e.store.Trigger(t.ID).LastFiredPeriod == usage.Period {
		e.log.Debug().Str("trigger", t.ID).Str("period", usage.Period).Msg("trigger already fired for this period")
		return
	}

	totalGB := usage.TotalGB()
	if totalGB <= t.LimitGB {
		return
	}

	e.log.Warn().
		Str("trigger", t.ID).
		Str("label", t.Label).
		Str("period", usage.Period).
		Float64("total_gb", totalGB).
		Float64("limit_gb", t.LimitGB).
		Msg("traffic limit exceeded")

	if err := e.store.SetTriggerFired(t.ID, usage.Period); err != nil {
		e.log.Error().Err(err).Str("trigger", t.ID).Msg("failed to persist trigger firing")
	}
}

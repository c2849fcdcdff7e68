package engine

import (
	"context"
	"time"

	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
	"github.com/Issei-177013/Cloudflare-Utils/internal/rotation"
	"github.com/Issei-177013/Cloudflare-Utils/internal/state"
)

// runAccountJobs evaluates one account's jobs strictly sequentially,
// in configuration order. An auth fault abandons the remaining jobs of
// the account for this tick; other faults only affect their own job.
func (e *Engine) runAccountJobs(ctx context.Context, now time.Time, doc *config.Document, batch accountBatch) {
	log := e.log.With().Str("account", batch.account.ID).Logger()

	client, err := e.newClient(batch.account.Token)
	if err != nil {
		log.Error().Err(err).Msg("failed to create provider client")
		return
	}
	client = withTimeout(client, e.requestTimeout)

	for _, job := range batch.jobs {
		if ctx.Err() != nil {
			log.Warn().Msg("tick deadline reached, remaining jobs wait for next tick")
			return
		}

		if quarantined := e.rotateJob(ctx, now, job, client); quarantined {
			log.Error().Str("job", job.ID).Msg("auth fault, skipping remaining jobs for account this tick")
			return
		}
	}
}

// rotateJob evaluates and applies a single job. It returns true when
// the account hit an auth fault and its remaining jobs should be
// skipped for this tick.
func (e *Engine) rotateJob(ctx context.Context, now time.Time, job config.Job, client provider.Client) bool {
	log := e.log.With().Str("job", job.ID).Str("kind", string(job.Kind)).Logger()

	st := e.st.Job(job.ID)
	plan, skip, err := rotation.Evaluate(ctx, now, &job, st, client)
	if err != nil {
		return e.handleFailure(job, st, err, "evaluation")
	}
	if skip != nil {
		log.Debug().Str("reason", skip.Reason).Msg("job skipped")
		e.noteResult(job.ID, "skipped: "+skip.Reason)
		return false
	}

	successes := 0
	var lastErr error
	for _, u := range plan.Updates {
		if _, err := client.UpdateRecord(ctx, job.ZoneID, u.RecordID, u.Value); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Str("record", u.RecordID).
				Str("fault", provider.KindOf(err).String()).
				Msg("record update failed")
			if provider.KindOf(err) == provider.FaultAuth {
				// Do not persist a partial batch under an invalid
				// token; the whole account is skipped for this tick.
				return true
			}
			continue
		}
		successes++
		log.Info().Str("record", u.RecordID).Str("value", u.Value).Msg("record updated")
	}

	if successes == 0 {
		return e.handleFailure(job, st, lastErr, "update")
	}

	// Cursor advances iff at least one record updated; the window
	// keeps sliding even when part of a multi-record batch failed.
	next := state.JobState{
		LastFiredAt:         now.Unix(),
		Cursor:              st.Cursor,
		ConsecutiveFailures: 0,
	}
	if plan.HasCursor {
		next.Cursor = plan.NewCursor
	}
	if err := e.st.SetJob(job.ID, next); err != nil {
		log.Error().Err(err).Msg("failed to persist rotation state")
		e.noteResult(job.ID, "state persist failed")
		return false
	}

	if successes < len(plan.Updates) {
		log.Warn().
			Int("updated", successes).
			Int("total", len(plan.Updates)).
			Msg("partial rotation, failed records retry next firing")
		e.noteResult(job.ID, "partial rotation")
	} else {
		e.noteResult(job.ID, "rotated")
	}
	return false
}

// handleFailure applies the failure policy for a job whose evaluation
// or entire update batch failed. It returns true for auth faults so
// the caller abandons the account for this tick.
func (e *Engine) handleFailure(job config.Job, st state.JobState, err error, phase string) bool {
	log := e.log.With().Str("job", job.ID).Str("phase", phase).Logger()

	switch provider.KindOf(err) {
	case provider.FaultAuth:
		e.noteResult(job.ID, "auth fault")
		return true

	case provider.FaultNotFound, provider.FaultBadRequest:
		// Quarantined for this tick; state untouched, retried next tick.
		log.Error().Err(err).Msg("job quarantined for this tick")
		e.noteResult(job.ID, "quarantined")
		return false

	default:
		st.ConsecutiveFailures++
		if shouldWarn(st.ConsecutiveFailures) {
			log.Warn().
				Err(err).
				Int("consecutive_failures", st.ConsecutiveFailures).
				Msg("transient provider fault, will retry next tick")
		} else {
			log.Debug().
				Err(err).
				Int("consecutive_failures", st.ConsecutiveFailures).
				Msg("transient provider fault, will retry next tick")
		}
		if perr := e.st.SetJob(job.ID, st); perr != nil {
			log.Error().Err(perr).Msg("failed to persist failure count")
		}
		e.noteResult(job.ID, "transient failure")
		return false
	}
}

// shouldWarn reports whether a failure streak length deserves a
// WARNING entry: the first failure and every power-of-two occurrence
// after that.
func shouldWarn(streak int) bool {
	return streak > 0 && streak&(streak-1) == 0
}

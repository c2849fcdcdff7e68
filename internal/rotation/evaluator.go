package rotation

import (
	"context"
	"fmt"
	"time"

	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
	"github.com/Issei-177013/Cloudflare-Utils/internal/state"
)

// Update is one record write the engine should issue.
type Update struct {
	RecordID string
	Value    string
}

// Plan is the outcome of evaluating a due job: the records to update
// and, for cursor-bearing kinds, the cursor to persist after a
// successful firing.
type Plan struct {
	Updates   []Update
	HasCursor bool
	NewCursor int
}

// Skip explains why a job produced no plan this tick.
type Skip struct {
	Reason string
}

// Evaluate decides whether a job is due and, if so, computes its
// update plan. Live record values are read through the provider
// client just-in-time. Provider errors propagate to the caller for
// classification; a missing referenced record surfaces as a not-found
// fault so the engine quarantines the job for the tick.
func Evaluate(ctx context.Context, now time.Time, job *config.Job, st state.JobState, client provider.Client) (*Plan, *Skip, error) {
	due := time.Unix(st.LastFiredAt, 0).Add(time.Duration(job.IntervalMinutes) * time.Minute)
	if st.LastFiredAt > 0 && now.Before(due) {
		return nil, &Skip{Reason: fmt.Sprintf("not due until %s", due.UTC().Format(time.RFC3339))}, nil
	}

	switch job.Kind {
	case config.KindSingle:
		return evaluateSingle(ctx, job, st, client)
	case config.KindMultiPool:
		return evaluateMultiPool(ctx, job, st, client)
	case config.KindShuffle:
		return evaluateShuffle(ctx, job, client)
	default:
		// Unreachable after config validation.
		return nil, nil, fmt.Errorf("job %s: unknown kind %q", job.ID, job.Kind)
	}
}

func evaluateSingle(ctx context.Context, job *config.Job, st state.JobState, client provider.Client) (*Plan, *Skip, error) {
	p := job.Single

	rec, err := client.GetRecord(ctx, job.ZoneID, p.RecordID)
	if err != nil {
		return nil, nil, err
	}

	target, newCursor := NextSingle(p.IPPool, rec.Content, st.Cursor)
	return &Plan{
		Updates:   []Update{{RecordID: p.RecordID, Value: target}},
		HasCursor: true,
		NewCursor: newCursor,
	}, nil, nil
}

func evaluateMultiPool(ctx context.Context, job *config.Job, st state.JobState, client provider.Client) (*Plan, *Skip, error) {
	p := job.MultiPool

	// All referenced records must exist before any update is issued;
	// otherwise the whole job is skipped for this tick.
	for _, id := range p.RecordIDs {
		if _, err := client.GetRecord(ctx, job.ZoneID, id); err != nil {
			return nil, nil, err
		}
	}

	values, newCursor := WindowMultiPool(p.IPPool, len(p.RecordIDs), st.Cursor)
	updates := make([]Update, len(p.RecordIDs))
	for i, id := range p.RecordIDs {
		updates[i] = Update{RecordID: id, Value: values[i]}
	}
	return &Plan{
		Updates:   updates,
		HasCursor: true,
		NewCursor: newCursor,
	}, nil, nil
}

func evaluateShuffle(ctx context.Context, job *config.Job, client provider.Client) (*Plan, *Skip, error) {
	p := job.Shuffle

	// Sample all live values up-front so the cyclic shift is computed
	// from one consistent snapshot.
	live := make([]string, len(p.RecordIDs))
	for i, id := range p.RecordIDs {
		rec, err := client.GetRecord(ctx, job.ZoneID, id)
		if err != nil {
			return nil, nil, err
		}
		live[i] = rec.Content
	}

	shifted := ShiftShuffle(live, p.Shift)
	updates := make([]Update, len(p.RecordIDs))
	for i, id := range p.RecordIDs {
		updates[i] = Update{RecordID: id, Value: shifted[i]}
	}
	return &Plan{Updates: updates}, nil, nil
}

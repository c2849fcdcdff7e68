package engine

import (
	"sort"
	"time"
)

// JobStatus is the last known outcome and persisted state of one job.
type JobStatus struct {
	JobID               string    `json:"job_id"`
	LastFiredAt         time.Time `json:"last_fired_at,omitempty"`
	Cursor              int       `json:"cursor"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastResult          string    `json:"last_result,omitempty"`
}

// Snapshot is a point-in-time view of the engine for the status
// endpoint.
type Snapshot struct {
	StartedAt     time.Time   `json:"started_at"`
	Ticks         uint64      `json:"ticks"`
	LastTickAt    time.Time   `json:"last_tick_at,omitempty"`
	LastTickError string      `json:"last_tick_error,omitempty"`
	Jobs          []JobStatus `json:"jobs"`
}

// Status returns a snapshot of the engine and all known job states.
func (e *Engine) Status() Snapshot {
	e.mu.Lock()
	snap := Snapshot{
		StartedAt:     e.startedAt,
		Ticks:         e.ticks,
		LastTickAt:    e.lastTickAt,
		LastTickError: e.lastTickErr,
	}
	results := make(map[string]string, len(e.lastResults))
	for id, r := range e.lastResults {
		results[id] = r
	}
	e.mu.Unlock()

	for id, st := range e.st.Jobs() {
		js := JobStatus{
			JobID:               id,
			Cursor:              st.Cursor,
			ConsecutiveFailures: st.ConsecutiveFailures,
			LastResult:          results[id],
		}
		if st.LastFiredAt > 0 {
			js.LastFiredAt = time.Unix(st.LastFiredAt, 0).UTC()
		}
		snap.Jobs = append(snap.Jobs, js)
		delete(results, id)
	}
	// Jobs evaluated but never persisted (e.g. only skips so far).
	for id, r := range results {
		snap.Jobs = append(snap.Jobs, JobStatus{JobID: id, LastResult: r})
	}
	sort.Slice(snap.Jobs, func(i, j int) bool { return snap.Jobs[i].JobID < snap.Jobs[j].JobID })
	return snap
}

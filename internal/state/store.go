// Package state persists per-job rotation state, trigger firing
// markers and self-monitor traffic counters. The engine is the only
// writer; writes are rare (one per successful rotation) but must be
// durable, so every write goes through a temp file + fsync + rename.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Issei-177013/Cloudflare-Utils/internal/atomicfile"
)

// JobState is the rotation state of a single job. The zero value means
// the job has never fired.
type JobState struct {
	// LastFiredAt is the epoch-second timestamp of the last successful
	// rotation; zero means never. Monotonically non-decreasing.
	LastFiredAt int64 `json:"last_fired_at"`
	// Cursor is kind-specific: the pool-window start for multi-pool
	// jobs, the round-robin index for single-record jobs.
	Cursor int `json:"cursor"`
	// ConsecutiveFailures counts the current failure streak.
	ConsecutiveFailures int `json:"consecutive_failures"`
}

// TriggerState records the most recent period a trigger fired in.
type TriggerState struct {
	LastFiredPeriod string `json:"last_fired_period"`
}

// TrafficWindow accumulates interface traffic for one calendar period.
type TrafficWindow struct {
	Period  string `json:"period"`
	RxBytes uint64 `json:"rx_bytes"`
	TxBytes uint64 `json:"tx_bytes"`
}

// TrafficState holds a self-monitor agent's counter baseline and its
// per-window accumulation buckets.
type TrafficState struct {
	// LastRxTotal/LastTxTotal are the interface counters seen at the
	// previous sample, used to compute deltas across samples.
	LastRxTotal uint64 `json:"last_rx_total"`
	LastTxTotal uint64 `json:"last_tx_total"`
	// Windows is keyed by window name (daily, weekly, monthly).
	Windows map[string]TrafficWindow `json:"windows,omitempty"`
}

// Document is the persisted state file.
type Document struct {
	Jobs     map[string]JobState     `json:"jobs"`
	Triggers map[string]TriggerState `json:"triggers"`
	Traffic  map[string]TrafficState `json:"traffic,omitempty"`
}

func emptyDocument() *Document {
	return &Document{
		Jobs:     make(map[string]JobState),
		Triggers: make(map[string]TriggerState),
		Traffic:  make(map[string]TrafficState),
	}
}

// Store persists the state document. The document is cached in memory
// across ticks; every mutation is written through to disk before the
// mutating call returns.
type Store struct {
	path string

	mu  sync.Mutex
	doc *Document
}

// NewStore creates a store for the document at path. Call Load before
// any other method.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the state file into memory. A missing file is treated as
// empty state; an unreadable or corrupt file is an error the caller
// must treat as fatal.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = emptyDocument()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state %s: %w", s.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("corrupt state file %s: %w", s.path, err)
	}
	if doc.Jobs == nil {
		doc.Jobs = make(map[string]JobState)
	}
	if doc.Triggers == nil {
		doc.Triggers = make(map[string]TriggerState)
	}
	if doc.Traffic == nil {
		doc.Traffic = make(map[string]TrafficState)
	}
	s.doc = &doc
	return nil
}

// persist writes the in-memory document to disk. Must be called with
// the lock held.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return atomicfile.WriteFile(s.path, data, 0o644)
}

// Job returns the state for a job. Missing state means "never fired".
func (s *Store) Job(jobID string) JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Jobs[jobID]
}

// SetJob stores and persists the state for a job.
func (s *Store) SetJob(jobID string, st JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc.Jobs[jobID]
	if st.LastFiredAt < prev.LastFiredAt {
		return fmt.Errorf("job %s: last_fired_at would move backwards (%d < %d)", jobID, st.LastFiredAt, prev.LastFiredAt)
	}
	s.doc.Jobs[jobID] = st
	return s.persist()
}

// Trigger returns the firing state for a trigger.
func (s *Store) Trigger(triggerID string) TriggerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Triggers[triggerID]
}

// SetTriggerFired records and persists that a trigger fired for the
// given period identifier.
func (s *Store) SetTriggerFired(triggerID, period string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Triggers[triggerID] = TriggerState{LastFiredPeriod: period}
	return s.persist()
}

// Traffic returns the accumulated traffic state for a self-monitor agent.
func (s *Store) Traffic(agentID string) TrafficState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Traffic[agentID]
}

// SetTraffic stores and persists a self-monitor agent's traffic state.
func (s *Store) SetTraffic(agentID string, st TrafficState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Traffic[agentID] = st
	return s.persist()
}

// Jobs returns a copy of all job states, keyed by job id.
func (s *Store) Jobs() map[string]JobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobState, len(s.doc.Jobs))
	for id, st := range s.doc.Jobs {
		out[id] = st
	}
	return out
}

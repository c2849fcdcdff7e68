// Package config owns the operator's configuration document: accounts,
// zone references, rotation jobs, traffic agents and usage triggers.
// The document is written by the interactive UI and read by the engine;
// the engine never writes it. Parsing validates exhaustively up-front
// so the rest of the system operates on well-typed values.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
)

// JobKind selects the rotation algorithm for a job.
type JobKind string

const (
	// KindSingle rotates one record through an IP pool.
	KindSingle JobKind = "single"
	// KindMultiPool slides a window over an IP pool across several records.
	KindMultiPool JobKind = "multi_pool"
	// KindShuffle cyclically shifts the live values of a record set.
	KindShuffle JobKind = "shuffle"
)

// Window is a calendar interval for traffic triggers.
type Window string

const (
	// Daily measures traffic per calendar day.
	Daily Window = "daily"
	// Weekly measures traffic per ISO week.
	Weekly Window = "weekly"
	// Monthly measures traffic per calendar month.
	Monthly Window = "monthly"
)

// AgentKind selects how traffic totals are obtained.
type AgentKind string

const (
	// AgentRemote polls a remote agent over HTTP.
	AgentRemote AgentKind = "remote"
	// AgentSelf reads local interface counters on this host.
	AgentSelf AgentKind = "self"
)

// Account is a named credential bundle authorizing provider access.
// The token is opaque and never logged.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Zone is a local reference to a provider-owned DNS zone.
type Zone struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

// SinglePayload configures a single-record rotation.
type SinglePayload struct {
	RecordID   string              `json:"record_id"`
	RecordType provider.RecordType `json:"record_type"`
	IPPool     []string            `json:"ip_pool"`
}

// MultiPoolPayload configures a windowed pool rotation over several records.
type MultiPoolPayload struct {
	RecordIDs  []string            `json:"record_ids"`
	RecordType provider.RecordType `json:"record_type"`
	IPPool     []string            `json:"ip_pool"`
}

// ShufflePayload configures a cyclic shift of live values across records.
type ShufflePayload struct {
	RecordIDs []string `json:"record_ids"`
	Shift     int      `json:"shift"`
}

// Job is the unit of scheduled work. Exactly one payload matching Kind
// is non-nil after a successful load.
type Job struct {
	ID              string
	AccountID       string
	ZoneID          string
	Kind            JobKind
	IntervalMinutes int
	Enabled         bool

	Single    *SinglePayload
	MultiPool *MultiPoolPayload
	Shuffle   *ShufflePayload
}

// Agent is a traffic-measurement source for usage triggers.
type Agent struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Kind AgentKind `json:"type,omitempty"`

	// Remote agents.
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`

	// Self-monitor agents.
	Interface string `json:"interface,omitempty"`
}

// Trigger fires an alert when an agent's traffic for a window exceeds
// a limit, at most once per period.
type Trigger struct {
	ID      string  `json:"id"`
	AgentID string  `json:"agent_id"`
	Window  Window  `json:"window"`
	LimitGB float64 `json:"limit_gb"`
	Label   string  `json:"label"`
}

// Document is the full operator configuration, persisted as one JSON
// document.
type Document struct {
	Accounts []Account `json:"accounts"`
	Zones    []Zone    `json:"zones"`
	Jobs     []Job     `json:"jobs"`
	Agents   []Agent   `json:"agents,omitempty"`
	Triggers []Trigger `json:"triggers,omitempty"`
}

// jobJSON is the flat wire form of a Job; kind-specific fields are
// hoisted to the top level per the document format.
type jobJSON struct {
	ID              string  `json:"id"`
	AccountID       string  `json:"account_id"`
	ZoneID          string  `json:"zone_id"`
	Kind            JobKind `json:"kind"`
	IntervalMinutes int     `json:"interval_minutes"`
	Enabled         bool    `json:"enabled"`

	RecordID   string              `json:"record_id,omitempty"`
	RecordIDs  []string            `json:"record_ids,omitempty"`
	RecordType provider.RecordType `json:"record_type,omitempty"`
	IPPool     []string            `json:"ip_pool,omitempty"`
	Shift      int                 `json:"shift,omitempty"`
}

// MarshalJSON flattens the kind-specific payload into the wire form.
func (j Job) MarshalJSON() ([]byte, error) {
	w := jobJSON{
		ID:              j.ID,
		AccountID:       j.AccountID,
		ZoneID:          j.ZoneID,
		Kind:            j.Kind,
		IntervalMinutes: j.IntervalMinutes,
		Enabled:         j.Enabled,
	}
	switch j.Kind {
	case KindSingle:
		if j.Single != nil {
			w.RecordID = j.Single.RecordID
			w.RecordType = j.Single.RecordType
			w.IPPool = j.Single.IPPool
		}
	case KindMultiPool:
		if j.MultiPool != nil {
			w.RecordIDs = j.MultiPool.RecordIDs
			w.RecordType = j.MultiPool.RecordType
			w.IPPool = j.MultiPool.IPPool
		}
	case KindShuffle:
		if j.Shuffle != nil {
			w.RecordIDs = j.Shuffle.RecordIDs
			w.Shift = j.Shuffle.Shift
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON builds the tagged payload from the wire form. Unknown
// kinds are rejected here so validation can assume a known variant.
func (j *Job) UnmarshalJSON(data []byte) error {
	var w jobJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*j = Job{
		ID:              w.ID,
		AccountID:       w.AccountID,
		ZoneID:          w.ZoneID,
		Kind:            w.Kind,
		IntervalMinutes: w.IntervalMinutes,
		Enabled:         w.Enabled,
	}
	switch w.Kind {
	case KindSingle:
		j.Single = &SinglePayload{
			RecordID:   w.RecordID,
			RecordType: w.RecordType,
			IPPool:     w.IPPool,
		}
	case KindMultiPool:
		j.MultiPool = &MultiPoolPayload{
			RecordIDs:  w.RecordIDs,
			RecordType: w.RecordType,
			IPPool:     w.IPPool,
		}
	case KindShuffle:
		shift := w.Shift
		if shift == 0 {
			shift = 1
		}
		j.Shuffle = &ShufflePayload{
			RecordIDs: w.RecordIDs,
			Shift:     shift,
		}
	default:
		return fmt.Errorf("job %q: unknown kind %q", w.ID, w.Kind)
	}
	return nil
}

// FindAccount returns the account with the given id, or nil.
func (d *Document) FindAccount(id string) *Account {
	for i := range d.Accounts {
		if d.Accounts[i].ID == id {
			return &d.Accounts[i]
		}
	}
	return nil
}

// FindZone returns the zone with the given id, or nil.
func (d *Document) FindZone(id string) *Zone {
	for i := range d.Zones {
		if d.Zones[i].ID == id {
			return &d.Zones[i]
		}
	}
	return nil
}

// FindAgent returns the agent with the given id, or nil.
func (d *Document) FindAgent(id string) *Agent {
	for i := range d.Agents {
		if d.Agents[i].ID == id {
			return &d.Agents[i]
		}
	}
	return nil
}

// FindJob returns the job with the given id, or nil.
func (d *Document) FindJob(id string) *Job {
	for i := range d.Jobs {
		if d.Jobs[i].ID == id {
			return &d.Jobs[i]
		}
	}
	return nil
}

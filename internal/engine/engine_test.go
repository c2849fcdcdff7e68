package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Issei-177013/Cloudflare-Utils/internal/agent"
	"github.com/Issei-177013/Cloudflare-Utils/internal/clock"
	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
	"github.com/Issei-177013/Cloudflare-Utils/internal/state"
	"github.com/Issei-177013/Cloudflare-Utils/internal/trigger"
)

// scriptedClient serves records from memory and fails on demand.
type scriptedClient struct {
	mu        sync.Mutex
	records   map[string]provider.Record
	getErr    map[string]error
	updateErr map[string]error
	tokenOK   bool
	updated   []string
}

func newScriptedClient(records map[string]provider.Record) *scriptedClient {
	return &scriptedClient{
		records:   records,
		getErr:    make(map[string]error),
		updateErr: make(map[string]error),
		tokenOK:   true,
	}
}

func (c *scriptedClient) ListZones(_ context.Context) ([]provider.Zone, error) {
	return nil, nil
}

func (c *scriptedClient) ListRecords(_ context.Context, _ string, _ provider.RecordType) ([]provider.Record, error) {
	return nil, nil
}

func (c *scriptedClient) GetRecord(_ context.Context, _, recordID string) (provider.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.getErr[recordID]; err != nil {
		return provider.Record{}, err
	}
	rec, ok := c.records[recordID]
	if !ok {
		return provider.Record{}, provider.NewFault(provider.FaultNotFound, errors.New("record not found"))
	}
	return rec, nil
}

func (c *scriptedClient) UpdateRecord(_ context.Context, _, recordID, newValue string) (provider.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.updateErr[recordID]; err != nil {
		return provider.Record{}, err
	}
	rec := c.records[recordID]
	rec.Content = newValue
	c.records[recordID] = rec
	c.updated = append(c.updated, recordID)
	return rec, nil
}

func (c *scriptedClient) VerifyToken(_ context.Context) (provider.TokenStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tokenOK {
		return provider.TokenStatus{Valid: false, MissingPermissions: []string{"user.api_tokens.verify"}}, nil
	}
	return provider.TokenStatus{Valid: true}, nil
}

func (c *scriptedClient) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updated)
}

func (c *scriptedClient) content(recordID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[recordID].Content
}

// harness wires an engine against temp-dir stores and scripted clients.
type harness struct {
	cfg     *config.Store
	st      *state.Store
	clk     *clock.Manual
	clients map[string]*scriptedClient // token -> client
	eng     *Engine
}

func newHarness(t *testing.T, doc *config.Document, clients map[string]*scriptedClient, opts ...func(*Options)) *harness {
	dir := t.TempDir()

	cfgStore := config.NewStore(filepath.Join(dir, config.ConfigFileName))
	require.NoError(t, cfgStore.Save(doc))

	stStore := state.NewStore(filepath.Join(dir, config.StateFileName))
	require.NoError(t, stStore.Load())

	clk := clock.NewManual(time.Date(2025, 8, 13, 12, 0, 0, 0, time.UTC))

	o := Options{
		Config: cfgStore,
		State:  stStore,
		Clock:  clk,
		NewClient: func(token string) (provider.Client, error) {
			c, ok := clients[token]
			if !ok {
				return nil, errors.New("unknown token")
			}
			return c, nil
		},
		Log:        zerolog.Nop(),
		TickPeriod: time.Minute,
	}
	for _, fn := range opts {
		fn(&o)
	}

	return &harness{
		cfg:     cfgStore,
		st:      stStore,
		clk:     clk,
		clients: clients,
		eng:     New(o),
	}
}

func singleJobDoc() *config.Document {
	return &config.Document{
		Accounts: []config.Account{{ID: "acc-1", Name: "main", Token: "tok-1"}},
		Zones:    []config.Zone{{ID: "zone-1", AccountID: "acc-1", Name: "example.com"}},
		Jobs: []config.Job{
			{
				ID:              "job-1",
				AccountID:       "acc-1",
				ZoneID:          "zone-1",
				Kind:            config.KindSingle,
				IntervalMinutes: 30,
				Enabled:         true,
				Single: &config.SinglePayload{
					RecordID:   "rec-1",
					RecordType: provider.TypeA,
					IPPool:     []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
				},
			},
		},
	}
}

func TestTickRotatesDueJob(t *testing.T) {
	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
	})
	h := newHarness(t, singleJobDoc(), map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.Tick(context.Background()))

	assert.Equal(t, "10.0.0.2", client.content("rec-1"))
	st := h.st.Job("job-1")
	assert.Equal(t, h.clk.Now().Unix(), st.LastFiredAt)
	assert.Equal(t, 1, st.Cursor)
	assert.Zero(t, st.ConsecutiveFailures)
}

func TestTickHonorsCadence(t *testing.T) {
	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
	})
	h := newHarness(t, singleJobDoc(), map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.Tick(context.Background()))
	require.Equal(t, 1, client.updateCount())

	// Ticks inside the interval do nothing.
	for i := 0; i < 29; i++ {
		h.clk.Advance(time.Minute)
		require.NoError(t, h.eng.Tick(context.Background()))
	}
	assert.Equal(t, 1, client.updateCount())

	// The tick at the interval boundary fires again.
	h.clk.Advance(time.Minute)
	require.NoError(t, h.eng.Tick(context.Background()))
	assert.Equal(t, 2, client.updateCount())
	assert.Equal(t, "10.0.0.3", client.content("rec-1"))
}

func TestTickSkipsDisabledJobs(t *testing.T) {
	doc := singleJobDoc()
	doc.Jobs[0].Enabled = false

	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
	})
	h := newHarness(t, doc, map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.Tick(context.Background()))
	assert.Zero(t, client.updateCount())
}

func TestTickTransientFailureCountsStreak(t *testing.T) {
	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
	})
	client.updateErr["rec-1"] = provider.NewFault(provider.FaultTransient, errors.New("upstream 502"))
	h := newHarness(t, singleJobDoc(), map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.Tick(context.Background()))
	st := h.st.Job("job-1")
	assert.Zero(t, st.LastFiredAt)
	assert.Equal(t, 1, st.ConsecutiveFailures)

	// Still due on the very next tick; the streak keeps growing.
	h.clk.Advance(time.Minute)
	require.NoError(t, h.eng.Tick(context.Background()))
	assert.Equal(t, 2, h.st.Job("job-1").ConsecutiveFailures)

	// Recovery rotates and clears the streak.
	client.mu.Lock()
	delete(client.updateErr, "rec-1")
	client.mu.Unlock()
	h.clk.Advance(time.Minute)
	require.NoError(t, h.eng.Tick(context.Background()))
	st = h.st.Job("job-1")
	assert.Equal(t, h.clk.Now().Unix(), st.LastFiredAt)
	assert.Zero(t, st.ConsecutiveFailures)
}

func TestTickQuarantinesMissingRecord(t *testing.T) {
	client := newScriptedClient(map[string]provider.Record{})
	h := newHarness(t, singleJobDoc(), map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.Tick(context.Background()))

	// Quarantine leaves state untouched; no streak, no firing.
	assert.Equal(t, state.JobState{}, h.st.Job("job-1"))
	assert.Zero(t, client.updateCount())
}

func TestTickAuthFaultAbandonsAccount(t *testing.T) {
	doc := singleJobDoc()
	doc.Jobs = append(doc.Jobs, config.Job{
		ID:              "job-2",
		AccountID:       "acc-1",
		ZoneID:          "zone-1",
		Kind:            config.KindSingle,
		IntervalMinutes: 30,
		Enabled:         true,
		Single: &config.SinglePayload{
			RecordID:   "rec-2",
			RecordType: provider.TypeA,
			IPPool:     []string{"10.0.1.1", "10.0.1.2"},
		},
	})

	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
		"rec-2": {ID: "rec-2", Content: "10.0.1.1"},
	})
	client.getErr["rec-1"] = provider.NewFault(provider.FaultAuth, errors.New("invalid token"))
	h := newHarness(t, doc, map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.Tick(context.Background()))

	// job-2 sits behind job-1 on the same account and is never reached.
	assert.Zero(t, client.updateCount())
	assert.Equal(t, state.JobState{}, h.st.Job("job-1"))
	assert.Equal(t, state.JobState{}, h.st.Job("job-2"))
}

func TestTickAuthFaultOnlyAffectsOneAccount(t *testing.T) {
	doc := singleJobDoc()
	doc.Accounts = append(doc.Accounts, config.Account{ID: "acc-2", Name: "other", Token: "tok-2"})
	doc.Zones = append(doc.Zones, config.Zone{ID: "zone-2", AccountID: "acc-2", Name: "other.com"})
	doc.Jobs = append(doc.Jobs, config.Job{
		ID:              "job-2",
		AccountID:       "acc-2",
		ZoneID:          "zone-2",
		Kind:            config.KindSingle,
		IntervalMinutes: 30,
		Enabled:         true,
		Single: &config.SinglePayload{
			RecordID:   "rec-2",
			RecordType: provider.TypeA,
			IPPool:     []string{"10.0.1.1", "10.0.1.2"},
		},
	})

	broken := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
	})
	broken.getErr["rec-1"] = provider.NewFault(provider.FaultAuth, errors.New("invalid token"))
	healthy := newScriptedClient(map[string]provider.Record{
		"rec-2": {ID: "rec-2", Content: "10.0.1.1"},
	})
	h := newHarness(t, doc, map[string]*scriptedClient{"tok-1": broken, "tok-2": healthy})

	require.NoError(t, h.eng.Tick(context.Background()))

	assert.Zero(t, broken.updateCount())
	assert.Equal(t, 1, healthy.updateCount())
	assert.Equal(t, "10.0.1.2", healthy.content("rec-2"))
}

func TestTickPartialMultiPoolAdvancesCursor(t *testing.T) {
	doc := singleJobDoc()
	doc.Jobs[0] = config.Job{
		ID:              "job-1",
		AccountID:       "acc-1",
		ZoneID:          "zone-1",
		Kind:            config.KindMultiPool,
		IntervalMinutes: 30,
		Enabled:         true,
		MultiPool: &config.MultiPoolPayload{
			RecordIDs:  []string{"rec-1", "rec-2"},
			RecordType: provider.TypeA,
			IPPool:     []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		},
	}

	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.9"},
		"rec-2": {ID: "rec-2", Content: "10.0.0.9"},
	})
	client.updateErr["rec-2"] = provider.NewFault(provider.FaultTransient, errors.New("upstream 502"))
	h := newHarness(t, doc, map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.Tick(context.Background()))

	// One of two records updated still counts as a firing: the cursor
	// slides and the failure streak resets.
	st := h.st.Job("job-1")
	assert.Equal(t, h.clk.Now().Unix(), st.LastFiredAt)
	assert.Equal(t, 1, st.Cursor)
	assert.Zero(t, st.ConsecutiveFailures)
	assert.Equal(t, "10.0.0.1", client.content("rec-1"))
}

func TestTickAbortsOnCorruptConfig(t *testing.T) {
	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
	})
	h := newHarness(t, singleJobDoc(), map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, os.WriteFile(h.cfg.Path(), []byte("{broken"), 0o644))
	err := h.eng.Tick(context.Background())
	require.Error(t, err)
	assert.Zero(t, client.updateCount())
}

func TestTriggerSubCadence(t *testing.T) {
	doc := singleJobDoc()
	doc.Agents = []config.Agent{{ID: "agent-1", Name: "edge", Kind: config.AgentRemote, BaseURL: "http://agent"}}
	doc.Triggers = []config.Trigger{{ID: "trig-1", AgentID: "agent-1", Window: config.Daily, LimitGB: 100, Label: "edge"}}

	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
	})

	calls := 0
	fakeAgents := func(_ config.Agent) (agent.Client, error) {
		return agentFunc(func(_ context.Context, _ config.Window) (agent.Usage, error) {
			calls++
			return agent.Usage{Period: "2025-08-13"}, nil
		}), nil
	}

	h := newHarness(t, doc, map[string]*scriptedClient{"tok-1": client}, func(o *Options) {
		o.Triggers = trigger.NewEvaluator(o.State, fakeAgents, zerolog.Nop())
	})

	// Triggers run on the first tick and then every fifth tick.
	for i := 0; i < 6; i++ {
		require.NoError(t, h.eng.Tick(context.Background()))
		h.clk.Advance(time.Minute)
	}
	assert.Equal(t, 2, calls)
}

func TestVerifyAccounts(t *testing.T) {
	client := newScriptedClient(map[string]provider.Record{})
	h := newHarness(t, singleJobDoc(), map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.VerifyAccounts(context.Background()))

	client.mu.Lock()
	client.tokenOK = false
	client.mu.Unlock()
	err := h.eng.VerifyAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acc-1")
}

func TestStatusReportsJobOutcomes(t *testing.T) {
	client := newScriptedClient(map[string]provider.Record{
		"rec-1": {ID: "rec-1", Content: "10.0.0.1"},
	})
	h := newHarness(t, singleJobDoc(), map[string]*scriptedClient{"tok-1": client})

	require.NoError(t, h.eng.Tick(context.Background()))

	snap := h.eng.Status()
	assert.Equal(t, uint64(1), snap.Ticks)
	require.Len(t, snap.Jobs, 1)
	assert.Equal(t, "job-1", snap.Jobs[0].JobID)
	assert.Equal(t, "rotated", snap.Jobs[0].LastResult)
	assert.Equal(t, 1, snap.Jobs[0].Cursor)
}

func TestShouldWarn(t *testing.T) {
	warns := []int{1, 2, 4, 8, 16, 1024}
	for _, n := range warns {
		assert.True(t, shouldWarn(n), "streak %d", n)
	}
	quiets := []int{0, 3, 5, 6, 7, 9, 1000}
	for _, n := range quiets {
		assert.False(t, shouldWarn(n), "streak %d", n)
	}
}

// agentFunc adapts a function to the agent.Client interface.
type agentFunc func(ctx context.Context, window config.Window) (agent.Usage, error)

func (f agentFunc) Usage(ctx context.Context, window config.Window) (agent.Usage, error) {
	return f(ctx, window)
}

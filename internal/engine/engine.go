// Package engine drives the rotation loop. Each tick snapshots the
// configuration and state, evaluates every enabled job in
// configuration order, applies updates through the provider and
// persists state after each successful rotation. Jobs on the same
// account run strictly sequentially; distinct accounts fan out in
// parallel.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Issei-177013/Cloudflare-Utils/internal/clock"
	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
	"github.com/Issei-177013/Cloudflare-Utils/internal/state"
	"github.com/Issei-177013/Cloudflare-Utils/internal/trigger"
)

const (
	// DefaultTickPeriod is the engine loop cadence in daemon mode.
	DefaultTickPeriod = time.Minute
	// DefaultRequestTimeout bounds every single provider request.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultTriggerEveryTicks is the trigger-evaluation sub-cadence.
	DefaultTriggerEveryTicks = 5
	// tickTimeoutFactor bounds a whole tick relative to the tick
	// period; jobs not reached by then wait for the next tick.
	tickTimeoutFactor = 5
)

// Options configures an Engine. Zero fields get defaults.
type Options struct {
	Config         *config.Store
	State          *state.Store
	Clock          clock.Clock
	NewClient      provider.Factory
	Triggers       *trigger.Evaluator
	Log            zerolog.Logger
	TickPeriod     time.Duration
	RequestTimeout time.Duration
	TriggerEvery   int
}

// Engine evaluates rotation jobs and applies updates.
type Engine struct {
	cfg       *config.Store
	st        *state.Store
	clk       clock.Clock
	newClient provider.Factory
	triggers  *trigger.Evaluator
	log       zerolog.Logger

	tickPeriod     time.Duration
	requestTimeout time.Duration
	triggerEvery   int

	mu          sync.Mutex
	startedAt   time.Time
	ticks       uint64
	lastTickAt  time.Time
	lastTickErr string
	lastResults map[string]string // job id -> outcome of last evaluation
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = DefaultTickPeriod
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.TriggerEvery <= 0 {
		opts.TriggerEvery = DefaultTriggerEveryTicks
	}
	return &Engine{
		cfg:            opts.Config,
		st:             opts.State,
		clk:            opts.Clock,
		newClient:      opts.NewClient,
		triggers:       opts.Triggers,
		log:            opts.Log.With().Str("component", "engine").Logger(),
		tickPeriod:     opts.TickPeriod,
		requestTimeout: opts.RequestTimeout,
		triggerEvery:   opts.TriggerEvery,
		startedAt:      opts.Clock.Now(),
		lastResults:    make(map[string]string),
	}
}

// accountBatch is the ordered set of jobs bound to one account.
type accountBatch struct {
	account config.Account
	jobs    []config.Job
}

// Tick runs one evaluation pass over all jobs. A config document that
// fails to load aborts the tick; the returned error lets one-shot
// callers map it to an exit code while the daemon logs it and waits
// for the next tick.
func (e *Engine) Tick(ctx context.Context) error {
	tickCtx, cancel := context.WithTimeout(ctx, tickTimeoutFactor*e.tickPeriod)
	defer cancel()

	doc, err := e.cfg.Load()
	if err != nil {
		e.noteTick(err)
		return fmt.Errorf("tick aborted: %w", err)
	}

	now := e.clk.Now()
	batches := groupByAccount(doc)

	g := new(errgroup.Group)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			e.runAccountJobs(tickCtx, now, doc, batch)
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	e.ticks++
	runTriggers := e.triggers != nil && (e.ticks-1)%uint64(e.triggerEvery) == 0
	e.mu.Unlock()

	if runTriggers {
		e.triggers.Evaluate(tickCtx, doc)
	}

	e.noteTick(nil)
	return nil
}

// VerifyAccounts checks every account token. It returns an error
// naming the accounts whose credentials are invalid.
func (e *Engine) VerifyAccounts(ctx context.Context) error {
	doc, err := e.cfg.Load()
	if err != nil {
		return err
	}

	var invalid []string
	for _, acc := range doc.Accounts {
		client, err := e.newClient(acc.Token)
		if err != nil {
			invalid = append(invalid, acc.ID)
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
		status, err := client.VerifyToken(reqCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("account %s: token verification failed: %w", acc.ID, err)
		}
		if !status.Valid {
			e.log.Error().
				Str("account", acc.ID).
				Strs("missing_permissions", status.MissingPermissions).
				Msg("account token invalid")
			invalid = append(invalid, acc.ID)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid credentials for account(s) %s", strings.Join(invalid, ", "))
	}
	return nil
}

// groupByAccount splits jobs into per-account batches, preserving
// configuration order both across batches and within each batch.
func groupByAccount(doc *config.Document) []accountBatch {
	index := make(map[string]int)
	var batches []accountBatch
	for _, j := range doc.Jobs {
		if !j.Enabled {
			continue
		}
		acc := doc.FindAccount(j.AccountID)
		if acc == nil {
			continue
		}
		i, ok := index[j.AccountID]
		if !ok {
			i = len(batches)
			index[j.AccountID] = i
			batches = append(batches, accountBatch{account: *acc})
		}
		batches[i].jobs = append(batches[i].jobs, j)
	}
	return batches
}

func (e *Engine) noteTick(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTickAt = e.clk.Now()
	if err != nil {
		e.lastTickErr = err.Error()
	} else {
		e.lastTickErr = ""
	}
}

func (e *Engine) noteResult(jobID, result string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastResults[jobID] = result
}

package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	gopsnet "github.com/shirou/gopsutil/v3/net"

	"github.com/Issei-177013/Cloudflare-Utils/internal/clock"
	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
	"github.com/Issei-177013/Cloudflare-Utils/internal/state"
)

// counterSource reads cumulative interface counters. The real source
// is gopsutil; tests inject a fake.
type counterSource func(ctx context.Context, iface string) (rx, tx uint64, err error)

// SelfMonitor measures traffic on a local network interface instead of
// polling a remote agent. Interface counters are cumulative since
// boot, so each sample's delta is accumulated into per-window period
// buckets persisted through the state store.
type SelfMonitor struct {
	agentID string
	iface   string
	store   *state.Store
	clk     clock.Clock
	read    counterSource
	log     zerolog.Logger
}

var _ Client = &SelfMonitor{}

// NewSelfMonitor creates a self-monitor agent for a local interface.
func NewSelfMonitor(a config.Agent, store *state.Store, clk clock.Clock, log zerolog.Logger) *SelfMonitor {
	return &SelfMonitor{
		agentID: a.ID,
		iface:   a.Interface,
		store:   store,
		clk:     clk,
		read:    readInterfaceCounters,
		log:     log.With().Str("component", "agent").Str("agent", a.Name).Logger(),
	}
}

func readInterfaceCounters(ctx context.Context, iface string) (uint64, uint64, error) {
	counters, err := gopsnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read interface counters: %w", err)
	}
	for _, c := range counters {
		if c.Name == iface {
			return c.BytesRecv, c.BytesSent, nil
		}
	}
	return 0, 0, fmt.Errorf("interface %q not found", iface)
}

// Usage samples the interface, folds the delta since the previous
// sample into every window's current-period bucket and returns the
// requested window's totals.
func (m *SelfMonitor) Usage(ctx context.Context, window config.Window) (Usage, error) {
	rx, tx, err := m.read(ctx, m.iface)
	if err != nil {
		return Usage{}, err
	}

	now := m.clk.Now()
	st := m.store.Traffic(m.agentID)
	if st.Windows == nil {
		st.Windows = make(map[string]state.TrafficWindow)
	}

	// A counter lower than the baseline means the counter reset
	// (reboot); the whole current value is then the delta.
	deltaRx := rx - st.LastRxTotal
	if rx < st.LastRxTotal {
		deltaRx = rx
	}
	deltaTx := tx - st.LastTxTotal
	if tx < st.LastTxTotal {
		deltaTx = tx
	}
	st.LastRxTotal = rx
	st.LastTxTotal = tx

	for _, w := range []config.Window{config.Daily, config.Weekly, config.Monthly} {
		period := PeriodID(w, now)
		bucket := st.Windows[string(w)]
		if bucket.Period != period {
			bucket = state.TrafficWindow{Period: period}
		}
		bucket.RxBytes += deltaRx
		bucket.TxBytes += deltaTx
		st.Windows[string(w)] = bucket
	}

	if err := m.store.SetTraffic(m.agentID, st); err != nil {
		return Usage{}, err
	}

	current := st.Windows[string(window)]
	return Usage{
		RxBytes: current.RxBytes,
		TxBytes: current.TxBytes,
		Period:  current.Period,
	}, nil
}

// NewFromConfig builds the right client for an agent entry.
func NewFromConfig(a config.Agent, store *state.Store, clk clock.Clock, log zerolog.Logger) (Client, error) {
	switch a.Kind {
	case config.AgentSelf:
		return NewSelfMonitor(a, store, clk, log), nil
	case config.AgentRemote, "":
		return NewRemote(a, clk, log), nil
	default:
		return nil, fmt.Errorf("agent %s: unknown type %q", a.ID, a.Kind)
	}
}

// Package agent provides clients for traffic-measurement sources.
// A remote agent is polled over HTTP; a self-monitor agent reads the
// local interface counters of the host the engine runs on. The
// trigger evaluator only sees the Client interface.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/Issei-177013/Cloudflare-Utils/internal/config"
)

// Usage is the accumulated traffic for one window, together with the
// period identifier the measurement belongs to (e.g. "2025-08-13",
// "2025-W33", "2025-08").
type Usage struct {
	RxBytes uint64
	TxBytes uint64
	Period  string
}

// TotalGB returns the combined rx+tx volume in gigabytes.
func (u Usage) TotalGB() float64 {
	return float64(u.RxBytes+u.TxBytes) / (1 << 30)
}

// Client reports traffic usage for calendar windows.
type Client interface {
	Usage(ctx context.Context, window config.Window) (Usage, error)
}

// PeriodID returns the canonical period identifier for a window at a
// given time: day "2006-01-02", ISO week "2006-W33", month "2006-01".
func PeriodID(window config.Window, t time.Time) string {
	switch window {
	case config.Daily:
		return t.Format("2006-01-02")
	case config.Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case config.Monthly:
		return t.Format("2006-01")
	default:
		return ""
	}
}

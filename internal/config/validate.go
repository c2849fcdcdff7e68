package config

import (
	"fmt"
	"net/netip"

	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
)

// MinIntervalMinutes is the floor on job rotation intervals. The
// engine may tick faster so that jobs at the floor fire promptly.
const MinIntervalMinutes = 5

// Validate checks the whole document and rejects it on the first
// failure, naming the offending entity. A document that passes is safe
// for the engine to operate on without further runtime checks.
func (d *Document) Validate() error {
	accountIDs := make(map[string]bool, len(d.Accounts))
	for _, a := range d.Accounts {
		if a.ID == "" {
			return fmt.Errorf("account %q: missing id", a.Name)
		}
		if a.Token == "" {
			return fmt.Errorf("account %s: missing token", a.ID)
		}
		if accountIDs[a.ID] {
			return fmt.Errorf("account %s: duplicate id", a.ID)
		}
		accountIDs[a.ID] = true
	}

	zoneIDs := make(map[string]bool, len(d.Zones))
	for _, z := range d.Zones {
		if z.ID == "" {
			return fmt.Errorf("zone %q: missing id", z.Name)
		}
		if zoneIDs[z.ID] {
			return fmt.Errorf("zone %s: duplicate id", z.ID)
		}
		zoneIDs[z.ID] = true
		if !accountIDs[z.AccountID] {
			return fmt.Errorf("zone %s: unknown account %q", z.ID, z.AccountID)
		}
	}

	jobIDs := make(map[string]bool, len(d.Jobs))
	for i := range d.Jobs {
		if err := d.validateJob(&d.Jobs[i], accountIDs, zoneIDs, jobIDs); err != nil {
			return err
		}
	}

	agentIDs := make(map[string]bool, len(d.Agents))
	for _, a := range d.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent %q: missing id", a.Name)
		}
		if agentIDs[a.ID] {
			return fmt.Errorf("agent %s: duplicate id", a.ID)
		}
		agentIDs[a.ID] = true
		switch a.Kind {
		case AgentRemote, "":
			if a.BaseURL == "" {
				return fmt.Errorf("agent %s: missing base_url", a.ID)
			}
		case AgentSelf:
			if a.Interface == "" {
				return fmt.Errorf("agent %s: missing interface", a.ID)
			}
		default:
			return fmt.Errorf("agent %s: unknown type %q", a.ID, a.Kind)
		}
	}

	triggerIDs := make(map[string]bool, len(d.Triggers))
	for _, t := range d.Triggers {
		if t.ID == "" {
			return fmt.Errorf("trigger %q: missing id", t.Label)
		}
		if triggerIDs[t.ID] {
			return fmt.Errorf("trigger %s: duplicate id", t.ID)
		}
		triggerIDs[t.ID] = true
		if !agentIDs[t.AgentID] {
			return fmt.Errorf("trigger %s: unknown agent %q", t.ID, t.AgentID)
		}
		switch t.Window {
		case Daily, Weekly, Monthly:
		default:
			return fmt.Errorf("trigger %s: unknown window %q", t.ID, t.Window)
		}
		if t.LimitGB <= 0 {
			return fmt.Errorf("trigger %s: limit_gb must be positive", t.ID)
		}
	}

	return nil
}

func (d *Document) validateJob(j *Job, accountIDs, zoneIDs, jobIDs map[string]bool) error {
	if j.ID == "" {
		return fmt.Errorf("job: missing id")
	}
	if jobIDs[j.ID] {
		return fmt.Errorf("job %s: duplicate id", j.ID)
	}
	jobIDs[j.ID] = true
	if !accountIDs[j.AccountID] {
		return fmt.Errorf("job %s: unknown account %q", j.ID, j.AccountID)
	}
	if !zoneIDs[j.ZoneID] {
		return fmt.Errorf("job %s: unknown zone %q", j.ID, j.ZoneID)
	}
	if j.IntervalMinutes < MinIntervalMinutes {
		return fmt.Errorf("job %s: interval_minutes must be at least %d", j.ID, MinIntervalMinutes)
	}

	switch j.Kind {
	case KindSingle:
		p := j.Single
		if p == nil || p.RecordID == "" {
			return fmt.Errorf("job %s: missing record_id", j.ID)
		}
		if err := validatePool(j.ID, p.IPPool, p.RecordType, 1); err != nil {
			return err
		}
	case KindMultiPool:
		p := j.MultiPool
		if p == nil || len(p.RecordIDs) == 0 {
			return fmt.Errorf("job %s: missing record_ids", j.ID)
		}
		if err := validatePool(j.ID, p.IPPool, p.RecordType, len(p.RecordIDs)); err != nil {
			return err
		}
	case KindShuffle:
		p := j.Shuffle
		if p == nil || len(p.RecordIDs) < 2 {
			return fmt.Errorf("job %s: shuffle needs at least two records", j.ID)
		}
		if p.Shift < 1 || p.Shift >= len(p.RecordIDs) {
			return fmt.Errorf("job %s: shift must be between 1 and %d", j.ID, len(p.RecordIDs)-1)
		}
	default:
		return fmt.Errorf("job %s: unknown kind %q", j.ID, j.Kind)
	}
	return nil
}

// validatePool checks the pool size and that every entry parses as an
// IP of the declared record family. The engine never sees a
// family-mismatched pool at runtime.
func validatePool(jobID string, pool []string, rt provider.RecordType, minSize int) error {
	if rt != provider.TypeA && rt != provider.TypeAAAA {
		return fmt.Errorf("job %s: record_type must be A or AAAA", jobID)
	}
	if len(pool) < minSize {
		return fmt.Errorf("job %s: ip_pool needs at least %d entries", jobID, minSize)
	}
	for _, ip := range pool {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return fmt.Errorf("job %s: invalid ip %q", jobID, ip)
		}
		if rt == provider.TypeA && !addr.Is4() {
			return fmt.Errorf("job %s: ip %q is not IPv4 but record type is A", jobID, ip)
		}
		if rt == provider.TypeAAAA && addr.Is4() {
			return fmt.Errorf("job %s: ip %q is not IPv6 but record type is AAAA", jobID, ip)
		}
	}
	return nil
}

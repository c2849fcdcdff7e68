package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/Issei-177013/Cloudflare-Utils/internal/atomicfile"
)

// Store persists the configuration document. Reads return a fresh
// snapshot so the engine picks up UI edits at the next tick boundary;
// writes validate first and go through a temp file + rename so readers
// never observe a torn document.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the live document.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the document. A missing file is an empty,
// valid configuration; a file that fails to parse or validate rejects
// the whole document.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", s.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", s.path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", s.path, err)
	}
	return &doc, nil
}

// Save validates and atomically replaces the document on disk.
func (s *Store) Save(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The document carries provider tokens; keep it operator-readable only.
	return atomicfile.WriteFile(s.path, data, 0o600)
}

// mutate loads the document, applies fn and saves the result.
func (s *Store) mutate(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(doc)
}

// AddAccount registers a credential bundle and returns it with a
// freshly minted id.
func (s *Store) AddAccount(name, token string) (Account, error) {
	acc := Account{ID: uuid.NewString(), Name: name, Token: token}
	err := s.mutate(func(doc *Document) error {
		doc.Accounts = append(doc.Accounts, acc)
		return nil
	})
	return acc, err
}

// RemoveAccount deletes an account. It refuses while any zone still
// references the account.
func (s *Store) RemoveAccount(id string) error {
	return s.mutate(func(doc *Document) error {
		for _, z := range doc.Zones {
			if z.AccountID == id {
				return fmt.Errorf("account %s is still referenced by zone %s", id, z.ID)
			}
		}
		for i, a := range doc.Accounts {
			if a.ID == id {
				doc.Accounts = append(doc.Accounts[:i], doc.Accounts[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("account %s not found", id)
	})
}

// AddZone caches a reference to a provider-owned zone.
func (s *Store) AddZone(zoneID, accountID, name string) (Zone, error) {
	z := Zone{ID: zoneID, AccountID: accountID, Name: name}
	err := s.mutate(func(doc *Document) error {
		doc.Zones = append(doc.Zones, z)
		return nil
	})
	return z, err
}

// RemoveZone deletes a zone reference. It refuses while any job still
// references the zone.
func (s *Store) RemoveZone(id string) error {
	return s.mutate(func(doc *Document) error {
		for _, j := range doc.Jobs {
			if j.ZoneID == id {
				return fmt.Errorf("zone %s is still referenced by job %s", id, j.ID)
			}
		}
		for i, z := range doc.Zones {
			if z.ID == id {
				doc.Zones = append(doc.Zones[:i], doc.Zones[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("zone %s not found", id)
	})
}

// AddJob registers a rotation job. An empty job id is minted.
func (s *Store) AddJob(j Job) (Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	err := s.mutate(func(doc *Document) error {
		doc.Jobs = append(doc.Jobs, j)
		return nil
	})
	return j, err
}

// UpdateJob replaces the job with the same id.
func (s *Store) UpdateJob(j Job) error {
	return s.mutate(func(doc *Document) error {
		for i := range doc.Jobs {
			if doc.Jobs[i].ID == j.ID {
				doc.Jobs[i] = j
				return nil
			}
		}
		return fmt.Errorf("job %s not found", j.ID)
	})
}

// RemoveJob deletes a job.
func (s *Store) RemoveJob(id string) error {
	return s.mutate(func(doc *Document) error {
		for i, j := range doc.Jobs {
			if j.ID == id {
				doc.Jobs = append(doc.Jobs[:i], doc.Jobs[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("job %s not found", id)
	})
}

// AddAgent registers a traffic agent. An empty agent id is minted.
func (s *Store) AddAgent(a Agent) (Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := s.mutate(func(doc *Document) error {
		doc.Agents = append(doc.Agents, a)
		return nil
	})
	return a, err
}

// AddTrigger registers a usage trigger. An empty trigger id is minted.
func (s *Store) AddTrigger(t Trigger) (Trigger, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.mutate(func(doc *Document) error {
		doc.Triggers = append(doc.Triggers, t)
		return nil
	})
	return t, err
}

// RemoveTrigger deletes a trigger.
func (s *Store) RemoveTrigger(id string) error {
	return s.mutate(func(doc *Document) error {
		for i, t := range doc.Triggers {
			if t.ID == id {
				doc.Triggers = append(doc.Triggers[:i], doc.Triggers[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("trigger %s not found", id)
	})
}

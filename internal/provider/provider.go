// Package provider defines the DNS backend abstraction the rotation
// engine consumes. Implementations are thin: they never retry, never
// sleep and never log. Retry policy, pacing and logging live in the
// engine, which also applies per-request timeouts via context.
package provider

import "context"

// RecordType is a DNS record type the rotator supports.
type RecordType string

const (
	// TypeA is an IPv4 address record.
	TypeA RecordType = "A"
	// TypeAAAA is an IPv6 address record.
	TypeAAAA RecordType = "AAAA"
)

// Zone is a DNS zone as reported by the provider.
type Zone struct {
	ID   string
	Name string
}

// Record is a DNS A/AAAA record as reported by the provider.
// The engine holds no persistent copy; records are read live at
// evaluation time.
type Record struct {
	ID      string
	Name    string
	Type    RecordType
	Content string
	Proxied bool
	TTL     int
}

// TokenStatus is the result of verifying an account token.
type TokenStatus struct {
	Valid              bool
	MissingPermissions []string
}

// Client is the capability set the engine requires from a DNS backend.
// All operations are synchronous from the caller's view but may block
// on network I/O.
type Client interface {
	// ListZones returns all zones the token can see.
	ListZones(ctx context.Context) ([]Zone, error)

	// ListRecords returns the full record set of a zone, paginating
	// internally if the backend pages. An empty typeFilter returns
	// records of every type.
	ListRecords(ctx context.Context, zoneID string, typeFilter RecordType) ([]Record, error)

	// GetRecord reads a single record.
	GetRecord(ctx context.Context, zoneID, recordID string) (Record, error)

	// UpdateRecord changes only the record's value; type, name, proxied
	// flag and TTL are preserved across the update.
	UpdateRecord(ctx context.Context, zoneID, recordID, newValue string) (Record, error)

	// VerifyToken checks that the account token is valid and reports
	// missing permission scopes.
	VerifyToken(ctx context.Context) (TokenStatus, error)
}

// Factory builds a Client for an account token. The engine creates one
// client per account per tick.
type Factory func(token string) (Client, error)

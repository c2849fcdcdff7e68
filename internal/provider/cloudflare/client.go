// Package cloudflare implements the provider.Client interface on top
// of the Cloudflare v4 HTTP API. The client authenticates with a
// bearer token and surfaces classified faults; it performs no retries,
// pacing or logging of its own.
package cloudflare

import (
	"context"
	"fmt"

	"github.com/cloudflare/cloudflare-go"

	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
)

const recordsPerPage = 100

// Client talks to the Cloudflare API for a single account token.
type Client struct {
	api *cloudflare.API
}

var _ provider.Client = &Client{}

// New creates a Client for the given API token.
func New(token string) (*Client, error) {
	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudflare client: %w", err)
	}
	return &Client{api: api}, nil
}

// NewClient is a provider.Factory adapter around New.
func NewClient(token string) (provider.Client, error) {
	return New(token)
}

// ListZones returns all zones visible to the token.
func (c *Client) ListZones(ctx context.Context) ([]provider.Zone, error) {
	raw, err := c.api.ListZones(ctx)
	if err != nil {
		return nil, classify(err)
	}

	zones := make([]provider.Zone, 0, len(raw))
	for _, z := range raw {
		zones = append(zones, provider.Zone{ID: z.ID, Name: z.Name})
	}
	return zones, nil
}

// ListRecords returns the full record set of a zone, following the
// API's pagination until all pages are consumed.
func (c *Client) ListRecords(ctx context.Context, zoneID string, typeFilter provider.RecordType) ([]provider.Record, error) {
	var records []provider.Record

	resultInfo := &cloudflare.ResultInfo{
		Page:    1,
		PerPage: recordsPerPage,
	}
	for {
		var (
			raw []cloudflare.DNSRecord
			err error
		)
		raw, resultInfo, err = c.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
			Type:       string(typeFilter),
			ResultInfo: *resultInfo,
		})
		if err != nil {
			return nil, classify(err)
		}
		for _, r := range raw {
			records = append(records, toRecord(r))
		}
		if resultInfo.Page >= resultInfo.TotalPages {
			break
		}
		resultInfo.Page++
	}
	return records, nil
}

// GetRecord reads a single record.
func (c *Client) GetRecord(ctx context.Context, zoneID, recordID string) (provider.Record, error) {
	raw, err := c.api.GetDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), recordID)
	if err != nil {
		return provider.Record{}, classify(err)
	}
	return toRecord(raw), nil
}

// UpdateRecord changes the record's value. Type, name, proxied flag
// and TTL are read just-in-time and sent back unchanged, so the update
// only ever moves the record's content.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID, newValue string) (provider.Record, error) {
	current, err := c.api.GetDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), recordID)
	if err != nil {
		return provider.Record{}, classify(err)
	}

	updated, err := c.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Type:    current.Type,
		Name:    current.Name,
		Content: newValue,
		TTL:     current.TTL,
		Proxied: current.Proxied,
	})
	if err != nil {
		return provider.Record{}, classify(err)
	}
	return toRecord(updated), nil
}

// VerifyToken checks the token against the verification endpoint.
// An inactive token is reported as invalid rather than as an error so
// callers can distinguish credential problems from network ones.
func (c *Client) VerifyToken(ctx context.Context) (provider.TokenStatus, error) {
	body, err := c.api.VerifyAPIToken(ctx)
	if err != nil {
		if provider.KindOf(classify(err)) == provider.FaultAuth {
			return provider.TokenStatus{Valid: false, MissingPermissions: []string{"user.api_tokens.verify"}}, nil
		}
		return provider.TokenStatus{}, classify(err)
	}
	return provider.TokenStatus{Valid: body.Status == "active"}, nil
}

func toRecord(r cloudflare.DNSRecord) provider.Record {
	proxied := false
	if r.Proxied != nil {
		proxied = *r.Proxied
	}
	return provider.Record{
		ID:      r.ID,
		Name:    r.Name,
		Type:    provider.RecordType(r.Type),
		Content: r.Content,
		Proxied: proxied,
		TTL:     r.TTL,
	}
}

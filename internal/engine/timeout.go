package engine

import (
	"context"
	"time"

	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
)

// timeoutClient bounds every provider request with its own deadline,
// on top of whatever deadline the tick context carries.
type timeoutClient struct {
	inner   provider.Client
	timeout time.Duration
}

func withTimeout(inner provider.Client, timeout time.Duration) provider.Client {
	return &timeoutClient{inner: inner, timeout: timeout}
}

func (c *timeoutClient) ListZones(ctx context.Context) ([]provider.Zone, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.ListZones(ctx)
}

func (c *timeoutClient) ListRecords(ctx context.Context, zoneID string, typeFilter provider.RecordType) ([]provider.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.ListRecords(ctx, zoneID, typeFilter)
}

func (c *timeoutClient) GetRecord(ctx context.Context, zoneID, recordID string) (provider.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.GetRecord(ctx, zoneID, recordID)
}

func (c *timeoutClient) UpdateRecord(ctx context.Context, zoneID, recordID, newValue string) (provider.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.UpdateRecord(ctx, zoneID, recordID, newValue)
}

func (c *timeoutClient) VerifyToken(ctx context.Context) (provider.TokenStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.VerifyToken(ctx)
}

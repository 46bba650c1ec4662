package gateway

import (
	"context"
	"strconv"
)

// Sds fetches one SDS.
func (c *Client) Sds(ctx context.Context, id string) (*Sds, error) {
	return call(ctx, c, "get SDS "+id, func(s session) (*Sds, error) {
		found, err := s.system.GetSdsByID(id)
		if err != nil {
			return nil, err
		}
		var out Sds
		if err := convert(found, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// SdsByName lists SDSs with the given name.
func (c *Client) SdsByName(ctx context.Context, name string) ([]Sds, error) {
	return call(ctx, c, "list SDS", func(s session) ([]Sds, error) {
		all, err := s.system.GetAllSds()
		if err != nil {
			return nil, err
		}
		return named(all, name, func(sds Sds) string { return sds.Name })
	})
}

// CreateSds adds an SDS and returns its id. The body is posted as is so the
// cache flags keep the types the gateway expects.
func (c *Client) CreateSds(ctx context.Context, body SdsCreate) (string, error) {
	return c.create(ctx, TypeSds, body)
}

// RenameSds sets a new SDS name.
func (c *Client) RenameSds(ctx context.Context, id, name string) error {
	return c.do(ctx, "rename SDS "+id, func(s session) error {
		return s.domain("").SetSdsName(id, name)
	})
}

// SetSdsRfcache toggles flash read cache.
func (c *Client) SetSdsRfcache(ctx context.Context, id string, enabled bool) error {
	return c.Action(ctx, TypeSds, id, toggle(enabled, "enableSdsRfcache", "disableSdsRfcache"), nil)
}

// SetSdsRmcache toggles RAM read cache.
func (c *Client) SetSdsRmcache(ctx context.Context, id string, enabled bool) error {
	return c.Action(ctx, TypeSds, id, "setSdsRmcacheEnabled", map[string]string{"rmcacheEnabled": strconv.FormatBool(enabled)})
}

// SetSdsRmcacheSize sets the RAM read cache size in MB.
func (c *Client) SetSdsRmcacheSize(ctx context.Context, id string, sizeMB int) error {
	return c.Action(ctx, TypeSds, id, "setSdsRmcacheSize", map[string]string{"rmcacheSizeInMB": strconv.Itoa(sizeMB)})
}

// SetSdsPerformanceProfile sets Compact or HighPerformance.
func (c *Client) SetSdsPerformanceProfile(ctx context.Context, id, profile string) error {
	return c.Action(ctx, TypeSds, id, "setSdsPerformanceParameters", map[string]string{"perfProfile": profile})
}

// AddSdsIP adds an address.
func (c *Client) AddSdsIP(ctx context.Context, id string, ip SdsIP) error {
	return c.Action(ctx, TypeSds, id, "addSdsIp", ip)
}

// SetSdsIPRole changes the role of an existing address.
func (c *Client) SetSdsIPRole(ctx context.Context, id, ip, role string) error {
	return c.Action(ctx, TypeSds, id, "setSdsIpRole", map[string]string{"sdsIpToSet": ip, "newRole": role})
}

// RemoveSdsIP removes an address.
func (c *Client) RemoveSdsIP(ctx context.Context, id, ip string) error {
	return c.Action(ctx, TypeSds, id, "removeSdsIp", map[string]string{"ip": ip})
}

// RemoveSds removes an SDS.
func (c *Client) RemoveSds(ctx context.Context, id string) error {
	return c.do(ctx, "remove SDS "+id, func(s session) error {
		return s.domain("").DeleteSds(id)
	})
}

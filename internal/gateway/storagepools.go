package gateway

import (
	"context"
	"strconv"

	"github.com/dell/goscaleio"
	siotypes "github.com/dell/goscaleio/types/v1"
)

// StoragePool fetches one storage pool.
func (c *Client) StoragePool(ctx context.Context, id string) (*StoragePool, error) {
	return call(ctx, c, "get storage pool "+id, func(s session) (*StoragePool, error) {
		found, err := s.sio.GetStoragePool(instancePath(TypeStoragePool, id))
		if err != nil {
			return nil, err
		}
		return one[StoragePool]("storage pool", id, found)
	})
}

// StoragePoolsByName lists storage pools with the given name across all protection domains.
func (c *Client) StoragePoolsByName(ctx context.Context, name string) ([]StoragePool, error) {
	return call(ctx, c, "list storage pools", func(s session) ([]StoragePool, error) {
		all, err := s.sio.GetStoragePool("")
		if err != nil {
			return nil, err
		}
		return named(all, name, func(sp StoragePool) string { return sp.Name })
	})
}

// domain is the SDK handle for one protection domain id. The SDK hangs pool and
// SDS management off it.
func (s session) domain(id string) *goscaleio.ProtectionDomain {
	return goscaleio.NewProtectionDomainEx(s.sio, &siotypes.ProtectionDomain{ID: id})
}

// CreateStoragePool creates a storage pool and returns its id.
func (c *Client) CreateStoragePool(ctx context.Context, body StoragePoolCreate) (string, error) {
	return call(ctx, c, "create storage pool "+body.Name, func(s session) (string, error) {
		var param siotypes.StoragePoolParam
		if err := convert(body, &param); err != nil {
			return "", err
		}
		return s.domain(body.ProtectionDomainID).CreateStoragePool(&param)
	})
}

// RenameStoragePool sets a new pool name.
func (c *Client) RenameStoragePool(ctx context.Context, id, name string) error {
	return c.do(ctx, "rename storage pool "+id, func(s session) error {
		_, err := s.domain("").ModifyStoragePoolName(id, name)
		return err
	})
}

// SetStoragePoolMediaType changes the media type (HDD, SSD or Transitional).
func (c *Client) SetStoragePoolMediaType(ctx context.Context, id, mediaType string) error {
	return c.do(ctx, "set media type of storage pool "+id, func(s session) error {
		_, err := s.domain("").ModifyStoragePoolMedia(id, mediaType)
		return err
	})
}

// SetStoragePoolRfcache toggles flash read cache.
func (c *Client) SetStoragePoolRfcache(ctx context.Context, id string, enabled bool) error {
	return c.do(ctx, "set rfcache of storage pool "+id, func(s session) error {
		pd := s.domain("")
		if enabled {
			_, err := pd.EnableRFCache(id)
			return err
		}
		_, err := pd.DisableRFCache(id)
		return err
	})
}

// The remaining pool settings are plain instance actions.

// SetStoragePoolRmcache toggles RAM read cache.
func (c *Client) SetStoragePoolRmcache(ctx context.Context, id string, enabled bool) error {
	return c.Action(ctx, TypeStoragePool, id, "setUseRmcache", map[string]string{"useRmcache": strconv.FormatBool(enabled)})
}

// SetStoragePoolRmcacheWriteMode sets the RAM cache write handling mode (Cached or Passthrough).
func (c *Client) SetStoragePoolRmcacheWriteMode(ctx context.Context, id, mode string) error {
	return c.Action(ctx, TypeStoragePool, id, "setRmcacheWriteHandlingMode", map[string]string{"rmcacheWriteHandlingMode": mode})
}

// SetStoragePoolZeroPadding toggles zero padding.
func (c *Client) SetStoragePoolZeroPadding(ctx context.Context, id string, enabled bool) error {
	return c.Action(ctx, TypeStoragePool, id, "setZeroPaddingPolicy", map[string]string{"zeroPadEnabled": strconv.FormatBool(enabled)})
}

// SetStoragePoolRepCapMaxRatio sets the replication journal capacity ratio.
func (c *Client) SetStoragePoolRepCapMaxRatio(ctx context.Context, id string, ratio int) error {
	return c.Action(ctx, TypeStoragePool, id, "setReplicationJournalCapacity", map[string]string{
		"replicationJournalCapacityMaxRatio": strconv.Itoa(ratio),
	})
}

// SetStoragePoolRebalance toggles rebalance.
func (c *Client) SetStoragePoolRebalance(ctx context.Context, id string, enabled bool) error {
	return c.Action(ctx, TypeStoragePool, id, toggle(enabled, "enableRebalance", "disableRebalance"), nil)
}

// SetStoragePoolRebuild toggles rebuild.
func (c *Client) SetStoragePoolRebuild(ctx context.Context, id string, enabled bool) error {
	return c.Action(ctx, TypeStoragePool, id, toggle(enabled, "enableRebuild", "disableRebuild"), nil)
}

// SetStoragePoolFragmentation toggles fragmentation.
func (c *Client) SetStoragePoolFragmentation(ctx context.Context, id string, enabled bool) error {
	return c.Action(ctx, TypeStoragePool, id, toggle(enabled, "enableFragmentation", "disableFragmentation"), nil)
}

// SetStoragePoolSparePercentage sets the spare capacity percentage.
func (c *Client) SetStoragePoolSparePercentage(ctx context.Context, id string, percent int) error {
	return c.Action(ctx, TypeStoragePool, id, "setSparePercentage", map[string]string{"sparePercentage": strconv.Itoa(percent)})
}

// SetStoragePoolParallelism sets the rebuild/rebalance job limit per device.
func (c *Client) SetStoragePoolParallelism(ctx context.Context, id string, limit int) error {
	return c.Action(ctx, TypeStoragePool, id, "setRebuildRebalanceParallelism", map[string]string{"limit": strconv.Itoa(limit)})
}

// EnablePersistentChecksum turns on persistent checksum with its options.
func (c *Client) EnablePersistentChecksum(ctx context.Context, id string, validateOnRead *bool, builderLimitKb *int) error {
	return c.Action(ctx, TypeStoragePool, id, "enablePersistentChecksum", checksumBody(validateOnRead, builderLimitKb))
}

// ModifyPersistentChecksum changes options of an enabled persistent checksum.
func (c *Client) ModifyPersistentChecksum(ctx context.Context, id string, validateOnRead *bool, builderLimitKb *int) error {
	return c.Action(ctx, TypeStoragePool, id, "modifyPersistentChecksum", checksumBody(validateOnRead, builderLimitKb))
}

// DisablePersistentChecksum turns persistent checksum off.
func (c *Client) DisablePersistentChecksum(ctx context.Context, id string) error {
	return c.Action(ctx, TypeStoragePool, id, "disablePersistentChecksum", nil)
}

// SetIOPriorityPolicy sets one of the IO priority policies. action is the gateway action,
// e.g. setRebalanceIoPriorityPolicy.
func (c *Client) SetIOPriorityPolicy(ctx context.Context, id, action string, policy IOPriorityPolicy) error {
	return c.Action(ctx, TypeStoragePool, id, action, policy)
}

// SetCapacityAlertThresholds sets the high and critical capacity alert percentages.
func (c *Client) SetCapacityAlertThresholds(ctx context.Context, id string, high, critical int) error {
	return c.Action(ctx, TypeStoragePool, id, "setCapacityAlertThresholds", map[string]string{
		"capacityAlertHighThresholdPercent":     strconv.Itoa(high),
		"capacityAlertCriticalThresholdPercent": strconv.Itoa(critical),
	})
}

// RemoveStoragePool deletes a storage pool. The SDK only removes pools by name,
// so this goes by id through the instance action.
func (c *Client) RemoveStoragePool(ctx context.Context, id string) error {
	return c.Action(ctx, TypeStoragePool, id, "removeStoragePool", nil)
}

func checksumBody(validateOnRead *bool, builderLimitKb *int) map[string]string {
	body := map[string]string{}
	if validateOnRead != nil {
		body["validateOnRead"] = strconv.FormatBool(*validateOnRead)
	}
	if builderLimitKb != nil {
		body["builderLimitKb"] = strconv.Itoa(*builderLimitKb)
	}
	return body
}

func toggle(enabled bool, on, off string) string {
	if enabled {
		return on
	}
	return off
}

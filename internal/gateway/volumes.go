package gateway

import (
	"context"
	"strconv"

	"github.com/dell/goscaleio"
	siotypes "github.com/dell/goscaleio/types/v1"
)

// Volume fetches one volume.
func (c *Client) Volume(ctx context.Context, id string) (*Volume, error) {
	return call(ctx, c, "get volume "+id, func(s session) (*Volume, error) {
		found, err := s.sio.GetVolume("", id, "", "", false)
		if err != nil {
			return nil, err
		}
		return one[Volume]("volume", id, found)
	})
}

// VolumesByName lists volumes with the given name.
func (c *Client) VolumesByName(ctx context.Context, name string) ([]Volume, error) {
	return call(ctx, c, "list volumes", func(s session) ([]Volume, error) {
		all, err := s.sio.GetVolume("", "", "", "", false)
		if err != nil {
			return nil, err
		}
		return named(all, name, func(v Volume) string { return v.Name })
	})
}

// CreateVolume creates a volume and returns its id.
func (c *Client) CreateVolume(ctx context.Context, body VolumeCreate) (string, error) {
	return call(ctx, c, "create volume "+body.Name, func(s session) (string, error) {
		var param siotypes.VolumeParam
		if err := convert(body, &param); err != nil {
			return "", err
		}
		pool := goscaleio.NewStoragePoolEx(s.sio, &siotypes.StoragePool{ID: body.StoragePoolID})
		resp, err := pool.CreateVolume(&param)
		if err != nil {
			return "", err
		}
		return resp.ID, nil
	})
}

// volume is the SDK handle for one volume id.
func (s session) volume(id string) *goscaleio.Volume {
	v := goscaleio.NewVolume(s.sio)
	v.Volume = &siotypes.Volume{ID: id}
	return v
}

// RenameVolume sets a new volume name.
func (c *Client) RenameVolume(ctx context.Context, id, name string) error {
	return c.do(ctx, "rename volume "+id, func(s session) error {
		return s.volume(id).SetVolumeName(name)
	})
}

// ResizeVolume grows a volume to sizeGB.
func (c *Client) ResizeVolume(ctx context.Context, id string, sizeGB int64) error {
	return c.do(ctx, "resize volume "+id, func(s session) error {
		return s.volume(id).SetVolumeSize(strconv.FormatInt(sizeGB, 10))
	})
}

// SetVolumeCompression changes the compression method (Normal or None).
func (c *Client) SetVolumeCompression(ctx context.Context, id, method string) error {
	return c.do(ctx, "set compression of volume "+id, func(s session) error {
		return s.volume(id).SetCompressionMethod(method)
	})
}

// SetVolumeRmcache toggles RAM read cache use.
func (c *Client) SetVolumeRmcache(ctx context.Context, id string, enabled bool) error {
	return c.do(ctx, "set rmcache of volume "+id, func(s session) error {
		return s.volume(id).SetVolumeUseRmCache(enabled)
	})
}

// MapVolume exports a volume to an SDC.
func (c *Client) MapVolume(ctx context.Context, id, sdcID, accessMode string, allowMultiple bool) error {
	return c.do(ctx, "map volume "+id+" to "+sdcID, func(s session) error {
		return s.volume(id).MapVolumeSdc(&siotypes.MapVolumeSdcParam{
			SdcID:                 sdcID,
			AllowMultipleMappings: boolFlag(allowMultiple),
			AccessMode:            accessMode,
		})
	})
}

// SetMappingAccessMode changes the access mode of an existing mapping.
func (c *Client) SetMappingAccessMode(ctx context.Context, id, sdcID, accessMode string) error {
	return c.do(ctx, "set access mode of volume "+id+" on "+sdcID, func(s session) error {
		return s.volume(id).SetVolumeMappingAccessMode(accessMode, sdcID)
	})
}

// SetMappingLimits sets bandwidth (KB/s) and IOPS limits of a mapping. Zero means unlimited.
func (c *Client) SetMappingLimits(ctx context.Context, id, sdcID string, bandwidthKbps, iops int) error {
	return c.do(ctx, "set limits of volume "+id+" on "+sdcID, func(s session) error {
		return s.volume(id).SetMappedSdcLimits(&siotypes.SetMappedSdcLimitsParam{
			SdcID:                sdcID,
			BandwidthLimitInKbps: strconv.Itoa(bandwidthKbps),
			IopsLimit:            strconv.Itoa(iops),
		})
	})
}

// UnmapVolume removes an SDC mapping.
func (c *Client) UnmapVolume(ctx context.Context, id, sdcID string) error {
	return c.do(ctx, "unmap volume "+id+" from "+sdcID, func(s session) error {
		return s.volume(id).UnmapVolumeSdc(&siotypes.UnmapVolumeSdcParam{SdcID: sdcID})
	})
}

// RemoveVolume deletes a volume. mode is ONLY_ME or INCLUDING_DESCENDANTS.
func (c *Client) RemoveVolume(ctx context.Context, id, mode string) error {
	return c.do(ctx, "remove volume "+id, func(s session) error {
		return s.volume(id).RemoveVolume(mode)
	})
}

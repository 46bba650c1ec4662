package volume

import (
	"github.com/dokzlo13/pflexctl/internal/errs"
)

// granularityGB is the allocation unit of the storage pools.
const granularityGB = 8

// sizeInGB converts a requested size to gigabytes on the allocation boundary.
// Non-multiples are rounded up unless strict is set.
func sizeInGB(size int64, unit string, strict bool) (int64, error) {
	if size <= 0 {
		return 0, errs.Newf(errs.ErrInvalidSize, "size must be positive, got %d", size)
	}
	gb := size
	if unit == "TB" {
		gb = size * 1024
	}
	if rem := gb % granularityGB; rem != 0 {
		if strict {
			return 0, errs.WithHint(
				errs.Newf(errs.ErrInvalidSize, "size %d GB is not a multiple of %d GB", gb, granularityGB),
				"disable engine.strict_size_granularity to round up")
		}
		gb += granularityGB - rem
	}
	return gb, nil
}

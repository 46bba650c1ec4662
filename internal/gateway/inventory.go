package gateway

import (
	"context"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

// FaultSet groups SDSs that may fail together.
type FaultSet struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ProtectionDomainID string `json:"protectionDomainId"`
}

// System returns the cluster record.
func (c *Client) System(ctx context.Context) (*System, error) {
	return call(ctx, c, "get system", func(s session) (*System, error) {
		systems, err := s.sio.GetSystems()
		if err != nil {
			return nil, err
		}
		return first[System](systems)
	})
}

// SystemRecord returns the cluster record as reported by the gateway.
func (c *Client) SystemRecord(ctx context.Context) (map[string]any, error) {
	return call(ctx, c, "get system", func(s session) (map[string]any, error) {
		systems, err := s.sio.GetSystems()
		if err != nil {
			return nil, err
		}
		rec, err := first[map[string]any](systems)
		if err != nil {
			return nil, err
		}
		return *rec, nil
	})
}

func first[T any, S any](systems []S) (*T, error) {
	if len(systems) == 0 {
		return nil, errs.Newf(errs.ErrNotFound, "gateway reports no system")
	}
	var out T
	if err := convert(systems[0], &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProtectionDomain fetches one protection domain.
func (c *Client) ProtectionDomain(ctx context.Context, id string) (*ProtectionDomain, error) {
	return call(ctx, c, "get protection domain "+id, func(s session) (*ProtectionDomain, error) {
		found, err := s.system.FindProtectionDomain(id, "", "")
		if err != nil {
			return nil, err
		}
		var pd ProtectionDomain
		if err := convert(found, &pd); err != nil {
			return nil, err
		}
		return &pd, nil
	})
}

// ProtectionDomainsByName lists protection domains with the given name.
func (c *Client) ProtectionDomainsByName(ctx context.Context, name string) ([]ProtectionDomain, error) {
	return call(ctx, c, "list protection domains", func(s session) ([]ProtectionDomain, error) {
		all, err := s.system.GetProtectionDomain("")
		if err != nil {
			return nil, err
		}
		return named(all, name, func(pd ProtectionDomain) string { return pd.Name })
	})
}

// Sdc fetches one SDC.
func (c *Client) Sdc(ctx context.Context, id string) (*Sdc, error) {
	all, err := c.Sdcs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, errs.Newf(errs.ErrNotFound, "Could not find SDC %s", id)
}

// Sdcs lists every SDC.
func (c *Client) Sdcs(ctx context.Context) ([]Sdc, error) {
	return call(ctx, c, "list SDCs", func(s session) ([]Sdc, error) {
		found, err := s.system.GetSdc()
		if err != nil {
			return nil, err
		}
		var all []Sdc
		if err := convert(found, &all); err != nil {
			return nil, err
		}
		return all, nil
	})
}

// FaultSet fetches one fault set.
func (c *Client) FaultSet(ctx context.Context, id string) (*FaultSet, error) {
	return call(ctx, c, "get fault set "+id, func(s session) (*FaultSet, error) {
		found, err := s.system.GetFaultSetByID(id)
		if err != nil {
			return nil, err
		}
		var fs FaultSet
		if err := convert(found, &fs); err != nil {
			return nil, err
		}
		return &fs, nil
	})
}

// FaultSetsByName lists fault sets with the given name.
func (c *Client) FaultSetsByName(ctx context.Context, name string) ([]FaultSet, error) {
	return call(ctx, c, "list fault sets", func(s session) ([]FaultSet, error) {
		all, err := s.system.GetAllFaultSets()
		if err != nil {
			return nil, err
		}
		return named(all, name, func(fs FaultSet) string { return fs.Name })
	})
}

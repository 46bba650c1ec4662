// Package info gathers PowerFlex inventory.
//
// A request names one or more kinds (gather_subset). Every kind is validated and
// its filters evaluated before the first backend call; fetching then runs kind by
// kind in registry order.
package info

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/rs/zerolog"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/filter"
	"github.com/dokzlo13/pflexctl/internal/query"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
)

// Params are the info module parameters.
type Params struct {
	GatherSubset []string        `yaml:"gather_subset"`
	Filters      []filter.Clause `yaml:"filters" validate:"dive"`
	Sort         string          `yaml:"sort"`
	Limit        *int            `yaml:"limit" validate:"omitempty,gte=1"`
	Offset       *int            `yaml:"offset" validate:"omitempty,gte=0"`
}

// Backend is the gateway surface the info module reads from.
type Backend interface {
	Version(ctx context.Context) (*version.Version, error)
	SystemRecord(ctx context.Context) (map[string]any, error)
	ListRaw(ctx context.Context, typ string) ([]map[string]any, error)
	Manager(ctx context.Context, collection string, q url.Values) ([]map[string]any, error)
}

// Skip records a kind that was not fetched, or fetched without its native parameters.
type Skip struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Result is the gathered inventory. Records are reported under each kind's result key.
type Result struct {
	Changed      bool
	ArrayDetails map[string]any
	APIVersion   string
	Records      map[string][]map[string]any
	Skipped      []Skip
}

// Map flattens the per-kind records next to the fixed keys.
func (r *Result) Map() map[string]any {
	out := make(map[string]any, len(r.Records)+4)
	for key, records := range r.Records {
		if records == nil {
			records = []map[string]any{}
		}
		out[key] = records
	}
	out["changed"] = r.Changed
	out["Array_Details"] = r.ArrayDetails
	out["API_Version"] = r.APIVersion
	if len(r.Skipped) > 0 {
		out["Skipped"] = r.Skipped
	}
	return out
}

// MarshalJSON encodes Map.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// request is one kind ready to fetch.
type request struct {
	kind  Kind
	plan  *filter.Plan
	query query.Params
}

// Run gathers the requested kinds.
func Run(ctx context.Context, b Backend, p Params) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	requests, err := prepare(p)
	if err != nil {
		return nil, err
	}

	current, err := b.Version(ctx)
	if err != nil {
		return nil, err
	}
	system, err := b.SystemRecord(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ArrayDetails: system,
		APIVersion:   current.Original(),
		Records:      make(map[string][]map[string]any, len(requests)),
	}
	multi := len(requests) > 1

	for _, rq := range requests {
		name := rq.kind.Subset()
		if required := rq.kind.MinVersion(); required != nil && current.LessThan(required) {
			if !multi {
				return nil, errs.Newf(errs.ErrUnsupportedForVersion,
					"%s requires gateway version %s or later, connected to %s", name, required.Original(), current.Original())
			}
			logger.Warn().Str("kind", name).Str("version", current.Original()).Msg("Kind not supported by gateway, skipping")
			res.Skipped = append(res.Skipped, Skip{Kind: name, Reason: "requires gateway version " + required.Original() + " or later"})
			continue
		}
		if rq.query.Suppressed && rq.kind.Capabilities().Native {
			res.Skipped = append(res.Skipped, Skip{Kind: name, Reason: rq.query.Reason})
		}

		records, err := rq.kind.Fetch(ctx, b, rq.plan, rq.query)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("kind", name).Int("count", len(records)).Msg("Gathered")
		res.Records[rq.kind.ResultKey()] = records
	}

	return res, nil
}

// prepare validates the whole request without touching the backend.
func prepare(p Params) ([]request, error) {
	if err := reconcile.ValidateParams(p); err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(p.GatherSubset))
	for _, s := range p.GatherSubset {
		s = strings.TrimSpace(s)
		if _, ok := Lookup(s); !ok {
			return nil, errs.WithHint(
				errs.Newf(errs.ErrInvalidParameter, "unknown gather_subset %q", s),
				"supported: "+strings.Join(Subsets(), ", "))
		}
		requested[s] = true
	}

	multi := len(requested) > 1
	env := query.Envelope{Limit: p.Limit, Offset: p.Offset, Sort: p.Sort}

	var requests []request
	for _, k := range Kinds {
		if !requested[k.Subset()] {
			continue
		}
		caps := k.Capabilities()
		rq := request{kind: k}
		// Native filters are dropped with the rest of the envelope when several kinds are requested.
		if !(caps.Native && multi) {
			plan, err := filter.Evaluate(p.Filters, caps)
			if err != nil {
				return nil, errs.WithHint(err, "gather_subset "+k.Subset())
			}
			rq.plan = plan
		}
		if caps.Native {
			rq.query = query.Build(env, query.DefaultDefaults, rq.plan, multi)
		}
		requests = append(requests, rq)
	}
	return requests, nil
}

// Subsets lists the supported gather_subset names.
func Subsets() []string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = k.Subset()
	}
	return names
}

// Package query builds the pagination, sort and filter parameters sent to
// manager-style list endpoints.
package query

import (
	"net/url"
	"strconv"

	"github.com/dokzlo13/pflexctl/internal/filter"
)

// SuppressedReason is recorded when a multi-kind request drops native parameters.
const SuppressedReason = "filters, sort, limit and offset are ignored when more than one resource kind is requested"

// Envelope is what the caller asked for. Nil means "not given".
type Envelope struct {
	Limit  *int
	Offset *int
	Sort   string
}

// Defaults are the declared parameter defaults.
type Defaults struct {
	Limit  int
	Offset int
}

// DefaultDefaults matches the documented module defaults.
var DefaultDefaults = Defaults{Limit: 50, Offset: 0}

// Params is the envelope after policy has been applied.
type Params struct {
	Limit   *int
	Offset  *int
	Sort    string
	Filters []string

	Suppressed bool
	Reason     string
}

// Build applies the pass-through policy. When multiKind is set every parameter is
// left unset so one kind's paging never leaks into another kind's collection.
// A value equal to its declared default is treated as unset.
func Build(env Envelope, defaults Defaults, plan *filter.Plan, multiKind bool) Params {
	if multiKind {
		return Params{Suppressed: true, Reason: SuppressedReason}
	}

	var p Params
	if env.Limit != nil && *env.Limit != defaults.Limit {
		limit := *env.Limit
		p.Limit = &limit
	}
	if env.Offset != nil && *env.Offset != defaults.Offset && *env.Offset >= 0 {
		offset := *env.Offset
		p.Offset = &offset
	}
	p.Sort = env.Sort
	p.Filters = plan.Query()
	return p
}

// Values encodes the parameters as a query string.
func (p Params) Values() url.Values {
	v := url.Values{}
	for _, f := range p.Filters {
		v.Add("filter", f)
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Limit != nil {
		v.Set("limit", strconv.Itoa(*p.Limit))
	}
	if p.Offset != nil {
		v.Set("offset", strconv.Itoa(*p.Offset))
	}
	return v
}

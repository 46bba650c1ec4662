// Package filter evaluates declarative filter clauses for list operations.
//
// A list of clauses is validated against the capabilities of one resource kind and
// turned into a Plan. The plan renders backend query fragments for kinds that filter
// natively, and acts as a record predicate for kinds filtered client-side.
package filter

import (
	"fmt"
	"strings"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

// Operator is a filter comparison.
type Operator string

// Supported operators.
const (
	Equal    Operator = "equal"
	Contains Operator = "contains"
)

// code is the backend query prefix for an operator.
func (o Operator) code() string {
	switch o {
	case Contains:
		return "co"
	default:
		return "eq"
	}
}

// Clause is one {filter_key, filter_operator, filter_value} triple.
type Clause struct {
	Key      string   `yaml:"filter_key" json:"filter_key"`
	Operator Operator `yaml:"filter_operator" json:"filter_operator"`
	Value    string   `yaml:"filter_value" json:"filter_value"`
}

// Capabilities describes what a resource kind accepts.
type Capabilities struct {
	Keys      []string
	Operators []Operator
	// Native is true when the backend filters the collection itself.
	Native bool
}

func (c Capabilities) hasKey(key string) bool {
	for _, k := range c.Keys {
		if k == key {
			return true
		}
	}
	return false
}

func (c Capabilities) hasOperator(op Operator) bool {
	for _, o := range c.Operators {
		if o == op {
			return true
		}
	}
	return false
}

// term is the merged match for one key: any of Values satisfies it.
type term struct {
	Key      string
	Operator Operator
	Values   []string
}

// Plan is a validated filter.
type Plan struct {
	terms []term
}

// Evaluate validates clauses against caps and merges them into a Plan.
// Clauses sharing a key are OR-ed; distinct keys are AND-ed.
func Evaluate(clauses []Clause, caps Capabilities) (*Plan, error) {
	plan := &Plan{}
	index := make(map[string]int, len(clauses))

	for i, c := range clauses {
		key := strings.TrimSpace(c.Key)
		if key == "" {
			return nil, errs.Newf(errs.ErrInvalidFilterKey, "filter %d: filter_key is required", i+1)
		}
		if !caps.hasKey(key) {
			return nil, errs.WithHint(
				errs.Newf(errs.ErrInvalidFilterKey, "filter key %q is not supported", key),
				"supported keys: "+strings.Join(caps.Keys, ", "))
		}

		op := c.Operator
		if op == "" {
			op = Equal
		}
		if op != Equal && op != Contains {
			return nil, errs.Newf(errs.ErrUnsupportedOperator, "filter operator %q is not recognised", op)
		}
		if !caps.hasOperator(op) {
			return nil, errs.Newf(errs.ErrUnsupportedOperator, "filter operator %q is not supported for key %q", op, key)
		}

		if strings.TrimSpace(c.Value) == "" {
			return nil, errs.Newf(errs.ErrInvalidFilterValue, "filter %q: filter_value must not be empty", key)
		}

		if at, ok := index[key]; ok {
			if plan.terms[at].Operator != op {
				return nil, errs.Newf(errs.ErrUnsupportedOperator,
					"filter key %q mixes %q and %q", key, plan.terms[at].Operator, op)
			}
			plan.terms[at].Values = appendUnique(plan.terms[at].Values, c.Value)
			continue
		}
		index[key] = len(plan.terms)
		plan.terms = append(plan.terms, term{Key: key, Operator: op, Values: []string{c.Value}})
	}

	return plan, nil
}

// Empty reports whether the plan has no terms.
func (p *Plan) Empty() bool {
	return p == nil || len(p.terms) == 0
}

// Query renders backend filter fragments, one per key: "eq,name,a,b".
func (p *Plan) Query() []string {
	if p.Empty() {
		return nil
	}
	out := make([]string, 0, len(p.terms))
	for _, t := range p.terms {
		parts := append([]string{t.Operator.code(), t.Key}, t.Values...)
		out = append(out, strings.Join(parts, ","))
	}
	return out
}

// Match reports whether record satisfies every term.
func (p *Plan) Match(record map[string]any) bool {
	if p.Empty() {
		return true
	}
	for _, t := range p.terms {
		field, ok := lookup(record, t.Key)
		if !ok {
			return false
		}
		if !t.matches(stringify(field)) {
			return false
		}
	}
	return true
}

// Apply returns the records that match.
func (p *Plan) Apply(records []map[string]any) []map[string]any {
	if p.Empty() {
		return records
	}
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if p.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (t term) matches(field string) bool {
	for _, v := range t.Values {
		switch t.Operator {
		case Contains:
			if strings.Contains(field, v) {
				return true
			}
		default:
			if field == v {
				return true
			}
		}
	}
	return false
}

// lookup resolves dotted keys through nested objects.
func lookup(record map[string]any, key string) (any, bool) {
	var cur any = record
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

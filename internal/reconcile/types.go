// Package reconcile provides the reconciliation framework for making
// actual PowerFlex state match the declared state.
package reconcile

import "context"

// Kind identifies a type of reconcilable resource.
type Kind string

// Resource kinds
const (
	KindVolume         Kind = "volume"
	KindStoragePool    Kind = "storage_pool"
	KindSDS            Kind = "sds"
	KindSnapshotPolicy Kind = "snapshot_policy"
	KindRCG            Kind = "replication_consistency_group"
)

// ResourceKey identifies a reconcilable resource. ID holds the name until the
// resource exists.
type ResourceKey struct {
	Kind Kind
	ID   string
}

func (k ResourceKey) String() string {
	return string(k.Kind) + "/" + k.ID
}

// Resource is the core abstraction for anything reconcilable.
// Each resource loads its own state internally and knows how to
// plan the transition from actual to desired state.
type Resource interface {
	// Key returns unique identifier for this resource.
	Key() ResourceKey

	// Load fetches actual state into internal fields. Absence is not an error.
	Load(ctx context.Context) error

	// Plan validates the desired state against the loaded state and returns the
	// ordered steps needed to converge. Validation errors are returned here,
	// before any mutating call.
	Plan(ctx context.Context) (*Plan, error)

	// Details returns the loaded state for the result, nil when absent.
	Details() any
}

// Change is one attribute-level difference.
type Change struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	From      any    `json:"from,omitempty" yaml:"from,omitempty"`
	To        any    `json:"to,omitempty" yaml:"to,omitempty"`
}

// Step is one named backend operation.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Plan is the computed delta: the attribute changes and the operations that
// realise them, in execution order.
type Plan struct {
	Changes []Change
	Steps   []Step
}

// Add appends a step and the changes it realises.
func (p *Plan) Add(name string, run func(ctx context.Context) error, changes ...Change) {
	p.Steps = append(p.Steps, Step{Name: name, Run: run})
	p.Changes = append(p.Changes, changes...)
}

// Empty reports whether nothing needs to be invoked.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Steps) == 0
}

// Operations returns the step names in order.
func (p *Plan) Operations() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		names = append(names, s.Name)
	}
	return names
}

// Options control one reconciliation pass.
type Options struct {
	// DryRun computes the plan without invoking it.
	DryRun bool
	// Diff includes before/after state in the result.
	Diff bool
}

// Diff is the before/after view of one pass.
type Diff struct {
	Before  any      `json:"before"`
	After   any      `json:"after"`
	Changes []Change `json:"changes,omitempty"`
}

// Result is the outcome of one pass.
type Result struct {
	Changed    bool
	Details    any
	Diff       *Diff
	Operations []string
}

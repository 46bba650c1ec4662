package reconcile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

// Outcome of a recorded step.
type Outcome string

const (
	OutcomePlanned   Outcome = "planned"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Event is one step as seen by a Recorder.
type Event struct {
	Resource  ResourceKey
	Operation string
	Seq       int
	Outcome   Outcome
	Err       error
}

// Recorder receives step events, e.g. an audit ledger.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Engine runs reconciliation passes.
// It's domain-agnostic - all resource-specific logic lives in resources.
type Engine struct {
	recorder Recorder
}

// NewEngine creates an engine. recorder may be nil.
func NewEngine(recorder Recorder) *Engine {
	return &Engine{recorder: recorder}
}

// Reconcile runs one pass: load, plan, apply (unless dry-run), re-fetch.
//
// Steps run in plan order and stop at the first failure. Steps that already
// succeeded are not rolled back.
func (e *Engine) Reconcile(ctx context.Context, r Resource, opts Options) (*Result, error) {
	logger := zerolog.Ctx(ctx).With().Str("resource", r.Key().String()).Logger()

	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	before := r.Details()

	plan, err := r.Plan(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Changed:    !plan.Empty(),
		Details:    before,
		Operations: plan.Operations(),
	}

	logger.Debug().
		Bool("changed", result.Changed).
		Bool("dry_run", opts.DryRun).
		Strs("operations", result.Operations).
		Msg("Plan computed")

	if !result.Changed {
		result.Diff = diffOf(opts, before, before, nil)
		return result, nil
	}

	if opts.DryRun {
		for i, step := range plan.Steps {
			e.record(ctx, Event{Resource: r.Key(), Operation: step.Name, Seq: i, Outcome: OutcomePlanned})
		}
		result.Diff = diffOf(opts, before, nil, plan.Changes)
		return result, nil
	}

	for i, step := range plan.Steps {
		logger.Info().Str("operation", step.Name).Msg("Invoking operation")

		if err := step.Run(ctx); err != nil {
			e.record(ctx, Event{Resource: r.Key(), Operation: step.Name, Seq: i, Outcome: OutcomeFailed, Err: err})
			logger.Error().Err(err).Str("operation", step.Name).Msg("Operation failed")
			return nil, errs.Operation(step.Name, err)
		}
		e.record(ctx, Event{Resource: r.Key(), Operation: step.Name, Seq: i, Outcome: OutcomeCompleted})
	}

	// Re-fetch so the caller sees what the backend actually holds.
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	result.Details = r.Details()
	result.Diff = diffOf(opts, before, result.Details, plan.Changes)
	return result, nil
}

func (e *Engine) record(ctx context.Context, ev Event) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("operation", ev.Operation).Msg("Failed to record operation")
	}
}

func diffOf(opts Options, before, after any, changes []Change) *Diff {
	if !opts.Diff {
		return nil
	}
	return &Diff{Before: before, After: after, Changes: changes}
}

package reconcile

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

// counter is a toy backend: desired value, remote value, and a call log.
type counter struct {
	remote  int
	desired int
	loaded  *int
	loads   int
	calls   []string
	failOn  string
	invalid bool
}

func (c *counter) Key() ResourceKey { return ResourceKey{Kind: "counter", ID: "c1"} }

func (c *counter) Load(context.Context) error {
	c.loads++
	v := c.remote
	c.loaded = &v
	return nil
}

func (c *counter) Plan(context.Context) (*Plan, error) {
	if c.invalid {
		return nil, errs.Newf(errs.ErrInvalidParameter, "desired value rejected")
	}
	plan := &Plan{}
	if *c.loaded != c.desired {
		plan.Add("setValue", func(context.Context) error {
			c.calls = append(c.calls, "setValue")
			if c.failOn == "setValue" {
				return errors.New("backend said no")
			}
			c.remote = c.desired
			return nil
		}, Change{Attribute: "value", From: *c.loaded, To: c.desired})
		plan.Add("notify", func(context.Context) error {
			c.calls = append(c.calls, "notify")
			return nil
		})
	}
	return plan, nil
}

func (c *counter) Details() any { return *c.loaded }

type memRecorder struct {
	events []Event
}

func (m *memRecorder) Record(_ context.Context, ev Event) error {
	m.events = append(m.events, ev)
	return nil
}

func TestReconcileIsIdempotent(t *testing.T) {
	c := &counter{remote: 1, desired: 5}
	engine := NewEngine(nil)

	first, err := engine.Reconcile(context.Background(), c, Options{})
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, 5, first.Details)
	assert.Equal(t, []string{"setValue", "notify"}, first.Operations)
	assert.Equal(t, 2, c.loads, "state is re-fetched after applying")

	second, err := engine.Reconcile(context.Background(), c, Options{})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Empty(t, second.Operations)
	assert.Equal(t, []string{"setValue", "notify"}, c.calls)
}

func TestDryRunInvokesNothing(t *testing.T) {
	rec := &memRecorder{}
	c := &counter{remote: 1, desired: 5}

	dry, err := NewEngine(rec).Reconcile(context.Background(), c, Options{DryRun: true, Diff: true})
	require.NoError(t, err)

	assert.True(t, dry.Changed)
	assert.Empty(t, c.calls)
	assert.Equal(t, 1, dry.Details)
	require.NotNil(t, dry.Diff)
	assert.Equal(t, 1, dry.Diff.Before)
	assert.Equal(t, []Change{{Attribute: "value", From: 1, To: 5}}, dry.Diff.Changes)
	require.Len(t, rec.events, 2)
	assert.Equal(t, OutcomePlanned, rec.events[0].Outcome)

	real, err := NewEngine(nil).Reconcile(context.Background(), c, Options{})
	require.NoError(t, err)
	assert.Equal(t, dry.Changed, real.Changed)
	assert.Equal(t, dry.Operations, real.Operations)
}

func TestFailureStopsChain(t *testing.T) {
	rec := &memRecorder{}
	c := &counter{remote: 1, desired: 5, failOn: "setValue"}

	_, err := NewEngine(rec).Reconcile(context.Background(), c, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrBackendOperation))
	assert.Contains(t, err.Error(), "setValue failed: backend said no")
	assert.Equal(t, []string{"setValue"}, c.calls, "later steps are not attempted")
	require.Len(t, rec.events, 1)
	assert.Equal(t, OutcomeFailed, rec.events[0].Outcome)
}

func TestValidationErrorSurfacesInDryRun(t *testing.T) {
	c := &counter{remote: 1, desired: 5, invalid: true}

	_, err := NewEngine(nil).Reconcile(context.Background(), c, Options{DryRun: true})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Empty(t, c.calls)
}

func TestDiffOnlyWhenRequested(t *testing.T) {
	c := &counter{remote: 3, desired: 3}

	res, err := NewEngine(nil).Reconcile(context.Background(), c, Options{})
	require.NoError(t, err)
	assert.Nil(t, res.Diff)

	res, err = NewEngine(nil).Reconcile(context.Background(), c, Options{Diff: true})
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	assert.Equal(t, 3, res.Diff.After)
}

package snapshotpolicy

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/gateway/gatewaytest"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
)

func newFake() *gatewaytest.Fake {
	f := gatewaytest.New()
	f.Policies = []*gateway.SnapshotPolicy{{
		ID:                             "snpl-1",
		Name:                           "hourly",
		AutoSnapshotCreationCadenceMin: 60,
		NumOfRetainedSnapshotsPerLevel: []int{24, 7},
		SnapshotAccessMode:             "ReadOnly",
		SnapshotPolicyState:            "Active",
		NumOfSourceVolumes:             1,
	}}
	f.Vols = []*gateway.Volume{
		{ID: "vol-1", Name: "db", SnapshotPolicyID: "snpl-1"},
		{ID: "vol-2", Name: "logs"},
	}
	return f
}

func run(t *testing.T, f *gatewaytest.Fake, p Params) (*reconcile.Result, error) {
	t.Helper()
	return reconcile.NewEngine(nil).Reconcile(context.Background(), NewResource(f, p), reconcile.Options{})
}

func TestCadenceMinutes(t *testing.T) {
	tests := []struct {
		c    Cadence
		want int
	}{
		{Cadence{Time: 30}, 30},
		{Cadence{Time: 30, Unit: "Minute"}, 30},
		{Cadence{Time: 2, Unit: "Hour"}, 120},
		{Cadence{Time: 1, Unit: "Day"}, 1440},
		{Cadence{Time: 1, Unit: "Week"}, 10080},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.c.Minutes(), "%+v", tt.c)
	}
}

func TestCreateWithSourceVolume(t *testing.T) {
	f := newFake()
	p := Params{
		SnapshotPolicyName: reconcile.Ptr("daily"),
		Cadence:            &Cadence{Time: 1, Unit: "Day"},
		Retention:          []int{7, 4},
		AccessMode:         reconcile.Ptr("READ_WRITE"),
		SourceVolumes:      []SourceVolume{{Name: reconcile.Ptr("logs")}},
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"createSnapshotPolicy", "addSourceVolumeToSnapshotPolicy"}, f.Calls)

	details := res.Details.(*Details)
	assert.Equal(t, 1440, details.AutoSnapshotCreationCadenceMin)
	assert.Equal(t, []int{7, 4}, details.NumOfRetainedSnapshotsPerLevel)
	assert.Equal(t, "ReadWrite", details.SnapshotAccessMode)
	assert.Equal(t, []VolumeRef{{ID: "vol-2", Name: "logs"}}, details.SourceVolumes)

	f.Reset()
	res, err = run(t, f, p)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, f.Calls)
}

func TestCreateRequiresSchedule(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{SnapshotPolicyName: reconcile.Ptr("daily"), Cadence: &Cadence{Time: 1, Unit: "Day"}})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Empty(t, f.Calls)
}

func TestRetentionLevels(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{SnapshotPolicyID: reconcile.Ptr("snpl-1"), Retention: []int{1, 2, 3, 4, 5, 6, 7}})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	_, err = run(t, f, Params{SnapshotPolicyID: reconcile.Ptr("snpl-1"), Retention: []int{1, 0}})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Zero(t, f.Reads)
}

func TestModifyOrder(t *testing.T) {
	f := newFake()
	p := Params{
		SnapshotPolicyName: reconcile.Ptr("hourly"),
		NewName:            reconcile.Ptr("every-2h"),
		Cadence:            &Cadence{Time: 2, Unit: "Hour"},
		SourceVolumes: []SourceVolume{
			{ID: reconcile.Ptr("vol-1"), State: reconcile.StateAbsent, AutoSnapRemovalAction: reconcile.Ptr("Remove")},
			{ID: reconcile.Ptr("vol-2")},
		},
		Pause: reconcile.Ptr(true),
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"renameSnapshotPolicy",
		"modifySnapshotPolicy",
		"addSourceVolumeToSnapshotPolicy",
		"removeSourceVolumeFromSnapshotPolicy",
		"pauseSnapshotPolicy",
	}, f.Calls)

	details := res.Details.(*Details)
	assert.Equal(t, "every-2h", details.Name)
	assert.Equal(t, 120, details.AutoSnapshotCreationCadenceMin)
	assert.Equal(t, []int{24, 7}, details.NumOfRetainedSnapshotsPerLevel, "retention kept when not requested")
	assert.True(t, details.Paused())
	assert.Equal(t, []VolumeRef{{ID: "vol-2", Name: "logs"}}, details.SourceVolumes)
}

func TestResume(t *testing.T) {
	f := newFake()
	f.Policies[0].SnapshotPolicyState = "Paused"
	_, err := run(t, f, Params{SnapshotPolicyID: reconcile.Ptr("snpl-1"), Pause: reconcile.Ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, []string{"resumeSnapshotPolicy"}, f.Calls)
}

func TestImmutableAccessMode(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{SnapshotPolicyID: reconcile.Ptr("snpl-1"), AccessMode: reconcile.Ptr("READ_WRITE")})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	_, err = run(t, f, Params{SnapshotPolicyID: reconcile.Ptr("snpl-1"), SecureSnapshots: reconcile.Ptr(true)})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Empty(t, f.Calls)
}

func TestUnknownSourceVolume(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{SnapshotPolicyID: reconcile.Ptr("snpl-1"),
		SourceVolumes: []SourceVolume{{Name: reconcile.Ptr("missing")}}})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Empty(t, f.Calls)
}

func TestDelete(t *testing.T) {
	f := newFake()
	res, err := run(t, f, Params{SnapshotPolicyName: reconcile.Ptr("hourly"), State: reconcile.StateAbsent})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"removeSnapshotPolicy"}, f.Calls)
}

func TestPaddedNameConverges(t *testing.T) {
	f := newFake()
	p := Params{
		SnapshotPolicyName: reconcile.Ptr("daily "),
		Cadence:            &Cadence{Time: 1, Unit: "Day"},
		Retention:          []int{7},
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "daily", res.Details.(*Details).Name)

	f.Reset()
	res, err = run(t, f, p)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, f.Policies, 2)
}

func TestBlankNameIsRejected(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{SnapshotPolicyName: reconcile.Ptr("   "), Cadence: &Cadence{Time: 1}, Retention: []int{1}})
	assert.True(t, errors.Is(err, errs.ErrInvalidName))
	assert.Empty(t, f.Calls)
}

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/pflexctl/internal/db"
	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestRecorderWritesEvents(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t)
	rec := l.Recorder("inv-1", "volume")
	key := reconcile.ResourceKey{Kind: reconcile.KindVolume, ID: "v1"}

	require.NoError(t, rec.Record(ctx, reconcile.Event{Resource: key, Operation: "setVolumeName", Seq: 0, Outcome: reconcile.OutcomeCompleted}))
	require.NoError(t, rec.Record(ctx, reconcile.Event{Resource: key, Operation: "setVolumeSize", Seq: 1, Outcome: reconcile.OutcomeFailed, Err: errors.New("boom")}))

	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, EventOperationFailed, entries[0].EventType)
	assert.Equal(t, "inv-1/1", entries[0].IdempotencyKey)
	assert.Equal(t, "boom", entries[0].Payload["error"])
	assert.Equal(t, "volume/v1", entries[0].Payload["resource"])

	assert.Equal(t, EventOperationCompleted, entries[1].EventType)
	assert.Equal(t, "volume", entries[1].Source)

	failed, err := l.GetByType(ctx, EventOperationFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "setVolumeSize", failed[0].Payload["operation"])
}

func TestCompletedIsRecordedOnce(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Append(ctx, EventOperationCompleted, "inv/0", "sds", nil))
	}
	require.NoError(t, l.Append(ctx, EventOperationPlanned, "inv/0", "sds", nil))
	require.NoError(t, l.Append(ctx, EventOperationPlanned, "inv/0", "sds", nil))

	completed, err := l.GetByType(ctx, EventOperationCompleted, 10)
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	planned, err := l.GetByType(ctx, EventOperationPlanned, 10)
	require.NoError(t, err)
	assert.Len(t, planned, 2)
}

func TestDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t)

	require.NoError(t, l.Append(ctx, EventOperationPlanned, "a/0", "rcg", nil))
	_, err := l.db.Exec(`UPDATE operation_ledger SET timestamp = ?`, time.Now().Add(-48*time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, EventOperationPlanned, "b/0", "rcg", nil))

	removed, err := l.DeleteOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b/0", entries[0].IdempotencyKey)
}

func TestParseEventType(t *testing.T) {
	for in, want := range map[string]EventType{
		"planned":             EventOperationPlanned,
		"operation_completed": EventOperationCompleted,
		"failed":              EventOperationFailed,
	} {
		got, err := ParseEventType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseEventType("applied")
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
}

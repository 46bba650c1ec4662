package storagepool

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
	f.Domains = []*gateway.ProtectionDomain{
		{ID: "pd-1", Name: "domain1"},
		{ID: "pd-2", Name: "domain2"},
	}
	f.Pools = []*gateway.StoragePool{
		{ID: "sp-1", Name: "pool1", ProtectionDomainID: "pd-1", MediaType: "HDD", RebuildEnabled: true,
			CapacityAlertHighThreshold: 80, CapacityAlertCriticalThreshold: 90},
		{ID: "sp-2", Name: "pool1", ProtectionDomainID: "pd-2", MediaType: "SSD"},
	}
	return f
}

func run(t *testing.T, f *gatewaytest.Fake, p Params) (*reconcile.Result, error) {
	t.Helper()
	return reconcile.NewEngine(nil).Reconcile(context.Background(), NewResource(f, p), reconcile.Options{})
}

func TestNameLookupIsScopedByDomain(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{StoragePoolName: reconcile.Ptr("pool1")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAmbiguousResource))
	assert.Contains(t, errs.Message(err), "protection_domain_name")

	res, err := run(t, f, Params{StoragePoolName: reconcile.Ptr("pool1"), ProtectionDomainName: reconcile.Ptr("domain2")})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	details := res.Details.(*Details)
	assert.Equal(t, "sp-2", details.ID)
	assert.Equal(t, "domain2", details.ProtectionDomainName)
}

func TestCreate(t *testing.T) {
	f := newFake()
	p := Params{
		StoragePoolName:    reconcile.Ptr("fast"),
		ProtectionDomainID: reconcile.Ptr("pd-1"),
		MediaType:          reconcile.Ptr("TRANSITIONAL"),
		UseRmcache:         reconcile.Ptr(true),
		EnableZeroPadding:  reconcile.Ptr(true),
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"createStoragePool", "setUseRmcache", "setZeroPaddingPolicy"}, f.Calls)

	details := res.Details.(*Details)
	assert.Equal(t, "Transitional", details.MediaType)
	assert.Equal(t, "domain1", details.ProtectionDomainName)

	f.Reset()
	res, err = run(t, f, p)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, f.Calls)
}

func TestCreateRequirements(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{StoragePoolName: reconcile.Ptr("fast"), MediaType: reconcile.Ptr("SSD")})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	_, err = run(t, f, Params{StoragePoolName: reconcile.Ptr("fast"), ProtectionDomainID: reconcile.Ptr("pd-1")})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	_, err = run(t, f, Params{StoragePoolName: reconcile.Ptr("fast"), ProtectionDomainID: reconcile.Ptr("pd-404")})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Empty(t, f.Calls)
}

func TestModifyOrder(t *testing.T) {
	f := newFake()
	p := Params{
		StoragePoolID:                 reconcile.Ptr("sp-1"),
		StoragePoolNewName:            reconcile.Ptr("pool-a"),
		MediaType:                     reconcile.Ptr("SSD"),
		UseRfcache:                    reconcile.Ptr(true),
		UseRmcache:                    reconcile.Ptr(true),
		RmcacheWriteHandlingMode:      reconcile.Ptr("Passthrough"),
		EnableZeroPadding:             reconcile.Ptr(true),
		RepCapMaxRatio:                reconcile.Ptr(40),
		EnableRebalance:               reconcile.Ptr(true),
		EnableRebuild:                 reconcile.Ptr(false),
		EnableFragmentation:           reconcile.Ptr(true),
		SparePercentage:               reconcile.Ptr(20),
		ParallelRebuildRebalanceLimit: reconcile.Ptr(4),
		PersistentChecksum:            &PersistentChecksum{Enable: reconcile.Ptr(true), BuilderLimit: reconcile.Ptr(3072)},
		RebalanceIOPriority:           &IOPriority{Policy: reconcile.Ptr("favorAppIos"), BwLimitPerDevice: reconcile.Ptr(10240)},
		CapAlertThresholds:            &Thresholds{High: reconcile.Ptr(70)},
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"setStoragePoolName",
		"setMediaType",
		"enableRfcache",
		"setUseRmcache",
		"setRmcacheWriteHandlingMode",
		"setZeroPaddingPolicy",
		"setReplicationJournalCapacity",
		"enableRebalance",
		"disableRebuild",
		"enableFragmentation",
		"setSparePercentage",
		"setRebuildRebalanceParallelism",
		"enablePersistentChecksum",
		"setRebalanceIoPriorityPolicy",
		"setCapacityAlertThresholds",
	}, f.Calls)

	details := res.Details.(*Details)
	assert.True(t, details.PersistentChecksumEnabled)
	assert.Equal(t, 3072, details.PersistentChecksumBuilderLimitKb)
	assert.Equal(t, 70, details.CapacityAlertHighThreshold)
	assert.Equal(t, 90, details.CapacityAlertCriticalThreshold)

	f.Reset()
	res, err = run(t, f, p)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestPersistentChecksum(t *testing.T) {
	t.Run("sub-field while disabled", func(t *testing.T) {
		f := newFake()
		_, err := run(t, f, Params{StoragePoolID: reconcile.Ptr("sp-1"),
			PersistentChecksum: &PersistentChecksum{ValidateOnRead: reconcile.Ptr(true)}})
		assert.True(t, errors.Is(err, errs.ErrPreconditionFailed))
		assert.Empty(t, f.Calls)
	})

	t.Run("matching sub-field while disabled", func(t *testing.T) {
		f := newFake()
		f.Pools[0].PersistentChecksumBuilderLimitKb = 3072
		_, err := run(t, f, Params{StoragePoolID: reconcile.Ptr("sp-1"),
			PersistentChecksum: &PersistentChecksum{BuilderLimit: reconcile.Ptr(3072)}})
		assert.True(t, errors.Is(err, errs.ErrPreconditionFailed))
		assert.Empty(t, f.Calls)
	})

	t.Run("only changed sub-fields when enabled", func(t *testing.T) {
		f := newFake()
		f.Pools[0].PersistentChecksumEnabled = true
		f.Pools[0].PersistentChecksumBuilderLimitKb = 3072

		res, err := reconcile.NewEngine(nil).Reconcile(context.Background(), NewResource(f, Params{
			StoragePoolID: reconcile.Ptr("sp-1"),
			PersistentChecksum: &PersistentChecksum{
				Enable:         reconcile.Ptr(true),
				ValidateOnRead: reconcile.Ptr(true),
				BuilderLimit:   reconcile.Ptr(3072),
			},
		}), reconcile.Options{DryRun: true, Diff: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"modifyPersistentChecksum"}, res.Operations)
		require.Len(t, res.Diff.Changes, 1)
		assert.Equal(t, "persistentChecksumValidateOnRead", res.Diff.Changes[0].Attribute)
	})

	t.Run("disable rejects sub-fields", func(t *testing.T) {
		f := newFake()
		_, err := run(t, f, Params{StoragePoolID: reconcile.Ptr("sp-1"),
			PersistentChecksum: &PersistentChecksum{Enable: reconcile.Ptr(false), BuilderLimit: reconcile.Ptr(2048)}})
		assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
		assert.Zero(t, f.Reads)
	})
}

func TestIOPriorityPreconditions(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{StoragePoolID: reconcile.Ptr("sp-1"),
		VTreeMigrationIOPriority: &IOPriority{ConcurrentIosPerDevice: reconcile.Ptr(4)}})
	assert.True(t, errors.Is(err, errs.ErrPreconditionFailed))

	_, err = run(t, f, Params{StoragePoolID: reconcile.Ptr("sp-1"),
		VTreeMigrationIOPriority: &IOPriority{Policy: reconcile.Ptr("limitNumOfConcurrentIos"), BwLimitPerDevice: reconcile.Ptr(2048)}})
	assert.True(t, errors.Is(err, errs.ErrPreconditionFailed))
	assert.Empty(t, f.Calls)

	f.Pools[0].VTreeMigrationIoPriorityPolicy = "limitNumOfConcurrentIos"
	_, err = run(t, f, Params{StoragePoolID: reconcile.Ptr("sp-1"),
		VTreeMigrationIOPriority: &IOPriority{ConcurrentIosPerDevice: reconcile.Ptr(4)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"setVTreeMigrationIoPriorityPolicy"}, f.Calls)
}

func TestThresholds(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{StoragePoolID: reconcile.Ptr("sp-1"),
		CapAlertThresholds: &Thresholds{High: reconcile.Ptr(90), Critical: reconcile.Ptr(80)}})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Zero(t, f.Reads)

	_, err = run(t, f, Params{StoragePoolID: reconcile.Ptr("sp-1"),
		CapAlertThresholds: &Thresholds{High: reconcile.Ptr(95)}})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Empty(t, f.Calls)
}

func TestDelete(t *testing.T) {
	f := newFake()
	res, err := run(t, f, Params{StoragePoolName: reconcile.Ptr("pool1"), ProtectionDomainID: reconcile.Ptr("pd-1"),
		State: reconcile.StateAbsent})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"removeStoragePool"}, f.Calls)
	assert.Len(t, f.Pools, 1)
}

func TestPaddedNameConverges(t *testing.T) {
	f := newFake()
	p := Params{
		StoragePoolName:    reconcile.Ptr("  fast "),
		ProtectionDomainID: reconcile.Ptr("pd-1"),
		MediaType:          reconcile.Ptr("SSD"),
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "fast", res.Details.(*Details).Name)

	f.Reset()
	res, err = run(t, f, p)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, f.Pools, 3)
}

func TestBlankNameIsRejected(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{StoragePoolName: reconcile.Ptr(" \t"), ProtectionDomainID: reconcile.Ptr("pd-1"), MediaType: reconcile.Ptr("SSD")})
	assert.True(t, errors.Is(err, errs.ErrInvalidName))
	assert.Empty(t, f.Calls)
}

func TestOwnerReadFailurePropagates(t *testing.T) {
	f := newFake()
	f.Pools = f.Pools[:1]
	f.FailReads = map[string]error{"protection domain": errors.New("500: internal error")}

	_, err := run(t, f, Params{StoragePoolName: reconcile.Ptr("pool1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal error")
}

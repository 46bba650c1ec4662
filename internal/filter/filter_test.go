package filter

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

var (
	localCaps = Capabilities{
		Keys:      []string{"id", "name", "hostType"},
		Operators: []Operator{Equal},
	}
	nativeCaps = Capabilities{
		Keys:      []string{"name", "deploymentName", "status"},
		Operators: []Operator{Equal, Contains},
		Native:    true,
	}
)

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name    string
		clauses []Clause
		caps    Capabilities
		want    error
	}{
		{
			name:    "unknown key",
			clauses: []Clause{{Key: "colour", Operator: Equal, Value: "red"}},
			caps:    localCaps,
			want:    errs.ErrInvalidFilterKey,
		},
		{
			name:    "empty key",
			clauses: []Clause{{Key: " ", Operator: Equal, Value: "x"}},
			caps:    localCaps,
			want:    errs.ErrInvalidFilterKey,
		},
		{
			name:    "contains on local kind",
			clauses: []Clause{{Key: "name", Operator: Contains, Value: "vol"}},
			caps:    localCaps,
			want:    errs.ErrUnsupportedOperator,
		},
		{
			name:    "unknown operator",
			clauses: []Clause{{Key: "name", Operator: "greater", Value: "1"}},
			caps:    nativeCaps,
			want:    errs.ErrUnsupportedOperator,
		},
		{
			name:    "empty value",
			clauses: []Clause{{Key: "name", Operator: Equal, Value: ""}},
			caps:    localCaps,
			want:    errs.ErrInvalidFilterValue,
		},
		{
			name: "mixed operators on one key",
			clauses: []Clause{
				{Key: "name", Operator: Equal, Value: "a"},
				{Key: "name", Operator: Contains, Value: "b"},
			},
			caps: nativeCaps,
			want: errs.ErrUnsupportedOperator,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Evaluate(tt.clauses, tt.caps)
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSameKeyMergesIntoOr(t *testing.T) {
	plan, err := Evaluate([]Clause{
		{Key: "name", Operator: Equal, Value: "vol-a"},
		{Key: "name", Operator: Equal, Value: "vol-b"},
		{Key: "name", Operator: Equal, Value: "vol-a"},
	}, localCaps)
	require.NoError(t, err)

	assert.Equal(t, []string{"eq,name,vol-a,vol-b"}, plan.Query())
	assert.True(t, plan.Match(map[string]any{"name": "vol-a"}))
	assert.True(t, plan.Match(map[string]any{"name": "vol-b"}))
	assert.False(t, plan.Match(map[string]any{"name": "vol-c"}))
}

func TestDistinctKeysAreAnded(t *testing.T) {
	plan, err := Evaluate([]Clause{
		{Key: "name", Value: "h1"},
		{Key: "hostType", Value: "NVMeHost"},
	}, localCaps)
	require.NoError(t, err)

	assert.True(t, plan.Match(map[string]any{"name": "h1", "hostType": "NVMeHost"}))
	assert.False(t, plan.Match(map[string]any{"name": "h1", "hostType": "SdcHost"}))
	assert.False(t, plan.Match(map[string]any{"name": "h1"}))
}

func TestQueryFragments(t *testing.T) {
	plan, err := Evaluate([]Clause{
		{Key: "name", Operator: Contains, Value: "web"},
		{Key: "status", Operator: Equal, Value: "complete"},
		{Key: "name", Operator: Contains, Value: "db"},
	}, nativeCaps)
	require.NoError(t, err)

	assert.Equal(t, []string{"co,name,web,db", "eq,status,complete"}, plan.Query())
}

func TestMatchStringifiesValues(t *testing.T) {
	plan, err := Evaluate([]Clause{{Key: "id", Value: "42"}}, localCaps)
	require.NoError(t, err)

	assert.True(t, plan.Match(map[string]any{"id": float64(42)}))
	assert.False(t, plan.Match(map[string]any{"id": float64(42.5)}))
}

func TestNestedKeyAndApply(t *testing.T) {
	caps := Capabilities{Keys: []string{"metadata.name"}, Operators: []Operator{Equal, Contains}}
	plan, err := Evaluate([]Clause{{Key: "metadata.name", Operator: Contains, Value: "prod"}}, caps)
	require.NoError(t, err)

	records := []map[string]any{
		{"metadata": map[string]any{"name": "prod-1"}},
		{"metadata": map[string]any{"name": "dev-1"}},
		{"metadata": "flat"},
	}
	assert.Len(t, plan.Apply(records), 1)
}

func TestEmptyPlanMatchesEverything(t *testing.T) {
	plan, err := Evaluate(nil, localCaps)
	require.NoError(t, err)

	assert.True(t, plan.Empty())
	assert.Nil(t, plan.Query())
	assert.True(t, plan.Match(map[string]any{}))

	var nilPlan *Plan
	assert.True(t, nilPlan.Empty())
	assert.True(t, nilPlan.Match(nil))
}

package errs

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := Newf(ErrInvalidName, "name %q is empty", " ")
	wrapped := fmt.Errorf("volume: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInvalidName))
	assert.False(t, errors.Is(wrapped, ErrInvalidSize))
	assert.True(t, IsValidation(wrapped))
}

func TestOperation(t *testing.T) {
	base := errors.New("volume is mapped")
	err := Operation("removeVolume", base)

	assert.True(t, errors.Is(err, ErrBackendOperation))
	assert.Contains(t, err.Error(), "removeVolume failed")
	assert.Contains(t, err.Error(), "volume is mapped")
	assert.False(t, IsValidation(err))
	assert.Nil(t, Operation("noop", nil))
}

func TestMessageIncludesHint(t *testing.T) {
	err := WithHint(Newf(ErrAmbiguousResource, "multiple storage pools named %q", "sp1"),
		"specify protection_domain_name or protection_domain_id")

	assert.Equal(t,
		`multiple storage pools named "sp1" (specify protection_domain_name or protection_domain_id)`,
		Message(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "validation", err: Newf(ErrInvalidFilterKey, "bad key"), want: 2},
		{name: "backend", err: Operation("setVolumeName", errors.New("boom")), want: 1},
		{name: "connection", err: Mark(errors.New("refused"), ErrConnection), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

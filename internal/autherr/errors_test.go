package autherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel", ErrInvalidCredential, KindInvalidCredential},
		{"wrapped sentinel", fmt.Errorf("rotate: %w", ErrExpiredCredential), KindExpiredCredential},
		{"custom validation", New(KindValidation, "name too short"), KindValidation},
		{"plain error", errors.New("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", ErrAuth)
	assert.True(t, errors.Is(wrapped, ErrAuth))

	// Two distinct errors of the same kind are not Is-equal; kind-level
	// matching goes through KindOf.
	other := New(KindAuth, "invalid email or password")
	assert.False(t, errors.Is(other, ErrAuth))
	assert.Equal(t, KindOf(other), KindOf(ErrAuth))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "configuration", KindConfiguration.String())
	assert.Equal(t, "unknown", Kind(250).String())
}

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"timeout is retryable", ErrTimeout, true},
		{"network is retryable", ErrNetwork, true},
		{"rate limited is retryable", ErrRateLimited, true},
		{"circuit open is retryable", ErrCircuitOpen, true},
		{"wrapped retryable error is retryable", fmt.Errorf("fetch failed: %w", ErrTimeout), true},
		{"ssrf blocked is not retryable", ErrSSRFBlocked, false},
		{"custom error is not retryable", errors.New("boom"), false},
		{"nil error is not retryable", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsSSRF(t *testing.T) {
	assert.True(t, IsSSRF(ErrSSRFBlocked))
	assert.True(t, IsSSRF(fmt.Errorf("guard: %w", ErrSSRFBlocked)))
	assert.False(t, IsSSRF(ErrTimeout))
	assert.False(t, IsSSRF(nil))
}

func TestKindOfUnwrapsFrameworkError(t *testing.T) {
	wrapped := New("fetch", KindNetwork, ErrNetwork)
	assert.Equal(t, KindNetwork, KindOf(wrapped))

	doubleWrapped := fmt.Errorf("pipeline: %w", wrapped)
	assert.Equal(t, KindNetwork, KindOf(doubleWrapped))

	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestFrameworkErrorMessageFormatting(t *testing.T) {
	opErr := New("fetch_one", KindTimeout, ErrTimeout)
	assert.Equal(t, "fetch_one: operation timed out", opErr.Error())

	withID := opErr.WithID("session-1")
	assert.Equal(t, "fetch_one [session-1]: operation timed out", withID.Error())

	messageOnly := &FrameworkError{Kind: KindValidation, Message: "missing field"}
	assert.Equal(t, "missing field", messageOnly.Error())

	kindOnly := &FrameworkError{Kind: KindInternal}
	assert.Equal(t, "Internal error", kindOnly.Error())
}

func TestFrameworkErrorUnwrap(t *testing.T) {
	fe := New("op", KindNetwork, ErrNetwork)
	assert.True(t, errors.Is(fe, ErrNetwork))
	assert.Same(t, ErrNetwork, fe.Unwrap())
}

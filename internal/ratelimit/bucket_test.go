package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowGrantsUpToBurst(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("host-a", 5, time.Minute))
	}
	assert.False(t, l.Allow("host-a", 5, time.Minute))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("host-a", 5, time.Minute))
	}
	assert.True(t, l.Allow("host-b", 5, time.Minute))
}

func TestAllowRefillsLazily(t *testing.T) {
	l := New()
	window := 10 * time.Millisecond
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("host-c", 3, window))
	}
	assert.False(t, l.Allow("host-c", 3, window))

	time.Sleep(window + 5*time.Millisecond)
	assert.True(t, l.Allow("host-c", 3, window))
}

func TestAllowNeverReturnsNegativeTokens(t *testing.T) {
	l := New()
	for i := 0; i < 20; i++ {
		l.Allow("host-d", 5, time.Minute)
	}
	assert.GreaterOrEqual(t, l.Remaining("host-d", 5), 0)
}

func TestAllowRejectsNonPositiveParams(t *testing.T) {
	l := New()
	assert.False(t, l.Allow("host-e", 0, time.Minute))
	assert.False(t, l.Allow("host-e", 5, 0))
}

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironmanus/internal/domain"
	"ironmanus/internal/obslog"
)

func TestGetCreatesOnMissWithDefaults(t *testing.T) {
	store, err := New("memory", "", time.Hour, obslog.NoOpLogger{})
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseInit, rec.CurrentPhase)
	assert.Equal(t, 0.8, rec.ReasoningEffectiveness)
	assert.WithinDuration(t, time.Now(), rec.LastActivity, time.Second)
}

func TestUpdateMergesAndRestampsActivity(t *testing.T) {
	store, err := New("memory", "", time.Hour, obslog.NoOpLogger{})
	require.NoError(t, err)

	before, _ := store.Get(context.Background(), "sess-2")
	time.Sleep(5 * time.Millisecond)

	updated, err := store.Update(context.Background(), "sess-2", func(r *domain.SessionRecord) {
		r.CurrentPhase = domain.PhaseQuery
		r.Payload["interpreted_goal"] = "summarize cat facts"
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseQuery, updated.CurrentPhase)
	assert.Equal(t, "summarize cat facts", updated.Payload["interpreted_goal"])
	assert.True(t, updated.LastActivity.After(before.LastActivity))
}

func TestSweepEvictsOnlyIdleSessions(t *testing.T) {
	store, err := New("memory", "", 10*time.Millisecond, obslog.NoOpLogger{})
	require.NoError(t, err)

	store.Get(context.Background(), "idle")
	time.Sleep(15 * time.Millisecond)
	store.Get(context.Background(), "fresh")

	evicted := store.Sweep(context.Background())
	assert.Equal(t, 1, evicted)

	rec, _ := store.Get(context.Background(), "fresh")
	assert.Equal(t, "fresh", rec.SessionID)
}

func TestNewSessionIDsAreUnique(t *testing.T) {
	store, err := New("memory", "", time.Hour, obslog.NoOpLogger{})
	require.NoError(t, err)
	assert.NotEqual(t, store.NewSessionID(), store.NewSessionID())
}

func TestRedisBackendRequiresValidURL(t *testing.T) {
	_, err := New("redis", "not-a-valid-url", time.Hour, obslog.NoOpLogger{})
	require.Error(t, err)
}

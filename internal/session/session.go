// Package session implements the Session Store: a map of
// session_id -> SessionRecord with get-creates-on-miss semantics, an
// idle sweep, and an archival summary emitted through the logger before
// eviction. One Store interface, two backends (in-memory and Redis)
// selected by config.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ironmanus/internal/domain"
	"ironmanus/internal/obslog"
)

// Store is the backend-agnostic contract the FSM and tools depend on.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	Update(ctx context.Context, sessionID string, mutate func(*domain.SessionRecord)) (*domain.SessionRecord, error)
	NewSessionID() string
	Sweep(ctx context.Context) int
	Close() error
}

// New builds the Store selected by cfg.Backend ("memory" or "redis").
func New(backend, redisURL string, idleTimeout time.Duration, logger obslog.Logger) (Store, error) {
	logger = obslog.Component(logger, "engine/session")
	switch backend {
	case "redis":
		return newRedisStore(redisURL, idleTimeout, logger)
	default:
		return newMemoryStore(idleTimeout, logger), nil
	}
}

func defaultRecord(sessionID string) *domain.SessionRecord {
	return &domain.SessionRecord{
		SessionID:              sessionID,
		CurrentPhase:           domain.PhaseInit,
		ReasoningEffectiveness: 0.8,
		LastActivity:           time.Now(),
		Payload:                map[string]interface{}{},
	}
}

// memoryStore is the default, process-local backend.
type memoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*domain.SessionRecord
	idleTimeout time.Duration
	logger      obslog.Logger
}

func newMemoryStore(idleTimeout time.Duration, logger obslog.Logger) *memoryStore {
	return &memoryStore{
		sessions:    make(map[string]*domain.SessionRecord),
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

func (s *memoryStore) NewSessionID() string { return uuid.NewString() }

func (s *memoryStore) Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = defaultRecord(sessionID)
		s.sessions[sessionID] = rec
	}
	rec.LastActivity = time.Now()
	return cloneRecord(rec), nil
}

func (s *memoryStore) Update(ctx context.Context, sessionID string, mutate func(*domain.SessionRecord)) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = defaultRecord(sessionID)
		s.sessions[sessionID] = rec
	}
	mutate(rec)
	rec.LastActivity = time.Now()
	return cloneRecord(rec), nil
}

// Sweep evicts sessions idle longer than idleTimeout, logging an archival
// summary for each one first, and returns the count evicted.
func (s *memoryStore) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	now := time.Now()
	for id, rec := range s.sessions {
		if now.Sub(rec.LastActivity) <= s.idleTimeout {
			continue
		}
		s.logger.Info("session archived", map[string]interface{}{
			"session_id":  id,
			"final_phase": rec.CurrentPhase,
			"effectiveness": rec.ReasoningEffectiveness,
		})
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}

func (s *memoryStore) Close() error { return nil }

func cloneRecord(rec *domain.SessionRecord) *domain.SessionRecord {
	clone := *rec
	clone.Payload = make(map[string]interface{}, len(rec.Payload))
	for k, v := range rec.Payload {
		clone.Payload[k] = v
	}
	return &clone
}

// redisStore is the optional distributed backend, grounded on the
// teacher's pkg/memory.RedisMemory: namespaced keys, JSON values, one
// client shared by every session.
type redisStore struct {
	client      *redis.Client
	idleTimeout time.Duration
	logger      obslog.Logger
}

func newRedisStore(redisURL string, idleTimeout time.Duration, logger obslog.Logger) (*redisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("session: invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: connecting to redis: %w", err)
	}

	return &redisStore{client: client, idleTimeout: idleTimeout, logger: logger}, nil
}

func (s *redisStore) key(sessionID string) string {
	return fmt.Sprintf("ironmanus:session:%s", sessionID)
}

func (s *redisStore) NewSessionID() string { return uuid.NewString() }

func (s *redisStore) load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return defaultRecord(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: loading %s: %w", sessionID, err)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session: decoding %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (s *redisStore) save(ctx context.Context, rec *domain.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: encoding %s: %w", rec.SessionID, err)
	}
	return s.client.Set(ctx, s.key(rec.SessionID), data, s.idleTimeout).Err()
}

func (s *redisStore) Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rec.LastActivity = time.Now()
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *redisStore) Update(ctx context.Context, sessionID string, mutate func(*domain.SessionRecord)) (*domain.SessionRecord, error) {
	rec, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	mutate(rec)
	rec.LastActivity = time.Now()
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Sweep is a no-op for Redis: the TTL set on every save already evicts
// idle sessions, so there is nothing left for a sweep loop to find.
func (s *redisStore) Sweep(ctx context.Context) int { return 0 }

func (s *redisStore) Close() error { return s.client.Close() }

// StartSweeper runs Sweep on interval until ctx is canceled, matching the
// teacher's pattern of a background goroutine owned by the caller rather
// than the store itself.
func StartSweeper(ctx context.Context, store Store, interval time.Duration, logger obslog.Logger) {
	logger = obslog.Component(logger, "engine/session")
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := store.Sweep(ctx); n > 0 {
					logger.Info("session sweep completed", map[string]interface{}{"evicted": n})
				}
			}
		}
	}()
}

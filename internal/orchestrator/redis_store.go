package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"credisense/internal/common/database"
)

// DefaultInFlightTTL bounds how long a crashed submission can block its
// session. A live submission refreshes its flag while it runs.
const DefaultInFlightTTL = 2 * time.Minute

// RedisStore keeps state as JSON under prefix+sessionID. The in-flight flag
// is a separate key set with SETNX whose value is the holder's token.
type RedisStore struct {
	redis       *database.RedisClient
	prefix      string
	ttl         time.Duration
	inFlightTTL time.Duration
	newToken    func() string
}

func NewRedisStore(client *database.RedisClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis:       client,
		prefix:      prefix,
		ttl:         ttl,
		inFlightTTL: DefaultInFlightTTL,
		newToken:    uuid.NewString,
	}
}

// WithInFlightTTL overrides DefaultInFlightTTL.
func (r *RedisStore) WithInFlightTTL(ttl time.Duration) *RedisStore {
	r.inFlightTTL = ttl
	return r
}

func (r *RedisStore) stateKey(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) flagKey(sessionID string) string {
	return r.prefix + sessionID + ":inflight"
}

func (r *RedisStore) Load(ctx context.Context, sessionID string) (*State, error) {
	raw, err := r.redis.Get(ctx, r.stateKey(sessionID))
	if database.IsNil(err) {
		return NewState(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &st, nil
}

func (r *RedisStore) Save(ctx context.Context, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}
	if err := r.redis.Set(ctx, r.stateKey(state.SessionID), data, r.ttl); err != nil {
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.redis.Del(ctx, r.stateKey(sessionID), r.flagKey(sessionID))
}

func (r *RedisStore) Acquire(ctx context.Context, sessionID string) (string, bool, error) {
	token := r.newToken()
	ok, err := r.redis.SetNX(ctx, r.flagKey(sessionID), token, r.inFlightTTL)
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire submission flag: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisStore) Refresh(ctx context.Context, sessionID, token string) (bool, error) {
	ok, err := r.redis.ExpireIfEqual(ctx, r.flagKey(sessionID), token, r.inFlightTTL)
	if err != nil {
		return false, fmt.Errorf("failed to refresh submission flag: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Release(ctx context.Context, sessionID, token string) error {
	if _, err := r.redis.DelIfEqual(ctx, r.flagKey(sessionID), token); err != nil {
		return fmt.Errorf("failed to release submission flag: %w", err)
	}
	return nil
}

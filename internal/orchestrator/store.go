package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists session state. Acquire and Release guard the Submitting
// phase: at most one submission per session is in flight.
type Store interface {
	// Load returns a fresh Idle state for unknown or expired sessions.
	Load(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, sessionID string) error

	// Acquire reports false when a submission is already in flight. The
	// returned token identifies the holder to Refresh and Release.
	Acquire(ctx context.Context, sessionID string) (token string, ok bool, err error)
	// Refresh extends the flag and reports false once the holder lost it.
	Refresh(ctx context.Context, sessionID, token string) (bool, error)
	// Release clears the flag only if token still holds it.
	Release(ctx context.Context, sessionID, token string) error
}

// MemoryStore keeps state in process. Suitable for a single instance.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	states   map[string]*State
	inFlight map[string]string
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		states:   make(map[string]*State),
		inFlight: make(map[string]string),
		now:      time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[sessionID]
	if !ok {
		return NewState(sessionID), nil
	}
	if m.ttl > 0 && m.now().Sub(st.UpdatedAt) > m.ttl {
		delete(m.states, sessionID)
		return NewState(sessionID), nil
	}
	return cloneState(st), nil
}

func (m *MemoryStore) Save(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state.UpdatedAt = m.now().UTC()
	m.states[state.SessionID] = cloneState(state)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, sessionID)
	delete(m.inFlight, sessionID)
	return nil
}

func (m *MemoryStore) Acquire(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.inFlight[sessionID]; busy {
		return "", false, nil
	}
	token := uuid.NewString()
	m.inFlight[sessionID] = token
	return token, true, nil
}

// Refresh only checks ownership; in-process flags never expire.
func (m *MemoryStore) Refresh(_ context.Context, sessionID, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.inFlight[sessionID] == token, nil
}

func (m *MemoryStore) Release(_ context.Context, sessionID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight[sessionID] == token {
		delete(m.inFlight, sessionID)
	}
	return nil
}

// Len is the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// cloneState copies the fields callers mutate so stored state is never
// aliased.
func cloneState(s *State) *State {
	c := *s
	if s.Draft != nil {
		d := *s.Draft
		c.Draft = &d
	}
	if s.Response != nil {
		r := *s.Response
		c.Response = &r
	}
	if s.Notifications != nil {
		c.Notifications = append(c.Notifications[:0:0], s.Notifications...)
	}
	return &c
}

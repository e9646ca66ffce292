package main

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session holds the state for one loaded dataset: the tasks, the inferred
// boundary (immutable after load) and the effective boundary (inferred
// until the user overrides it). All derived numbers are recomputed from
// this object; nothing else is stateful.
type Session struct {
	ID        string
	TaskSet   *TaskSet
	Inferred  Boundary
	Effective Boundary
	CreatedAt time.Time

	mu sync.Mutex
}

func NewSession(ts *TaskSet, inferred Boundary) *Session {
	return &Session{
		ID:        ulid.Make().String(),
		TaskSet:   ts,
		Inferred:  inferred,
		Effective: inferred,
		CreatedAt: time.Now(),
	}
}

// SetBoundary replaces the effective boundary. A start after end is
// rejected with a ValidationError and the prior boundary is kept.
func (s *Session) SetBoundary(start, end time.Time) error {
	b, err := NewBoundary(start, end)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.Effective = b
	s.mu.Unlock()
	return nil
}

func (s *Session) Boundary() Boundary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Effective
}

// Metrics recomputes the aggregate metrics for the current effective
// boundary. Eager and total on every call; datasets are small.
func (s *Session) Metrics(opts MetricsOptions) Metrics {
	return ComputeMetrics(s.TaskSet, s.Boundary(), opts)
}

// SessionRegistry maps session IDs to sessions for the HTTP surface.
// Sessions are never persisted; loading a new file simply creates a new
// entry and abandons the old one.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

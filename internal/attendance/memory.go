package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps sessions and records in process memory. It backs
// tests and deployments without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	records  map[string][]Record // session id -> records in append order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		records:  make(map[string][]Record),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) EndSession(_ context.Context, id string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	session.Active = false
	session.EndedAt = &endedAt
	return nil
}

func (s *MemoryStore) ActiveSessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []Session
	for _, session := range s.sessions {
		if session.Active {
			active = append(active, *session)
		}
	}
	return active, nil
}

func (s *MemoryStore) SessionsBySubject(_ context.Context, subject string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Session
	for _, session := range s.sessions {
		if session.Subject == subject {
			matched = append(matched, *session)
		}
	}
	return matched, nil
}

func (s *MemoryStore) AppendRecord(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[record.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", record.SessionID, ErrSessionNotFound)
	}
	s.records[record.SessionID] = append(s.records[record.SessionID], *record)
	return nil
}

func (s *MemoryStore) HasRecord(_ context.Context, sessionID, studentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records[sessionID] {
		if r.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RecordsBySession(_ context.Context, sessionID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[sessionID]
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

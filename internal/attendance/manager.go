package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager coordinates session lifecycle on top of a Store. It keeps an
// explicit teacher to active-session index so concurrent starts cannot
// give one teacher two running sessions.
type Manager struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	active map[string]string // teacher id -> active session id
}

// NewManager creates a manager and rebuilds the active-session index from
// the store, so sessions that were running before a restart stay markable.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	m := &Manager{
		store:  store,
		now:    time.Now,
		active: make(map[string]string),
	}

	sessions, err := store.ActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active sessions: %w", err)
	}
	for _, s := range sessions {
		m.active[s.TeacherID] = s.ID
	}
	return m, nil
}

// Start opens a new session for the teacher. A teacher can only run one
// session at a time; a second start fails with ErrActiveSession.
func (m *Manager) Start(ctx context.Context, teacherID, teacherMail, subject string) (*Session, error) {
	if teacherID == "" || subject == "" {
		return nil, fmt.Errorf("teacher id and subject are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.active[teacherID]; ok {
		return nil, fmt.Errorf("session %s still running: %w", id, ErrActiveSession)
	}

	session := &Session{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		TeacherMail: teacherMail,
		Subject:     subject,
		StartedAt:   m.now(),
		Active:      true,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	m.active[teacherID] = session.ID
	return session, nil
}

// ActiveSessionID returns the running session for a teacher, if any.
func (m *Manager) ActiveSessionID(teacherID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[teacherID]
	return id, ok
}

// Mark appends an attendance record to an active session. Repeated marks
// append repeated records; callers use HasRecord to decide whether a
// sighting is new.
func (m *Manager) Mark(ctx context.Context, sessionID, studentID, studentName string) (*Record, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotActive)
	}

	record := &Record{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		StudentID:   studentID,
		StudentName: studentName,
		MarkedAt:    m.now(),
	}
	if err := m.store.AppendRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("appending record: %w", err)
	}
	return record, nil
}

// SessionByID returns a single session.
func (m *Manager) SessionByID(ctx context.Context, sessionID string) (*Session, error) {
	return m.store.GetSession(ctx, sessionID)
}

// HasRecord reports whether the student was already marked in the session.
func (m *Manager) HasRecord(ctx context.Context, sessionID, studentID string) (bool, error) {
	return m.store.HasRecord(ctx, sessionID, studentID)
}

// End closes a session and releases the teacher's active slot. Ending an
// already ended session is a no-op returning the session as stored.
func (m *Manager) End(ctx context.Context, sessionID string) (*Session, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return session, nil
	}

	endedAt := m.now()
	if err := m.store.EndSession(ctx, sessionID, endedAt); err != nil {
		return nil, fmt.Errorf("ending session: %w", err)
	}

	m.mu.Lock()
	if m.active[session.TeacherID] == sessionID {
		delete(m.active, session.TeacherID)
	}
	m.mu.Unlock()

	session.Active = false
	session.EndedAt = &endedAt
	return session, nil
}

// Summary computes the student's attendance per subject. For every
// subject, TotalClasses counts all sessions ever created for it and
// AttendedClasses the sessions holding at least one of the student's
// records, so repeated sightings never inflate the percentage.
func (m *Manager) Summary(ctx context.Context, studentID string, subjects []string) (map[string]SubjectSummary, error) {
	summary := make(map[string]SubjectSummary, len(subjects))
	for _, subject := range subjects {
		sessions, err := m.store.SessionsBySubject(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("loading %s sessions: %w", subject, err)
		}

		attended := 0
		for _, session := range sessions {
			has, err := m.store.HasRecord(ctx, session.ID, studentID)
			if err != nil {
				return nil, fmt.Errorf("checking records for session %s: %w", session.ID, err)
			}
			if has {
				attended++
			}
		}

		entry := SubjectSummary{
			Subject:         subject,
			TotalClasses:    len(sessions),
			AttendedClasses: attended,
		}
		if len(sessions) > 0 {
			entry.Percentage = 100 * float64(attended) / float64(len(sessions))
		}
		summary[subject] = entry
	}
	return summary, nil
}

// Package attendance manages lesson sessions and the attendance records
// produced by the recognition pipeline.
package attendance

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotActive is returned when marking or ending an already ended session.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrActiveSession is returned when a teacher starts a session while
	// another one of theirs is still running.
	ErrActiveSession = errors.New("teacher already has an active session")
)

// Session is one lesson during which attendance is collected.
type Session struct {
	ID          string     `json:"id"`
	TeacherID   string     `json:"teacher_id"`
	TeacherMail string     `json:"teacher_mail,omitempty"`
	Subject     string     `json:"subject"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Active      bool       `json:"active"`
}

// Record is a single student sighting within a session. The same student
// may appear more than once per session; summaries count distinct sessions.
type Record struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	MarkedAt    time.Time `json:"marked_at"`
}

// SubjectSummary aggregates one student's attendance over a subject.
type SubjectSummary struct {
	Subject         string  `json:"subject"`
	TotalClasses    int     `json:"total_classes"`
	AttendedClasses int     `json:"attended_classes"`
	Percentage      float64 `json:"attendance_percentage"`
}

// Store persists sessions and records. The memory implementation backs
// tests and single-node deployments; the postgres one survives restarts.
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	EndSession(ctx context.Context, id string, endedAt time.Time) error
	ActiveSessions(ctx context.Context) ([]Session, error)
	SessionsBySubject(ctx context.Context, subject string) ([]Session, error)

	AppendRecord(ctx context.Context, record *Record) error
	HasRecord(ctx context.Context, sessionID, studentID string) (bool, error)
	RecordsBySession(ctx context.Context, sessionID string) ([]Record, error)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// AttendanceStore implements attendance.Store on top of PostgreSQL.
type AttendanceStore struct {
	pool *Pool
}

// NewAttendanceStore creates a PostgreSQL-backed attendance store.
func NewAttendanceStore(pool *Pool) *AttendanceStore {
	return &AttendanceStore{pool: pool}
}

func (s *AttendanceStore) CreateSession(ctx context.Context, session *attendance.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, teacher_id, teacher_mail, subject, started_at, ended_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, session.ID, session.TeacherID, session.TeacherMail, session.Subject, session.StartedAt, session.EndedAt, session.Active)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *AttendanceStore) GetSession(ctx context.Context, id string) (*attendance.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, teacher_id, teacher_mail, subject, started_at, ended_at, active
		FROM sessions
		WHERE id = $1
	`, id)

	session, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, attendance.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return session, nil
}

func (s *AttendanceStore) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE sessions SET active = FALSE, ended_at = $2 WHERE id = $1
	`, id, endedAt)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", id, attendance.ErrSessionNotFound)
	}
	return nil
}

func (s *AttendanceStore) ActiveSessions(ctx context.Context) ([]attendance.Session, error) {
	return s.querySessions(ctx, `
		SELECT id, teacher_id, teacher_mail, subject, started_at, ended_at, active
		FROM sessions
		WHERE active
	`)
}

func (s *AttendanceStore) SessionsBySubject(ctx context.Context, subject string) ([]attendance.Session, error) {
	return s.querySessions(ctx, `
		SELECT id, teacher_id, teacher_mail, subject, started_at, ended_at, active
		FROM sessions
		WHERE subject = $1
		ORDER BY started_at
	`, subject)
}

func (s *AttendanceStore) querySessions(ctx context.Context, query string, args ...any) ([]attendance.Session, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []attendance.Session
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(scan func(...any) error) (*attendance.Session, error) {
	var session attendance.Session
	var endedAt sql.NullTime
	var mail sql.NullString
	if err := scan(&session.ID, &session.TeacherID, &mail, &session.Subject, &session.StartedAt, &endedAt, &session.Active); err != nil {
		return nil, err
	}
	session.TeacherMail = mail.String
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return &session, nil
}

func (s *AttendanceStore) AppendRecord(ctx context.Context, record *attendance.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, student_name, marked_at)
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID, record.SessionID, record.StudentID, record.StudentName, record.MarkedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *AttendanceStore) HasRecord(ctx context.Context, sessionID, studentID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM attendance_records WHERE session_id = $1 AND student_id = $2
		)
	`, sessionID, studentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check record exists: %w", err)
	}
	return exists, nil
}

func (s *AttendanceStore) RecordsBySession(ctx context.Context, sessionID string) ([]attendance.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, student_id, student_name, marked_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY marked_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var r attendance.Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.StudentID, &r.StudentName, &r.MarkedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/roster"
)

// Roster implements roster.Roster against the school system's tables.
type Roster struct {
	pool *Pool
}

// NewRoster creates a roster reader over the pool.
func NewRoster(pool *Pool) *Roster {
	return &Roster{pool: pool}
}

func (r *Roster) Student(ctx context.Context, id string) (*roster.Student, error) {
	var s roster.Student
	var class sql.NullString

	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, name, class FROM students WHERE id = ?
	`, id).Scan(&s.ID, &s.Name, &class)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student %s: %w", id, roster.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	s.Class = class.String
	return &s, nil
}

func (r *Roster) Teacher(ctx context.Context, id string) (*roster.Teacher, error) {
	var t roster.Teacher
	var mail sql.NullString

	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, name, mail FROM teachers WHERE id = ?
	`, id).Scan(&t.ID, &t.Name, &mail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("teacher %s: %w", id, roster.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query teacher: %w", err)
	}
	t.Mail = mail.String
	return &t, nil
}

func (r *Roster) SubjectsForTeacher(ctx context.Context, teacherID string) ([]string, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT subject FROM teacher_subjects WHERE teacher_id = ? ORDER BY subject
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	if len(subjects) == 0 {
		// Distinguish an unknown teacher from one with no assignments.
		if _, err := r.Teacher(ctx, teacherID); err != nil {
			return nil, err
		}
	}
	return subjects, nil
}

func (r *Roster) SubjectsForStudent(ctx context.Context, studentID string) ([]string, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT subject FROM student_subjects WHERE student_id = ? ORDER BY subject
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	if len(subjects) == 0 {
		// Distinguish an unknown student from one with no enrollments.
		if _, err := r.Student(ctx, studentID); err != nil {
			return nil, err
		}
	}
	return subjects, nil
}

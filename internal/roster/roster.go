// Package roster exposes the school system's students, teachers and
// subject assignments. The data is read-only from this service's point
// of view; the school system owns it.
package roster

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a student or teacher id is unknown.
var ErrNotFound = errors.New("not found in roster")

// Student is a pupil known to the school system.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class,omitempty"`
}

// Teacher is a staff member who can run attendance sessions.
type Teacher struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Mail string `json:"mail,omitempty"`
}

// Roster looks up people and subject assignments.
type Roster interface {
	Student(ctx context.Context, id string) (*Student, error)
	Teacher(ctx context.Context, id string) (*Teacher, error)
	SubjectsForTeacher(ctx context.Context, teacherID string) ([]string, error)
	SubjectsForStudent(ctx context.Context, studentID string) ([]string, error)
}

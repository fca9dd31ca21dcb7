package roster

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRoster is an in-process roster used in tests and deployments
// without a school system database.
type MemoryRoster struct {
	mu          sync.RWMutex
	students    map[string]Student
	teachers    map[string]Teacher
	subjects    map[string][]string // teacher id -> subjects taught
	enrollments map[string][]string // student id -> subjects enrolled
}

// NewMemoryRoster creates an empty in-memory roster.
func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{
		students:    make(map[string]Student),
		teachers:    make(map[string]Teacher),
		subjects:    make(map[string][]string),
		enrollments: make(map[string][]string),
	}
}

// AddStudent registers a student and the subjects they are enrolled in.
func (r *MemoryRoster) AddStudent(s Student, subjects ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[s.ID] = s
	r.enrollments[s.ID] = subjects
}

// AddTeacher registers a teacher and the subjects they teach.
func (r *MemoryRoster) AddTeacher(t Teacher, subjects ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teachers[t.ID] = t
	r.subjects[t.ID] = subjects
}

func (r *MemoryRoster) Student(_ context.Context, id string) (*Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.students[id]
	if !ok {
		return nil, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (r *MemoryRoster) Teacher(_ context.Context, id string) (*Teacher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.teachers[id]
	if !ok {
		return nil, fmt.Errorf("teacher %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (r *MemoryRoster) SubjectsForTeacher(_ context.Context, teacherID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.teachers[teacherID]; !ok {
		return nil, fmt.Errorf("teacher %s: %w", teacherID, ErrNotFound)
	}
	subjects := make([]string, len(r.subjects[teacherID]))
	copy(subjects, r.subjects[teacherID])
	return subjects, nil
}

func (r *MemoryRoster) SubjectsForStudent(_ context.Context, studentID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.students[studentID]; !ok {
		return nil, fmt.Errorf("student %s: %w", studentID, ErrNotFound)
	}
	subjects := make([]string, len(r.enrollments[studentID]))
	copy(subjects, r.enrollments[studentID])
	return subjects, nil
}

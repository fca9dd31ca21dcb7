package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/dedup"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// AttendanceHandler handles session lifecycle and summaries.
type AttendanceHandler struct {
	manager *attendance.Manager
	cache   *dedup.Cache
	roster  roster.Roster
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(manager *attendance.Manager, cache *dedup.Cache, r roster.Roster) *AttendanceHandler {
	return &AttendanceHandler{
		manager: manager,
		cache:   cache,
		roster:  r,
	}
}

// startRequest represents a session start request
type startRequest struct {
	subject string
}

func (s *startRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal start request: %w", err)
	}
	s.subject = raw["subject"]
	return nil
}

// Start opens a new attendance session for the logged-in teacher.
func (h *AttendanceHandler) Start(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}

	created, err := h.manager.Start(r.Context(), session.TeacherID, session.TeacherMail, req.subject)
	if err != nil {
		if errors.Is(err, attendance.ErrActiveSession) {
			respondError(w, http.StatusConflict, "another session is still running")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	log.Printf("teacher %s started session %s (%s)", sanitizeForLog(session.TeacherID), created.ID, sanitizeForLog(req.subject))
	respondJSON(w, http.StatusCreated, created)
}

// End closes the teacher's active session and flushes the dedup cache so
// the next session starts with a clean slate.
func (h *AttendanceHandler) End(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, ok := h.manager.ActiveSessionID(session.TeacherID)
	if !ok {
		respondError(w, http.StatusNotFound, "no active session")
		return
	}

	ended, err := h.manager.End(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	h.cache.Clear()

	log.Printf("teacher %s ended session %s", sanitizeForLog(session.TeacherID), sessionID)
	respondJSON(w, http.StatusOK, ended)
}

// Active returns the teacher's running session, if any.
func (h *AttendanceHandler) Active(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, ok := h.manager.ActiveSessionID(session.TeacherID)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]bool{"active": false})
		return
	}

	active, err := h.manager.SessionByID(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"active": true, "session": active})
}

// markRequest represents a manual mark request
type markRequest struct {
	studentID string
}

func (m *markRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal mark request: %w", err)
	}
	m.studentID = raw["student_id"]
	return nil
}

// Mark manually records a student in the teacher's active session, used
// when the camera misses someone.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.studentID == "" {
		respondError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	sessionID, ok := h.manager.ActiveSessionID(session.TeacherID)
	if !ok {
		respondError(w, http.StatusNotFound, "no active session")
		return
	}

	name := req.studentID
	if student, err := h.roster.Student(r.Context(), req.studentID); err == nil {
		name = student.Name
	}

	record, err := h.manager.Mark(r.Context(), sessionID, req.studentID, name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to mark student")
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

// Summary returns a student's attendance percentage for each subject
// they are enrolled in.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "student_id query parameter is required")
		return
	}

	subjects, err := h.roster.SubjectsForStudent(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown student")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load enrollments")
		return
	}

	summary, err := h.manager.Summary(r.Context(), studentID, subjects)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

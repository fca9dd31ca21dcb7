package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	roster         roster.Roster
	sessionManager *middleware.SessionManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(r roster.Roster, sm *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{
		roster:         r,
		sessionManager: sm,
	}
}

// loginRequest represents a login request
type loginRequest struct {
	teacherID string
}

func (l *loginRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal login request: %w", err)
	}
	l.teacherID = raw["teacher_id"]
	return nil
}

// LoginResponse represents a login response
type LoginResponse struct {
	Success     bool   `json:"success"`
	SessionID   string `json:"session_id,omitempty"`
	TeacherName string `json:"teacher_name,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Login verifies the teacher against the roster and opens a login session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.teacherID == "" {
		respondError(w, http.StatusBadRequest, "teacher_id is required")
		return
	}

	teacher, err := h.roster.Teacher(r.Context(), req.teacherID)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			respondJSON(w, http.StatusUnauthorized, LoginResponse{
				Success: false,
				Error:   "unknown teacher",
			})
			return
		}
		respondError(w, http.StatusInternalServerError, "roster lookup failed")
		return
	}

	session, err := h.sessionManager.CreateSession(teacher.ID, teacher.Name, teacher.Mail)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.sessionManager.SetSessionCookie(w, session)

	respondJSON(w, http.StatusOK, LoginResponse{
		Success:     true,
		SessionID:   session.ID,
		TeacherName: teacher.Name,
		ExpiresAt:   session.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout handles teacher logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session != nil {
		h.sessionManager.DeleteSession(session.ID)
	}

	h.sessionManager.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	TeacherID     string `json:"teacher_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status checks if the teacher is authenticated by validating the session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session == nil {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		TeacherID:     session.TeacherID,
		ExpiresAt:     session.ExpiresAt.Format(time.RFC3339),
	})
}

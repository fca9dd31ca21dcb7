package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// SubjectsHandler lists the subjects a teacher can start sessions for.
type SubjectsHandler struct {
	roster roster.Roster
}

// NewSubjectsHandler creates a new subjects handler
func NewSubjectsHandler(r roster.Roster) *SubjectsHandler {
	return &SubjectsHandler{roster: r}
}

// List returns the logged-in teacher's subjects.
func (h *SubjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	subjects, err := h.roster.SubjectsForTeacher(r.Context(), session.TeacherID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load subjects")
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"subjects": subjects})
}

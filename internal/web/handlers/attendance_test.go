package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

func newAttendanceHandler(t *testing.T) (*AttendanceHandler, *attendance.Manager) {
	t.Helper()
	manager := testManager(t)
	return NewAttendanceHandler(manager, testCache(), testRoster()), manager
}

func TestStartSession(t *testing.T) {
	h, _ := newAttendanceHandler(t)

	rec := httptest.NewRecorder()
	h.Start(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/start", `{"subject":"math"}`))
	assertStatusCode(t, rec, http.StatusCreated)

	var session attendance.Session
	parseJSONResponse(t, rec, &session)
	if session.TeacherID != "teacher-1" || session.Subject != "math" || !session.Active {
		t.Errorf("unexpected session %+v", session)
	}
}

func TestStartSessionConflict(t *testing.T) {
	h, _ := newAttendanceHandler(t)

	rec := httptest.NewRecorder()
	h.Start(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/start", `{"subject":"math"}`))
	assertStatusCode(t, rec, http.StatusCreated)

	rec = httptest.NewRecorder()
	h.Start(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/start", `{"subject":"physics"}`))
	assertStatusCode(t, rec, http.StatusConflict)
}

func TestStartSessionValidation(t *testing.T) {
	h, _ := newAttendanceHandler(t)

	rec := httptest.NewRecorder()
	h.Start(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/start", `{}`))
	assertStatusCode(t, rec, http.StatusBadRequest)

	// No login session at all.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/start", nil)
	h.Start(rec, req)
	assertStatusCode(t, rec, http.StatusUnauthorized)
}

func TestEndSession(t *testing.T) {
	h, manager := newAttendanceHandler(t)

	rec := httptest.NewRecorder()
	h.Start(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/start", `{"subject":"math"}`))
	assertStatusCode(t, rec, http.StatusCreated)

	// Seed the dedup cache; ending the session must clear it.
	h.cache.Record("alice", "Marked")

	rec = httptest.NewRecorder()
	h.End(rec, authedRequest(http.MethodPost, "/api/v1/attendance/end", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var ended attendance.Session
	parseJSONResponse(t, rec, &ended)
	if ended.Active || ended.EndedAt == nil {
		t.Errorf("expected ended session, got %+v", ended)
	}
	if h.cache.Len() != 0 {
		t.Error("ending a session must clear the dedup cache")
	}
	if _, ok := manager.ActiveSessionID("teacher-1"); ok {
		t.Error("active session index should be empty")
	}
}

func TestEndWithoutActiveSession(t *testing.T) {
	h, _ := newAttendanceHandler(t)

	rec := httptest.NewRecorder()
	h.End(rec, authedRequest(http.MethodPost, "/api/v1/attendance/end", nil))
	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestActive(t *testing.T) {
	h, _ := newAttendanceHandler(t)

	rec := httptest.NewRecorder()
	h.Active(rec, authedRequest(http.MethodGet, "/api/v1/attendance/active", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var inactive map[string]any
	parseJSONResponse(t, rec, &inactive)
	if inactive["active"] != false {
		t.Errorf("expected active=false, got %v", inactive)
	}

	rec = httptest.NewRecorder()
	h.Start(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/start", `{"subject":"math"}`))

	rec = httptest.NewRecorder()
	h.Active(rec, authedRequest(http.MethodGet, "/api/v1/attendance/active", nil))
	var active map[string]any
	parseJSONResponse(t, rec, &active)
	if active["active"] != true {
		t.Errorf("expected active=true, got %v", active)
	}
}

func TestManualMark(t *testing.T) {
	h, manager := newAttendanceHandler(t)

	rec := httptest.NewRecorder()
	h.Start(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/start", `{"subject":"math"}`))
	var session attendance.Session
	parseJSONResponse(t, rec, &session)

	rec = httptest.NewRecorder()
	h.Mark(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/mark", `{"student_id":"alice"}`))
	assertStatusCode(t, rec, http.StatusCreated)

	var record attendance.Record
	parseJSONResponse(t, rec, &record)
	if record.StudentID != "alice" || record.StudentName != "Alice A" {
		t.Errorf("unexpected record %+v", record)
	}

	ok, err := manager.HasRecord(context.Background(), session.ID, "alice")
	if err != nil || !ok {
		t.Errorf("expected record in store, got %v err=%v", ok, err)
	}
}

func TestManualMarkWithoutSession(t *testing.T) {
	h, _ := newAttendanceHandler(t)

	rec := httptest.NewRecorder()
	h.Mark(rec, jsonRequest(http.MethodPost, "/api/v1/attendance/mark", `{"student_id":"alice"}`))
	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestSummaryEndpoint(t *testing.T) {
	h, manager := newAttendanceHandler(t)
	ctx := context.Background()

	session, err := manager.Start(ctx, "teacher-1", "jane@school.test", "math")
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	if _, err := manager.Mark(ctx, session.ID, "alice", "Alice A"); err != nil {
		t.Fatalf("failed to mark: %v", err)
	}
	if _, err := manager.End(ctx, session.ID); err != nil {
		t.Fatalf("failed to end: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Summary(rec, authedRequest(http.MethodGet, "/api/v1/attendance/summary?student_id=alice", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var summary map[string]attendance.SubjectSummary
	parseJSONResponse(t, rec, &summary)
	if got := summary["math"]; got.TotalClasses != 1 || got.AttendedClasses != 1 || got.Percentage != 100 {
		t.Errorf("expected 1/1 math classes at 100%%, got %+v", got)
	}
	// Enrolled but no session ever ran.
	if got := summary["physics"]; got.TotalClasses != 0 || got.Percentage != 0 {
		t.Errorf("expected empty physics summary, got %+v", got)
	}

	// Missing student_id parameter.
	rec = httptest.NewRecorder()
	h.Summary(rec, authedRequest(http.MethodGet, "/api/v1/attendance/summary", nil))
	assertStatusCode(t, rec, http.StatusBadRequest)

	// Student unknown to the roster.
	rec = httptest.NewRecorder()
	h.Summary(rec, authedRequest(http.MethodGet, "/api/v1/attendance/summary?student_id=ghost", nil))
	assertStatusCode(t, rec, http.StatusNotFound)
}

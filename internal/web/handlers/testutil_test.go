package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/dedup"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// testRoster creates a roster with one teacher and one student.
func testRoster() *roster.MemoryRoster {
	r := roster.NewMemoryRoster()
	r.AddTeacher(roster.Teacher{ID: "teacher-1", Name: "Jane Teacher", Mail: "jane@school.test"}, "math", "physics")
	r.AddStudent(roster.Student{ID: "alice", Name: "Alice A", Class: "4B"}, "math", "physics")
	return r
}

// testManager creates an attendance manager over a fresh memory store.
func testManager(t *testing.T) *attendance.Manager {
	t.Helper()
	m, err := attendance.NewManager(context.Background(), attendance.NewMemoryStore())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}

func testCache() *dedup.Cache {
	return dedup.New(10, 600*time.Second)
}

// teacherSession returns a login session for the test teacher.
func teacherSession() *middleware.Session {
	return &middleware.Session{
		ID:          "test-session",
		TeacherID:   "teacher-1",
		TeacherName: "Jane Teacher",
		TeacherMail: "jane@school.test",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

// authedRequest creates a request with a teacher session in context.
func authedRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	ctx := middleware.SetSessionInContext(req.Context(), teacherSession())
	return req.WithContext(ctx)
}

// jsonRequest creates an authed request with a JSON body.
func jsonRequest(method, path, body string) *http.Request {
	req := authedRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// stubDetector returns canned faces for register and stream tests.
type stubDetector struct {
	faces []embedder.Face
	err   error
}

func (s *stubDetector) DetectFaces(_ context.Context, _ []byte) ([]embedder.Face, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.faces, nil
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestAttendanceStore(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewAttendanceStore(pool)

	session := &attendance.Session{
		ID:        uuid.NewString(),
		TeacherID: "teacher-1",
		Subject:   "math",
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
		Active:    true,
	}

	t.Run("CreateAndGetSession", func(t *testing.T) {
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		got, err := store.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if got.TeacherID != "teacher-1" || got.Subject != "math" || !got.Active {
			t.Errorf("Unexpected session: %+v", got)
		}
		if got.EndedAt != nil {
			t.Errorf("Active session should have no end time, got %v", got.EndedAt)
		}
	})

	t.Run("GetSessionNotFound", func(t *testing.T) {
		_, err := store.GetSession(ctx, uuid.NewString())
		if !errors.Is(err, attendance.ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("ActiveSessions", func(t *testing.T) {
		active, err := store.ActiveSessions(ctx)
		if err != nil {
			t.Fatalf("Failed to list active sessions: %v", err)
		}
		if len(active) != 1 || active[0].ID != session.ID {
			t.Errorf("Expected 1 active session %s, got %+v", session.ID, active)
		}
	})

	t.Run("RecordsAndHasRecord", func(t *testing.T) {
		record := &attendance.Record{
			ID:          uuid.NewString(),
			SessionID:   session.ID,
			StudentID:   "alice",
			StudentName: "Alice A",
			MarkedAt:    time.Now().UTC().Truncate(time.Microsecond),
		}
		if err := store.AppendRecord(ctx, record); err != nil {
			t.Fatalf("Failed to append record: %v", err)
		}
		// Repeated marks append repeated rows.
		record.ID = uuid.NewString()
		if err := store.AppendRecord(ctx, record); err != nil {
			t.Fatalf("Failed to append second record: %v", err)
		}

		records, err := store.RecordsBySession(ctx, session.ID)
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected 2 records, got %d", len(records))
		}

		has, err := store.HasRecord(ctx, session.ID, "alice")
		if err != nil || !has {
			t.Errorf("Expected HasRecord true, got %v err=%v", has, err)
		}
		has, err = store.HasRecord(ctx, session.ID, "bob")
		if err != nil || has {
			t.Errorf("Expected HasRecord false, got %v err=%v", has, err)
		}
	})

	t.Run("EndSession", func(t *testing.T) {
		endedAt := time.Now().UTC().Truncate(time.Microsecond)
		if err := store.EndSession(ctx, session.ID, endedAt); err != nil {
			t.Fatalf("Failed to end session: %v", err)
		}

		got, err := store.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if got.Active || got.EndedAt == nil {
			t.Errorf("Expected ended session, got %+v", got)
		}

		if err := store.EndSession(ctx, uuid.NewString(), endedAt); !errors.Is(err, attendance.ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("SessionsBySubject", func(t *testing.T) {
		other := &attendance.Session{
			ID:        uuid.NewString(),
			TeacherID: "teacher-1",
			Subject:   "physics",
			StartedAt: time.Now().UTC(),
			Active:    true,
		}
		if err := store.CreateSession(ctx, other); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		math, err := store.SessionsBySubject(ctx, "math")
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		if len(math) != 1 || math[0].ID != session.ID {
			t.Errorf("Expected only the math session, got %+v", math)
		}
	})
}

func TestFaceVectorRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewFaceVectorRepository(pool)

	embedding := make([]float32, 512)
	for i := range embedding {
		embedding[i] = float32(i) / 512.0
	}

	t.Run("SaveAndLoadAll", func(t *testing.T) {
		if err := repo.Save(ctx, "alice", embedding); err != nil {
			t.Fatalf("Failed to save vector: %v", err)
		}
		if err := repo.Save(ctx, "bob", embedding); err != nil {
			t.Fatalf("Failed to save vector: %v", err)
		}

		vectors, err := repo.LoadAll(ctx)
		if err != nil {
			t.Fatalf("Failed to load vectors: %v", err)
		}
		if len(vectors) != 2 {
			t.Fatalf("Expected 2 vectors, got %d", len(vectors))
		}
		// Insertion order is preserved for index rebuilds.
		if vectors[0].StudentID != "alice" || vectors[1].StudentID != "bob" {
			t.Errorf("Unexpected order: %s, %s", vectors[0].StudentID, vectors[1].StudentID)
		}
		if len(vectors[0].Embedding) != 512 {
			t.Errorf("Expected 512 dimensions, got %d", len(vectors[0].Embedding))
		}
	})

	t.Run("Count", func(t *testing.T) {
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2, got %d", count)
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	applied, err := pool.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{
		"001_create_sessions.sql",
		"002_create_attendance_records.sql",
		"003_create_face_vectors.sql",
		"004_create_indexes.sql",
	}

	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}

	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}
}

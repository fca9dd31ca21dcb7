package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// StoredVector is one registered face embedding with its owner.
type StoredVector struct {
	StudentID string
	Embedding []float32
}

// FaceVectorRepository is the durable log of registered face embeddings.
// The in-memory index snapshot is the hot path; this log allows rebuilding
// the index from scratch when the snapshot is lost.
type FaceVectorRepository struct {
	pool *Pool
}

// NewFaceVectorRepository creates a face vector repository.
func NewFaceVectorRepository(pool *Pool) *FaceVectorRepository {
	return &FaceVectorRepository{pool: pool}
}

// Save appends one face embedding for a student.
func (r *FaceVectorRepository) Save(ctx context.Context, studentID string, embedding []float32) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_vectors (student_id, embedding)
		VALUES ($1, $2)
	`, studentID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("insert face vector: %w", err)
	}
	return nil
}

// LoadAll returns every stored vector in insertion order, matching the
// ordinal order the index assigns on rebuild.
func (r *FaceVectorRepository) LoadAll(ctx context.Context) ([]StoredVector, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT student_id, embedding
		FROM face_vectors
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query face vectors: %w", err)
	}
	defer rows.Close()

	var vectors []StoredVector
	for rows.Next() {
		var v StoredVector
		var vec pgvector.Vector
		if err := rows.Scan(&v.StudentID, &vec); err != nil {
			return nil, fmt.Errorf("scan face vector: %w", err)
		}
		v.Embedding = vec.Slice()
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face vectors: %w", err)
	}
	return vectors, nil
}

// Count returns the number of stored face vectors.
func (r *FaceVectorRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_vectors").Scan(&count); err != nil {
		return 0, fmt.Errorf("count face vectors: %w", err)
	}
	return count, nil
}

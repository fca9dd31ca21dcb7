package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// maxUploadSize limits registration photos to 16 MB.
const maxUploadSize = 16 << 20

// VectorLog persists registered embeddings outside the index snapshot.
// Optional; registration works without it.
type VectorLog interface {
	Save(ctx context.Context, studentID string, embedding []float32) error
}

// RegisterHandler handles face registration uploads.
type RegisterHandler struct {
	detector  pipeline.FaceDetector
	index     *faceindex.Index
	vectorLog VectorLog
}

// NewRegisterHandler creates a new register handler. vectorLog may be nil.
func NewRegisterHandler(detector pipeline.FaceDetector, index *faceindex.Index, vectorLog VectorLog) *RegisterHandler {
	return &RegisterHandler{
		detector:  detector,
		index:     index,
		vectorLog: vectorLog,
	}
}

// RegisterResponse represents a successful registration.
type RegisterResponse struct {
	Success         bool   `json:"success"`
	StudentID       string `json:"student_id"`
	RegisteredFaces int    `json:"registered_faces"`
}

// Register accepts a multipart photo upload and adds the largest detected
// face to the index under the given student id.
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	studentID := r.FormValue("student_id")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read file")
		return
	}

	faces, err := h.detector.DetectFaces(r.Context(), imageData)
	if err != nil {
		if errors.Is(err, embedder.ErrNoFaceDetected) {
			respondError(w, http.StatusUnprocessableEntity, "no face detected in the photo")
			return
		}
		log.Printf("face detection failed during registration: %v", err)
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}

	face, ok := embedder.LargestFace(faces)
	if !ok {
		respondError(w, http.StatusUnprocessableEntity, "no face detected in the photo")
		return
	}

	if err := h.index.Add([][]float32{face.Embedding}, []string{studentID}); err != nil {
		log.Printf("index add failed for student %s: %v", sanitizeForLog(studentID), err)
		respondError(w, http.StatusInternalServerError, "failed to register face")
		return
	}

	if h.vectorLog != nil {
		if err := h.vectorLog.Save(r.Context(), studentID, face.Embedding); err != nil {
			// The index already holds the vector; the log is best effort.
			log.Printf("vector log write failed for student %s: %v", sanitizeForLog(studentID), err)
		}
	}

	log.Printf("registered face for student %s (%d vectors total)", sanitizeForLog(studentID), h.index.Count())
	respondJSON(w, http.StatusCreated, RegisterResponse{
		Success:         true,
		StudentID:       studentID,
		RegisteredFaces: h.index.Count(),
	})
}

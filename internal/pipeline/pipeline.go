// Package pipeline turns raw camera frames into attendance records and
// annotated frames for the live preview.
package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/dedup"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// Status messages attached to processed frames.
const (
	StatusMarked        = "Marked"
	StatusAlreadyMarked = "Already Marked"
	StatusUnknown       = "Unknown"

	unknownLabel = "Person"
)

// FaceDetector is the slice of the embedding client the pipeline needs.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]embedder.Face, error)
}

// Result is the outcome of processing one frame.
type Result struct {
	// Frame is the JPEG to show in the preview, annotated when a face
	// was found.
	Frame []byte
	// Status maps a display label (student name or "Person") to a
	// message ("Marked", "Already Marked", "Unknown").
	Status map[string]string
}

// Pipeline processes frames for one camera feed. Frames from different
// connections may be processed concurrently; all shared state lives in
// the resolver, cache and manager, which lock internally.
type Pipeline struct {
	detector FaceDetector
	resolver *faceindex.Resolver
	cache    *dedup.Cache
	manager  *attendance.Manager
	roster   roster.Roster

	markThreshold float64

	frames atomic.Uint64
}

// New creates a frame pipeline.
func New(detector FaceDetector, resolver *faceindex.Resolver, cache *dedup.Cache, manager *attendance.Manager, r roster.Roster, markThreshold float64) *Pipeline {
	return &Pipeline{
		detector:      detector,
		resolver:      resolver,
		cache:         cache,
		manager:       manager,
		roster:        r,
		markThreshold: markThreshold,
	}
}

// Process runs one frame through detect, resolve, dedup and mark. It
// never fails the stream: every per-frame error degrades to an
// unannotated or red-boxed frame with an "Unknown" status.
func (p *Pipeline) Process(ctx context.Context, teacherID string, frame []byte) Result {
	p.frames.Add(1)

	unknown := Result{Frame: frame, Status: map[string]string{unknownLabel: StatusUnknown}}

	img, err := decodeFrame(frame)
	if err != nil {
		log.Printf("frame decode failed: %v", err)
		return unknown
	}
	img = downscale(img)

	scaled, err := encodeJPEG(img)
	if err != nil {
		log.Printf("frame encode failed: %v", err)
		return unknown
	}
	unknown.Frame = scaled

	faces, err := p.detector.DetectFaces(ctx, scaled)
	if err != nil {
		if !errors.Is(err, embedder.ErrNoFaceDetected) {
			log.Printf("face detection failed: %v", err)
		}
		// No face in frame, nothing to annotate.
		return unknown
	}

	face, ok := embedder.LargestFace(faces)
	if !ok {
		return unknown
	}

	studentID, ok := p.resolver.Resolve(face.Embedding, p.markThreshold)
	if !ok {
		return p.annotated(img, face, colorUnmatched, unknownLabel, StatusUnknown)
	}

	name := p.displayName(ctx, studentID)

	if label, ok := p.cache.Lookup(studentID); ok {
		return p.annotated(img, face, colorMatched, name, label)
	}

	sessionID, ok := p.manager.ActiveSessionID(teacherID)
	if !ok {
		// Recognized, but nothing to mark against.
		return p.annotated(img, face, colorUnmatched, unknownLabel, StatusUnknown)
	}

	already, err := p.manager.HasRecord(ctx, sessionID, studentID)
	if err != nil {
		log.Printf("record lookup failed for session %s: %v", sessionID, err)
		return p.annotated(img, face, colorUnmatched, unknownLabel, StatusUnknown)
	}
	if already {
		p.cache.Record(studentID, StatusAlreadyMarked)
		return p.annotated(img, face, colorMatched, name, StatusAlreadyMarked)
	}

	if _, err := p.manager.Mark(ctx, sessionID, studentID, name); err != nil {
		log.Printf("mark failed for session %s: %v", sessionID, err)
		return p.annotated(img, face, colorUnmatched, unknownLabel, StatusUnknown)
	}
	p.cache.Record(studentID, StatusMarked)
	return p.annotated(img, face, colorMatched, name, StatusMarked)
}

// annotated draws the bounding box and re-encodes the frame. An encode
// failure falls back to the status without annotation.
func (p *Pipeline) annotated(img image.Image, face embedder.Face, c color.Color, label, message string) Result {
	status := map[string]string{label: message}

	encoded, err := encodeJPEG(drawBorder(img, face.BBox, c))
	if err != nil {
		log.Printf("frame annotation failed: %v", err)
		plain, perr := encodeJPEG(img)
		if perr != nil {
			return Result{Status: status}
		}
		return Result{Frame: plain, Status: status}
	}
	return Result{Frame: encoded, Status: status}
}

// displayName resolves the student's roster name, falling back to the
// raw id when the roster does not know them.
func (p *Pipeline) displayName(ctx context.Context, studentID string) string {
	student, err := p.roster.Student(ctx, studentID)
	if err != nil {
		return studentID
	}
	return student.Name
}

// FramesProcessed returns the total number of frames seen.
func (p *Pipeline) FramesProcessed() uint64 {
	return p.frames.Load()
}

// LogStats logs the frame rate once a minute until ctx is cancelled.
func (p *Pipeline) LogStats(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	last := p.frames.Load()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := p.frames.Load()
			log.Printf("processed %d frames in the last minute (%.2f fps)", current-last, float64(current-last)/60)
			last = current
		}
	}
}

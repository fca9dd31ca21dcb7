package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/faceindex"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// StatsHandler reports operational counters.
type StatsHandler struct {
	index    *faceindex.Index
	pipeline *pipeline.Pipeline
	stream   *StreamHandler
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(index *faceindex.Index, p *pipeline.Pipeline, stream *StreamHandler) *StatsHandler {
	return &StatsHandler{
		index:    index,
		pipeline: p,
		stream:   stream,
	}
}

// StatsResponse represents the stats payload.
type StatsResponse struct {
	RegisteredFaces  int    `json:"registered_faces"`
	FramesProcessed  uint64 `json:"frames_processed"`
	ConnectedClients int    `json:"connected_clients"`
}

// Get returns the current counters.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatsResponse{
		RegisteredFaces:  h.index.Count(),
		FramesProcessed:  h.pipeline.FramesProcessed(),
		ConnectedClients: h.stream.ClientCount(),
	})
}

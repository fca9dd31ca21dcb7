package handlers

import (
	"encoding/base64"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// StreamHandler processes camera frames over a websocket. One goroutine
// per connection; frames on one connection are handled in arrival order,
// connections run concurrently.
type StreamHandler struct {
	pipeline *pipeline.Pipeline
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(p *pipeline.Pipeline) *StreamHandler {
	return &StreamHandler{
		pipeline: p,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 20,
			WriteBufferSize: 1 << 20,
			// The session cookie already gates the endpoint.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// processedFrame is the reply for each inbound frame.
type processedFrame struct {
	Frame            string            `json:"frame"`
	AttendanceStatus map[string]string `json:"attendance_status"`
}

// Stream upgrades the connection and processes frames until the client
// disconnects.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	h.addClient(conn)
	defer h.removeClient(conn)

	log.Printf("stream connected for teacher %s (%d clients)", sanitizeForLog(session.TeacherID), h.ClientCount())

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("stream read error: %v", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		result := h.pipeline.Process(r.Context(), session.TeacherID, data)
		reply := processedFrame{
			Frame:            base64.StdEncoding.EncodeToString(result.Frame),
			AttendanceStatus: result.Status,
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("stream write error: %v", err)
			return
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (h *StreamHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *StreamHandler) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *StreamHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

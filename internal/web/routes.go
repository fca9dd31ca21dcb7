package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.deps.Roster, s.sessionManager)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Manager, s.deps.Cache, s.deps.Roster)
	registerHandler := handlers.NewRegisterHandler(s.deps.Detector, s.deps.Index, s.deps.VectorLog)
	subjectsHandler := handlers.NewSubjectsHandler(s.deps.Roster)
	streamHandler := handlers.NewStreamHandler(s.deps.Pipeline)
	statsHandler := handlers.NewStatsHandler(s.deps.Index, s.deps.Pipeline, streamHandler)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Everything else requires a logged-in teacher
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			// Attendance sessions
			r.Post("/attendance/start", attendanceHandler.Start)
			r.Post("/attendance/end", attendanceHandler.End)
			r.Post("/attendance/mark", attendanceHandler.Mark)
			r.Get("/attendance/active", attendanceHandler.Active)
			r.Get("/attendance/summary", attendanceHandler.Summary)

			// Face registration
			r.Post("/register", registerHandler.Register)

			// Roster
			r.Get("/subjects", subjectsHandler.List)

			// Camera stream
			r.Get("/stream", streamHandler.Stream)

			// Stats
			r.Get("/stats", statsHandler.Get)
		})
	})
}

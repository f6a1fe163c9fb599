package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - live job progress feed
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Search jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.JobRoutesHandler) // GET /{id}, GET /{id}/creators

	// API routes - Continuation ingress (HMAC-signed, verified in middleware)
	mux.HandleFunc("/api/continuations", s.signedRoute(s.app.ContinuationHandler.EnqueueHandler))

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)

	return mux
}

// handleJobsRoute dispatches /api/jobs by method.
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.app.JobHandler.CreateJobHandler(w, r)
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

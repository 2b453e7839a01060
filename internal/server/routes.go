package server

import (
	"net/http"

	"github.com/ahmethakanbesel/candle-csv/internal/auth"
	"github.com/ahmethakanbesel/candle-csv/internal/download"
	"github.com/ahmethakanbesel/candle-csv/internal/job"
)

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(downloads *download.Service, jobs *job.Service, sessions *auth.Sessions) http.Handler {
	return newMux(downloads, jobs, sessions)
}

func newMux(downloads *download.Service, jobs *job.Service, sessions *auth.Sessions) http.Handler {
	h := &handler{
		downloads: downloads,
		jobs:      jobs,
		sessions:  sessions,
	}
	gate := requireSession(sessions)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)

	mux.Handle("GET /api/v1/timeframes", gate(http.HandlerFunc(h.listTimeframes)))
	mux.Handle("POST /api/v1/downloads", gate(http.HandlerFunc(h.submit)))
	mux.Handle("GET /api/v1/jobs", gate(http.HandlerFunc(h.listJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", gate(http.HandlerFunc(h.getJob)))
	mux.Handle("DELETE /api/v1/jobs/{id}", gate(http.HandlerFunc(h.cancelJob)))
	mux.Handle("GET /api/v1/jobs/{id}/file", gate(http.HandlerFunc(h.downloadFile)))

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}

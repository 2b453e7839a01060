package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ahmethakanbesel/candle-csv/internal/auth"
	"github.com/ahmethakanbesel/candle-csv/internal/download"
	"github.com/ahmethakanbesel/candle-csv/internal/job"
)

type Server struct {
	srv *http.Server
}

// New creates a server. baseCtx becomes the base context of every request,
// so cancelling it aborts in-flight requests during shutdown.
func New(baseCtx context.Context, port string, downloads *download.Service, jobs *job.Service, sessions *auth.Sessions) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: newMux(downloads, jobs, sessions),
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       120 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}

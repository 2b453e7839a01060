package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/candle-csv/internal/auth"
	"github.com/ahmethakanbesel/candle-csv/internal/config"
	"github.com/ahmethakanbesel/candle-csv/internal/download"
	"github.com/ahmethakanbesel/candle-csv/internal/exchange"
	"github.com/ahmethakanbesel/candle-csv/internal/export"
	"github.com/ahmethakanbesel/candle-csv/internal/fetch"
	"github.com/ahmethakanbesel/candle-csv/internal/job"
	"github.com/ahmethakanbesel/candle-csv/internal/platform/sqlite"
	jobrepo "github.com/ahmethakanbesel/candle-csv/internal/repository/job"
	"github.com/ahmethakanbesel/candle-csv/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := setupLogger(os.Stderr, cfg.Log); err != nil {
		return err
	}

	// Root context: cancelled on SIGINT/SIGTERM so running jobs stop at their
	// next page and in-flight requests are aborted.
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	writer, err := export.NewWriter(cfg.OutputDir)
	if err != nil {
		return err
	}

	client := exchange.NewBinance(
		exchange.WithBaseURL(cfg.Exchange.BaseURL),
		exchange.WithHTTPClient(&http.Client{Timeout: cfg.Exchange.HTTPTimeout}),
		exchange.WithRateLimit(cfg.Exchange.RateLimitPerSec),
		exchange.WithRetries(cfg.Exchange.Retries),
	)

	downloads := download.NewService(store,
		fetch.NewResolver(client),
		fetch.NewPaginator(client,
			fetch.WithPageSize(cfg.Pagination.PageSize),
			fetch.WithPageDelay(cfg.Pagination.PageDelay),
		),
		writer,
		validator.New(),
	)
	runner := job.NewRunner(rootCtx, store, downloads, cfg.MaxConcurrentJobs, job.WithTimeout(cfg.JobTimeout))
	downloads.SetRunner(runner)
	jobs := job.NewService(store, runner)

	sessions, err := auth.NewSessions(cfg.Auth.Password, cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	if !sessions.Enabled() {
		slog.Warn("APP_PASSWORD not set; API is open to anyone who can reach it")
	}

	srv := server.New(rootCtx, cfg.Port, downloads, jobs, sessions)

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stop()
		return shutdown(srv, runner, 10*time.Second)
	})

	slog.Info("candle-csv started", "port", cfg.Port, "store", cfg.JobStore, "output", writer.Dir())
	err = g.Wait()
	slog.Info("server stopped")
	return err
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type waiter interface {
	Wait()
}

// shutdown stops accepting requests before waiting for jobs, so no job can
// be started once the wait begins. Jobs observe cancellation at their next
// page and record it before the store is closed.
func shutdown(srv shutdowner, jobs waiter, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	jobs.Wait()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (job.Store, func(), error) {
	if cfg.JobStore != config.StoreSQLite {
		return job.NewMemoryStore(), func() {}, nil
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	store := jobrepo.NewStore(db.DB)

	n, err := store.FailInterrupted(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if n > 0 {
		slog.Warn("marked interrupted jobs as failed", "count", n)
	}
	return store, func() { _ = db.Close() }, nil
}

func setupLogger(w io.Writer, cfg config.LogConfig) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

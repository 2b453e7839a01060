// Package download runs candle download jobs: it accepts a request, fetches
// the window from the exchange in the background and serves the CSV.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
	"github.com/ahmethakanbesel/candle-csv/internal/candle"
	"github.com/ahmethakanbesel/candle-csv/internal/export"
	"github.com/ahmethakanbesel/candle-csv/internal/fetch"
	"github.com/ahmethakanbesel/candle-csv/internal/job"
)

// Starter runs a job in the background.
type Starter interface {
	Start(j *job.Job)
}

type Service struct {
	store     job.Store
	resolver  *fetch.Resolver
	paginator *fetch.Paginator
	writer    *export.Writer
	validate  *validator.Validate
	runner    Starter
}

func NewService(store job.Store, resolver *fetch.Resolver, paginator *fetch.Paginator, writer *export.Writer, validate *validator.Validate) *Service {
	return &Service{
		store:     store,
		resolver:  resolver,
		paginator: paginator,
		writer:    writer,
		validate:  validate,
	}
}

// SetRunner sets the runner that receives submitted jobs. The runner in
// turn calls Process, so it is wired after construction.
func (s *Service) SetRunner(r Starter) { s.runner = r }

func (s *Service) Timeframes() []TimeframeInfo {
	codes := candle.Timeframes()
	out := make([]TimeframeInfo, 0, len(codes))
	for _, code := range codes {
		tf, _ := candle.LookupTimeframe(code)
		out = append(out, TimeframeInfo{Code: tf.Code, Interval: tf.Interval, Millis: tf.Millis()})
	}
	return out
}

// Submit validates req, records a new job in the starting state and hands
// it to the runner. The returned job is a snapshot taken before the runner
// starts.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*job.Job, error) {
	r, verr := req.Parse(s.validate)
	if verr != nil {
		return nil, verr
	}
	if s.runner == nil {
		return nil, apperror.New(apperror.Internal, "job runner not configured")
	}

	now := time.Now().UTC()
	j := &job.Job{
		ID:        uuid.NewString(),
		Status:    job.StatusStarting,
		Symbol:    r.Symbol,
		Timeframe: r.Timeframe.Code,
		Start:     r.Start,
		End:       r.End,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.store.CreateIfAbsent(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if !created {
		return nil, apperror.New(apperror.Conflict, "job id already in use")
	}

	snapshot := *j
	s.runner.Start(j)
	slog.Info("download submitted", "job", j.ID, "symbol", j.Symbol, "timeframe", j.Timeframe,
		"start", time.UnixMilli(j.Start).UTC(), "end", time.UnixMilli(j.End).UTC())
	return &snapshot, nil
}

// Process implements job.Processor. It owns j until it returns and always
// leaves it done or failed.
func (s *Service) Process(ctx context.Context, j *job.Job) error {
	// Store writes must land even after ctx is cancelled, so the failure
	// itself is recorded.
	storeCtx := context.WithoutCancel(ctx)

	if err := j.Run(); err != nil {
		return err
	}
	if err := s.store.Set(storeCtx, j); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	tf, ok := candle.LookupTimeframe(j.Timeframe)
	if !ok {
		return s.fail(storeCtx, j, apperror.New(apperror.BadRequest, fmt.Sprintf("Unsupported timeframe: %s", j.Timeframe)))
	}
	req := candle.Request{Symbol: j.Symbol, Timeframe: tf, Start: j.Start, End: j.End}

	symbol, err := s.resolver.Resolve(ctx, j.Symbol, tf)
	if err != nil {
		return s.fail(storeCtx, j, err)
	}
	j.ResolvedSymbol = symbol
	if err := s.store.Set(storeCtx, j); err != nil {
		return fmt.Errorf("store resolved symbol: %w", err)
	}
	slog.Info("symbol resolved", "job", j.ID, "input", j.Symbol, "symbol", symbol)

	candles, err := s.paginator.Collect(ctx, symbol, req, func(p int) {
		before := j.Progress
		if j.SetProgress(p) != nil || j.Progress == before {
			return
		}
		if err := s.store.Set(storeCtx, j); err != nil {
			slog.Warn("store job progress", "job", j.ID, "error", err)
		}
	})
	if err != nil {
		return s.fail(storeCtx, j, err)
	}

	name := export.FileName(symbol, tf.Code, j.Start, j.End, j.ID)
	if err := s.writer.Write(name, candles); err != nil {
		return s.fail(storeCtx, j, apperror.Wrap(apperror.IO, err, fmt.Sprintf("Error writing CSV: %v", err)))
	}

	if err := j.Complete(name, len(candles)); err != nil {
		return err
	}
	if err := s.store.Set(storeCtx, j); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	slog.Info("download finished", "job", j.ID, "file", name, "rows", len(candles))
	return nil
}

func (s *Service) fail(ctx context.Context, j *job.Job, cause error) error {
	if err := j.Fail(cause); err != nil {
		return err
	}
	if err := s.store.Set(ctx, j); err != nil {
		slog.Error("store failed job", "job", j.ID, "error", err)
	}
	slog.Warn("download failed", "job", j.ID, "kind", j.ErrorKind, "error", j.Error)
	return cause
}

// Retrieve locates the CSV of a finished job.
func (s *Service) Retrieve(ctx context.Context, req job.GetJobRequest) (*File, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	j, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StatusDone || j.Filename == "" {
		return nil, apperror.New(apperror.Conflict, "file not ready")
	}

	path, err := s.writer.Path(j.Filename)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, err, "invalid file name")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.New(apperror.NotFound, "file missing")
		}
		return nil, fmt.Errorf("stat csv: %w", err)
	}
	return &File{Path: path, Name: j.Filename}, nil
}

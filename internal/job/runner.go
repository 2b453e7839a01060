package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Processor handles execution of a started job. It owns the job until it
// returns and is responsible for leaving it in a terminal state.
type Processor interface {
	Process(ctx context.Context, j *Job) error
}

// Runner starts one goroutine per job. At most workers jobs process at the
// same time; the rest wait for a slot in the starting state.
type Runner struct {
	ctx       context.Context
	store     Store
	processor Processor
	sem       chan struct{}
	timeout   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout bounds each job's total run time. Zero disables the bound.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// NewRunner creates a runner whose jobs are cancelled when ctx is.
func NewRunner(ctx context.Context, store Store, processor Processor, workers int, opts ...RunnerOption) *Runner {
	if workers <= 0 {
		workers = 1
	}
	r := &Runner{
		ctx:       ctx,
		store:     store,
		processor: processor,
		sem:       make(chan struct{}, workers),
		cancels:   make(map[string]context.CancelFunc),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start processes j in the background. Non-blocking.
func (r *Runner) Start(j *Job) {
	ctx, cancel := context.WithCancel(r.ctx)
	if r.timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, r.timeout)
		parent := cancel
		cancel = func() { stop(); parent() }
	}

	r.mu.Lock()
	r.cancels[j.ID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.forget(j.ID)

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			// Cancelled while queued: let the processor record it.
		}
		r.run(ctx, j)
	}()
}

// Cancel signals the job's goroutine to stop. It reports whether the job
// was known to the runner.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every started job has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) forget(id string) {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	delete(r.cancels, id)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

func (r *Runner) run(ctx context.Context, j *Job) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("runner: panic while processing job", "job", j.ID, "panic", rec)
			r.failAfterPanic(j.ID, fmt.Errorf("internal error: %v", rec))
		}
	}()

	slog.Info("runner: processing job", "job", j.ID, "symbol", j.Symbol, "timeframe", j.Timeframe)
	if err := r.processor.Process(ctx, j); err != nil {
		slog.Error("runner: process job", "job", j.ID, "error", err)
	}
}

// failAfterPanic moves a job whose processor panicked into the error
// state, unless it already finished.
func (r *Runner) failAfterPanic(id string, cause error) {
	ctx := context.WithoutCancel(r.ctx)
	j, err := r.store.Get(ctx, id)
	if err != nil {
		slog.Error("runner: load job after panic", "job", id, "error", err)
		return
	}
	if j.Fail(cause) != nil {
		return
	}
	if err := r.store.Set(ctx, j); err != nil {
		slog.Error("runner: store failed job", "job", id, "error", err)
	}
}

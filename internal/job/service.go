package job

import (
	"context"
	"log/slog"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
)

// Canceller stops a running job.
type Canceller interface {
	Cancel(id string) bool
}

type Service struct {
	store  Store
	runner Canceller
}

func NewService(store Store, runner Canceller) *Service {
	return &Service{store: store, runner: runner}
}

func (s *Service) Get(ctx context.Context, req GetJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, req.ID)
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.store.List(ctx)
}

// Cancel asks the job's goroutine to stop. The job reaches the error state
// once the goroutine observes the request.
func (s *Service) Cancel(ctx context.Context, req GetJobRequest) (*Job, error) {
	j, err := s.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	if j.Status.Terminal() {
		return nil, apperror.New(apperror.Conflict, "job already finished")
	}
	if !s.runner.Cancel(j.ID) {
		return nil, apperror.New(apperror.Conflict, "job is not running")
	}
	slog.Info("job cancellation requested", "job", j.ID)
	return j, nil
}

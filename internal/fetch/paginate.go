package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
	"github.com/ahmethakanbesel/candle-csv/internal/candle"
	"github.com/ahmethakanbesel/candle-csv/internal/exchange"
)

const (
	DefaultPageSize  = 1000
	DefaultPageDelay = 50 * time.Millisecond
)

// Paginator walks the exchange's history for a window, one page at a time.
type Paginator struct {
	client   exchange.Client
	pageSize int
	delay    time.Duration
}

type PaginatorOption func(*Paginator)

// WithPageSize sets the number of candles requested per page.
func WithPageSize(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithPageDelay sets the pause between pages. It is applied on top of any
// rate limiting inside the client.
func WithPageDelay(d time.Duration) PaginatorOption {
	return func(p *Paginator) {
		if d >= 0 {
			p.delay = d
		}
	}
}

func NewPaginator(client exchange.Client, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		client:   client,
		pageSize: DefaultPageSize,
		delay:    DefaultPageDelay,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Progress is the share of [start, end] covered by cursor, as a percentage
// capped at 99. 100 is reserved for a finished job.
func Progress(cursor, start, end int64) int {
	span := max(end-start, 1)
	pct := (cursor - start) * 100 / span
	return int(min(max(pct, 0), 99))
}

// Collect returns the candles of req's window in strictly ascending time
// order, every one within [req.Start, req.End]. report, when non-nil, is
// called with the progress before each page.
func (p *Paginator) Collect(ctx context.Context, symbol string, req candle.Request, report func(int)) ([]candle.Candle, error) {
	step := req.Timeframe.Millis()
	// The exchange has nothing before the epoch and reads a negative since
	// as a request for the latest candles.
	cursor := max(req.Start, 0)
	var out []candle.Candle

	for page := 0; cursor < req.End; page++ {
		if err := ctx.Err(); err != nil {
			return nil, stopped(err)
		}
		if report != nil {
			report(Progress(cursor, req.Start, req.End))
		}

		chunk, err := p.client.FetchCandles(ctx, symbol, req.Timeframe, cursor, p.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stopped(ctx.Err())
			}
			return nil, apperror.Wrap(apperror.Fetch, err, fmt.Sprintf("Error fetching data: %v", err))
		}
		if len(chunk) == 0 {
			break
		}

		for _, c := range chunk {
			if c.Time < req.Start || c.Time > req.End {
				continue
			}
			if len(out) == 0 || c.Time > out[len(out)-1].Time {
				out = append(out, c)
			}
		}

		last := chunk[len(chunk)-1].Time
		next := last + step
		slog.Debug("fetched page", "symbol", symbol, "page", page, "size", len(chunk), "next", next, "accumulated", len(out))

		// Stop once a page reaches past the window or fails to move the
		// cursor forward.
		if last >= req.End || next <= cursor {
			break
		}
		cursor = next
		if err := pause(ctx, p.delay); err != nil {
			return nil, stopped(err)
		}
	}
	return out, nil
}

// stopped converts a context error into the job's cancellation error.
func stopped(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Wrap(apperror.Cancelled, err, "job timed out")
	}
	return apperror.Wrap(apperror.Cancelled, err, "job cancelled")
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

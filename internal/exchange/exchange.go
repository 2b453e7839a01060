// Package exchange wraps the remote candle service. It is the only place that
// performs network I/O for a download job.
package exchange

import (
	"context"

	"github.com/ahmethakanbesel/candle-csv/internal/candle"
)

// Latest, passed as since, asks for the most recent candles instead of a
// history page.
const Latest int64 = -1

// Client fetches up to limit candles whose open time is at or after since,
// oldest first. A negative since asks for the most recent candles; zero is
// the epoch.
type Client interface {
	FetchCandles(ctx context.Context, symbol string, tf candle.Timeframe, since int64, limit int) ([]candle.Candle, error)
}

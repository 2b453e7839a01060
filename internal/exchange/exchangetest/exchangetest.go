// Package exchangetest provides an in-memory exchange.Client for tests.
package exchangetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ahmethakanbesel/candle-csv/internal/candle"
)

// Call records one FetchCandles invocation.
type Call struct {
	Symbol string
	Since  int64
	Limit  int
}

// Exchange serves candles from memory. Symbols are matched exactly; any
// other symbol fails the way an exchange rejects an unknown market.
type Exchange struct {
	mu sync.Mutex

	markets map[string][]candle.Candle
	// overlap makes every paged response start with the candle just before
	// since, the way some exchanges repeat the boundary bar.
	overlap bool
	// failures maps a 1-based call number to the error it returns.
	failures map[int]error
	// block, when set, makes paged (since >= 0) calls wait for ctx.
	block bool
	calls []Call
}

func New() *Exchange {
	return &Exchange{
		markets:  make(map[string][]candle.Candle),
		failures: make(map[int]error),
	}
}

// AddMarket registers candles under symbol. Candles must be ascending.
func (e *Exchange) AddMarket(symbol string, candles []candle.Candle) *Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markets[symbol] = candles
	return e
}

// RepeatBoundary enables overlapping pages.
func (e *Exchange) RepeatBoundary() *Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overlap = true
	return e
}

// FailCall makes the n-th call (1-based) return err.
func (e *Exchange) FailCall(n int, err error) *Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[n] = err
	return e
}

// BlockPages makes paged calls block until their context is done.
func (e *Exchange) BlockPages() *Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.block = true
	return e
}

// Calls returns a copy of the recorded calls.
func (e *Exchange) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

func (e *Exchange) FetchCandles(ctx context.Context, symbol string, _ candle.Timeframe, since int64, limit int) ([]candle.Candle, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Symbol: symbol, Since: since, Limit: limit})
	n := len(e.calls)
	failure := e.failures[n]
	series, ok := e.markets[symbol]
	overlap := e.overlap
	block := e.block
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, fmt.Errorf("binance does not have market symbol %s", symbol)
	}
	if block && since >= 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if limit <= 0 {
		limit = 1000
	}

	if since < 0 {
		from := max(len(series)-limit, 0)
		return append([]candle.Candle(nil), series[from:]...), nil
	}

	first := len(series)
	for i, c := range series {
		if c.Time >= since {
			first = i
			break
		}
	}
	if overlap && first > 0 {
		first--
	}
	last := min(first+limit, len(series))
	return append([]candle.Candle(nil), series[first:last]...), nil
}

// Series builds n consecutive candles starting at start, step milliseconds
// apart. Prices are derived from the index so rows are distinguishable.
func Series(start, step int64, n int) []candle.Candle {
	out := make([]candle.Candle, n)
	for i := range n {
		base := decimal.NewFromInt(int64(100 + i))
		out[i] = candle.Candle{
			Time:   start + int64(i)*step,
			Open:   base,
			High:   base.Add(decimal.NewFromFloat(1.5)),
			Low:    base.Sub(decimal.NewFromFloat(0.5)),
			Close:  base.Add(decimal.NewFromFloat(0.25)),
			Volume: decimal.NewFromInt(int64(10 * (i + 1))),
		}
	}
	return out
}

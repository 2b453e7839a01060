package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/ahmethakanbesel/candle-csv/internal/candle"
)

const (
	defaultBaseURL   = "https://api.binance.com"
	defaultRateLimit = 20 // requests per second
	defaultRetries   = 2
	defaultBackoff   = 500 * time.Millisecond
	maxPageSize      = 1000
)

// Binance fetches spot klines through the go-binance SDK. All calls share a
// client-side rate limiter; transient failures are retried here so that
// callers only ever see terminal errors.
type Binance struct {
	client  *binance.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
}

// Option configures a Binance client.
type Option func(*Binance)

// WithBaseURL overrides the REST endpoint.
func WithBaseURL(u string) Option {
	return func(b *Binance) {
		if u = strings.TrimSpace(u); u != "" {
			b.client.BaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Binance) { b.client.HTTPClient = c }
}

// WithRateLimit sets the sustained request rate. Non-positive disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(b *Binance) {
		if perSecond <= 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(b *Binance) {
		if n >= 0 {
			b.retries = n
		}
	}
}

// WithBackoff sets the base delay between retries; attempt n waits n*d.
func WithBackoff(d time.Duration) Option {
	return func(b *Binance) { b.backoff = d }
}

// NewBinance creates a public (unauthenticated) spot client.
func NewBinance(opts ...Option) *Binance {
	c := binance.NewClient("", "")
	c.BaseURL = defaultBaseURL
	c.HTTPClient = &http.Client{Timeout: 15 * time.Second}

	b := &Binance{
		client:  c,
		limiter: rate.NewLimiter(defaultRateLimit, 1),
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

var _ Client = (*Binance)(nil)

// FetchCandles implements Client.
func (b *Binance) FetchCandles(ctx context.Context, symbol string, tf candle.Timeframe, since int64, limit int) ([]candle.Candle, error) {
	market := MarketID(symbol)
	if market == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	var lastErr error
	for attempt := 0; attempt <= b.retries; attempt++ {
		if attempt > 0 {
			slog.Warn("binance: retrying klines request", "symbol", market, "attempt", attempt, "error", lastErr)
			if err := sleep(ctx, time.Duration(attempt)*b.backoff); err != nil {
				return nil, err
			}
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		candles, err := b.fetchOnce(ctx, market, tf.Interval, since, limit)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransient(err) {
			break
		}
	}
	return nil, lastErr
}

func (b *Binance) fetchOnce(ctx context.Context, market, interval string, since int64, limit int) ([]candle.Candle, error) {
	svc := b.client.NewKlinesService().Symbol(market).Interval(interval).Limit(limit)
	if since >= 0 {
		svc = svc.StartTime(since)
	}
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]candle.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		c, err := toCandle(kl)
		if err != nil {
			return nil, fmt.Errorf("parse kline %d: %w", kl.OpenTime, err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func toCandle(kl *binance.Kline) (candle.Candle, error) {
	fields := [5]string{kl.Open, kl.High, kl.Low, kl.Close, kl.Volume}
	var vals [5]decimal.Decimal
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return candle.Candle{}, err
		}
		vals[i] = d
	}
	return candle.Candle{
		Time:   kl.OpenTime,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// MarketID converts a pair in any of the accepted user forms (BTC/USDT,
// btc/usdt, "BTC / USDT", BTCUSDT) into the exchange's market id.
func MarketID(symbol string) string {
	s := strings.ToUpper(symbol)
	return strings.Map(func(r rune) rune {
		if r == '/' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}

// transient API error codes: too many requests, disconnected, timeout.
var transientCodes = map[int64]bool{
	-1003: true,
	-1001: true,
	-1007: true,
}

func isTransient(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// Code 0 means the body was not a Binance error document, which is
		// what gateway failures and rate-limit pages look like.
		return apiErr.Code == 0 || transientCodes[apiErr.Code]
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

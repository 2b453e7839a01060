// Package fetch turns a download request into an ordered candle sequence:
// it resolves the user's symbol against the exchange, then pages through the
// exchange's history for the requested window.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
	"github.com/ahmethakanbesel/candle-csv/internal/candle"
	"github.com/ahmethakanbesel/candle-csv/internal/exchange"
)

const defaultQuote = "USDT"

// Candidates lists the symbol forms tried for raw, in order. Repeated forms
// are dropped so each one costs at most one probe.
func Candidates(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	var forms []string
	if !strings.Contains(s, "/") {
		upper := strings.ToUpper(s)
		forms = []string{s, s + "/" + defaultQuote, upper, upper + "/" + defaultQuote}
	} else {
		forms = []string{s, strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)}
	}

	out := make([]string, 0, len(forms))
	seen := make(map[string]bool, len(forms))
	for _, f := range forms {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Resolver picks the first candidate symbol the exchange accepts. Every
// candidate costs one real request against the exchange.
type Resolver struct {
	client exchange.Client
}

func NewResolver(client exchange.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve probes each candidate with a one-candle request. Any successful
// response, even an empty one, accepts the candidate.
func (r *Resolver) Resolve(ctx context.Context, raw string, tf candle.Timeframe) (string, error) {
	for _, c := range Candidates(raw) {
		if err := ctx.Err(); err != nil {
			return "", stopped(err)
		}
		if _, err := r.client.FetchCandles(ctx, c, tf, exchange.Latest, 1); err != nil {
			if ctx.Err() != nil {
				return "", stopped(ctx.Err())
			}
			slog.Debug("symbol candidate rejected", "input", raw, "candidate", c, "error", err)
			continue
		}
		return c, nil
	}
	return "", apperror.New(apperror.Resolution, fmt.Sprintf("Symbol not recognized by the exchange: %s", raw))
}

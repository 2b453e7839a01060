package download

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
	"github.com/ahmethakanbesel/candle-csv/internal/candle"
)

type SubmitRequest struct {
	Symbol    string `json:"symbol" validate:"required"`
	Timeframe string `json:"timeframe" validate:"required"`
	Start     string `json:"start" validate:"required"`
	End       string `json:"end" validate:"required"`
}

// Parse validates r and converts it into a fetch window. Input errors are
// BAD_REQUEST so they are rejected before any job exists.
func (r SubmitRequest) Parse(v *validator.Validate) (candle.Request, *apperror.AppError) {
	r.Symbol = strings.TrimSpace(r.Symbol)
	r.Timeframe = strings.TrimSpace(r.Timeframe)
	r.Start = strings.TrimSpace(r.Start)
	r.End = strings.TrimSpace(r.End)

	if err := v.Struct(&r); err != nil {
		return candle.Request{}, apperror.New(apperror.BadRequest, "Missing required parameters")
	}

	tf, ok := candle.LookupTimeframe(r.Timeframe)
	if !ok {
		return candle.Request{}, apperror.New(apperror.BadRequest, fmt.Sprintf("Unsupported timeframe: %s", r.Timeframe))
	}

	start, err := candle.ParseBound(r.Start, false)
	if err != nil {
		return candle.Request{}, apperror.New(apperror.BadRequest, "Invalid date format")
	}
	end, err := candle.ParseBound(r.End, true)
	if err != nil {
		return candle.Request{}, apperror.New(apperror.BadRequest, "Invalid date format")
	}
	if start >= end {
		return candle.Request{}, apperror.New(apperror.BadRequest, "Start must be before end")
	}

	return candle.Request{Symbol: r.Symbol, Timeframe: tf, Start: start, End: end}, nil
}

type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// TimeframeInfo describes one supported timeframe.
type TimeframeInfo struct {
	Code     string `json:"code"`
	Interval string `json:"interval"`
	Millis   int64  `json:"millis"`
}

// File is a finished job's CSV on disk.
type File struct {
	Path string
	Name string
}

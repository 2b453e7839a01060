package candle

import (
	"fmt"
	"strings"
	"time"
)

// Request is a validated download window. Start and End are inclusive Unix
// milliseconds.
type Request struct {
	Symbol    string
	Timeframe Timeframe
	Start     int64
	End       int64
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if _, ok := LookupTimeframe(r.Timeframe.Code); !ok {
		return fmt.Errorf("unsupported timeframe: %s", r.Timeframe.Code)
	}
	if r.Start >= r.End {
		return fmt.Errorf("start must be before end")
	}
	return nil
}

// naive timestamp layouts, interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseBound converts a date or timestamp into Unix milliseconds. A bare
// date (YYYY-MM-DD) expands to the first millisecond of that UTC day, or to
// the last one when end is true. Timestamps without an offset are UTC.
func ParseBound(s string, end bool) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty date")
	}

	if len(s) == len(time.DateOnly) && !strings.ContainsAny(s, "T:") {
		d, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
		if err != nil {
			return 0, fmt.Errorf("parse date %q: %w", s, err)
		}
		if end {
			d = d.Add(24*time.Hour - time.Millisecond)
		}
		return d.UnixMilli(), nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UnixMilli(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized date format: %q", s)
}

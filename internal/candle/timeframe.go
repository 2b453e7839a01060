package candle

import (
	"sort"
	"time"
)

// Timeframe is a supported bucket size. Interval is the exchange's name for
// it, which for the configured exchange matches Code.
type Timeframe struct {
	Code     string
	Duration time.Duration
	Interval string
}

var timeframes = map[string]Timeframe{
	"1m":  {Code: "1m", Duration: time.Minute, Interval: "1m"},
	"5m":  {Code: "5m", Duration: 5 * time.Minute, Interval: "5m"},
	"15m": {Code: "15m", Duration: 15 * time.Minute, Interval: "15m"},
	"30m": {Code: "30m", Duration: 30 * time.Minute, Interval: "30m"},
	"1h":  {Code: "1h", Duration: time.Hour, Interval: "1h"},
	"4h":  {Code: "4h", Duration: 4 * time.Hour, Interval: "4h"},
	"1d":  {Code: "1d", Duration: 24 * time.Hour, Interval: "1d"},
}

// LookupTimeframe returns the timeframe registered under code. Codes are
// matched exactly.
func LookupTimeframe(code string) (Timeframe, bool) {
	tf, ok := timeframes[code]
	return tf, ok
}

// Millis returns the bucket duration in milliseconds.
func (tf Timeframe) Millis() int64 {
	return tf.Duration.Milliseconds()
}

// Timeframes returns all supported codes, shortest first.
func Timeframes() []string {
	all := make([]Timeframe, 0, len(timeframes))
	for _, tf := range timeframes {
		all = append(all, tf)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Duration < all[j].Duration })

	codes := make([]string, len(all))
	for i, tf := range all {
		codes[i] = tf.Code
	}
	return codes
}

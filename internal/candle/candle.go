// Package candle holds the OHLCV bar type, the supported timeframes and the
// validated request window that a download job works on.
package candle

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one aggregated bar. Time is the bar open time in Unix
// milliseconds (UTC).
type Candle struct {
	Time   int64
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// OpenTime returns the bar open time as a UTC time.Time.
func (c Candle) OpenTime() time.Time {
	return time.UnixMilli(c.Time).UTC()
}

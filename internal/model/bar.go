package model

import (
	"encoding/json"
	"time"
)

// Bar represents a fixed-interval OHLCV bar for a single symbol.
// All prices are in paise (int64) to avoid floating-point drift.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Interval   int       `json:"interval"`    // bar duration in seconds
	TS         time.Time `json:"ts"`          // bucket start time (UTC, interval-aligned)
	Open       int64     `json:"open"`        // paise
	High       int64     `json:"high"`        // paise
	Low        int64     `json:"low"`         // paise
	Close      int64     `json:"close"`       // paise
	Volume     int64     `json:"volume"`      // cumulative quantity in this bucket
	TicksCount int       `json:"ticks_count"` // number of ticks aggregated
}

// StreamKey returns the Redis stream key: "bar:{interval}s:{symbol}".
func (b *Bar) StreamKey() string {
	return "bar:" + itoa(b.Interval) + "s:" + b.Symbol
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// itoa is a minimal int-to-string without importing strconv in hot path.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

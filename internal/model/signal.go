package model

import (
	"encoding/json"
	"time"
)

// Direction is the trade direction of a signal or position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT, used for P&L arithmetic.
func (d Direction) Sign() int64 {
	if d == Short {
		return -1
	}
	return 1
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Signal is a qualified DI-crossover trading signal. It is emitted only after
// every quality filter has passed and is consumed synchronously by the
// position manager.
type Signal struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	TS        time.Time `json:"ts"`

	// Indicator values at the crossover bar.
	DIPlus       float64 `json:"di_plus"`
	DIMinus      float64 `json:"di_minus"`
	ADX          float64 `json:"adx"`
	DISeparation float64 `json:"di_separation"`

	// Quality metrics.
	Confidence  float64 `json:"confidence"`   // composite score 0..1
	VolumeRatio float64 `json:"volume_ratio"` // bar volume / 20-bar average

	// Entry reference: close of the crossover bar, in paise.
	EntryPrice int64 `json:"entry_price"`
	Volume     int64 `json:"volume"`
}

// StreamKey returns the Redis stream key: "signal:{symbol}".
func (s *Signal) StreamKey() string {
	return "signal:" + s.Symbol
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}

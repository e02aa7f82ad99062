package model

import (
	"encoding/json"
	"time"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitOppositeSignal ExitReason = "OPPOSITE_SIGNAL" // opposite DI crossover
	ExitTrailingStop   ExitReason = "TRAILING_STOP"   // intrabar stop breach
	ExitSquareOff      ExitReason = "SQUARE_OFF"      // mandatory deadline close
	ExitManual         ExitReason = "MANUAL"          // operator-initiated
)

// Position is an open (or just-closed) intraday position for one symbol.
// At most one position per symbol may be OPEN at any time.
type Position struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`

	EntryPrice int64     `json:"entry_price"` // paise
	EntryTime  time.Time `json:"entry_time"`
	Qty        int64     `json:"qty"`

	// StopPrice only ever moves in the favorable direction while OPEN.
	StopPrice int64 `json:"stop_price"` // paise
	// ExtremePrice is the running max high (LONG) or min low (SHORT) since entry.
	ExtremePrice int64 `json:"extreme_price"` // paise

	Status PositionStatus `json:"status"`

	// Indicator values at entry, kept for the trade journal.
	EntryDIPlus  float64 `json:"entry_di_plus"`
	EntryDIMinus float64 `json:"entry_di_minus"`
	EntryADX     float64 `json:"entry_adx"`

	// Unrealized is mark-to-market P&L against the last seen close.
	// Filled on status snapshots only, never on journal records.
	Unrealized int64 `json:"unrealized_pnl,omitempty"`
}

// UnrealizedPnL computes unrealized profit/loss in paise at the given price.
func (p *Position) UnrealizedPnL(lastPrice int64) int64 {
	return (lastPrice - p.EntryPrice) * p.Direction.Sign() * p.Qty
}

// JSON returns the JSON-encoded position snapshot.
func (p *Position) JSON() []byte {
	out, _ := json.Marshal(p)
	return out
}

// ExitEvent is the single record produced when a position transitions to
// CLOSED. Exactly one ExitEvent exists per closed position.
type ExitEvent struct {
	Position  Position   `json:"position"`
	ExitPrice int64      `json:"exit_price"` // paise
	ExitTime  time.Time  `json:"exit_time"`
	Reason    ExitReason `json:"reason"`
	PnL       int64      `json:"pnl"` // realized, paise
}

// StreamKey returns the Redis stream key: "exit:{symbol}".
func (e *ExitEvent) StreamKey() string {
	return "exit:" + e.Position.Symbol
}

// JSON returns the JSON-encoded exit event.
func (e *ExitEvent) JSON() []byte {
	out, _ := json.Marshal(e)
	return out
}

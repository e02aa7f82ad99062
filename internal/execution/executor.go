// Package execution handles order placement for position entries and exits.
//
// Execution is synchronous and all-or-nothing: Execute either returns a
// complete Fill or an error, never a partial fill. The position manager
// mutates its state only after a successful Fill.
package execution

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned when the execution venue declines an order.
var ErrRejected = errors.New("order rejected")

// OrderKind distinguishes position entries from exits.
type OrderKind string

const (
	KindEntry OrderKind = "ENTRY"
	KindExit  OrderKind = "EXIT"
)

// Side is the order direction on the book.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is a single instruction to the execution venue.
type Order struct {
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Kind   OrderKind `json:"kind"`
	Qty    int64     `json:"qty"`
	Price  int64     `json:"price"` // paise
	Reason string    `json:"reason"`
	TS     time.Time `json:"ts"`
}

// Fill is the complete result of an accepted Order.
type Fill struct {
	OrderID   string    `json:"order_id"`
	Order     Order     `json:"order"`
	FillPrice int64     `json:"fill_price"` // paise
	Slippage  int64     `json:"slippage"`   // paise, signed against the order
	FilledAt  time.Time `json:"filled_at"`
}

// Executor places orders. Implementations must fill fully or fail.
type Executor interface {
	Execute(ctx context.Context, order Order) (Fill, error)
}

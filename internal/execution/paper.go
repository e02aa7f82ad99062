package execution

import (
	"context"
	"fmt"
	"log"
	"sync"

	"adx-systemv1/internal/clock"
)

// PaperExecutor simulates fills without broker calls. It fills every order
// at the requested price plus configurable slippage, which keeps replay and
// paper-trading runs deterministic.
type PaperExecutor struct {
	mu       sync.RWMutex
	clk      clock.Clock
	fills    []Fill
	orderSeq int64

	slippageBps int64 // basis points (5 = 0.05%)
}

// NewPaperExecutor creates a paper executor. Fill timestamps come from clk.
func NewPaperExecutor(clk clock.Clock, slippageBps int64) *PaperExecutor {
	return &PaperExecutor{
		clk:         clk,
		fills:       make([]Fill, 0, 1000),
		slippageBps: slippageBps,
	}
}

// Execute fills the order synchronously.
func (p *PaperExecutor) Execute(ctx context.Context, order Order) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	if order.Qty <= 0 {
		return Fill{}, fmt.Errorf("%w: non-positive qty %d", ErrRejected, order.Qty)
	}
	if order.Price <= 0 {
		return Fill{}, fmt.Errorf("%w: non-positive price %d", ErrRejected, order.Price)
	}

	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)

	fillPrice := order.Price
	slippage := int64(0)
	if p.slippageBps > 0 {
		slippage = order.Price * p.slippageBps / 10000
		if order.Side == SideBuy {
			fillPrice += slippage // buy higher
		} else {
			fillPrice -= slippage // sell lower
		}
	}

	fill := Fill{
		OrderID:   orderID,
		Order:     order,
		FillPrice: fillPrice,
		Slippage:  slippage,
		FilledAt:  p.clk.Now(),
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	log.Printf("[paper] %s %s %s qty=%d price=%d (slip=%d) order=%s reason=%s",
		order.Kind, order.Side, order.Symbol, order.Qty, fillPrice, slippage, orderID, order.Reason)
	return fill, nil
}

// Fills returns a snapshot of all fills so far.
func (p *PaperExecutor) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

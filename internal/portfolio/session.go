// Package portfolio holds session-scoped trading state: the global
// open-position limit, realized daily P&L, and risk-based position sizing.
//
// A Session lives for exactly one trading day. The open-position counter is
// the single synchronized value that makes the max_positions bound hold
// across concurrently processed symbols.
package portfolio

import (
	"log"
	"sync"

	"adx-systemv1/internal/model"
)

// Session tracks open-position slots and realized P&L for one trading day.
type Session struct {
	mu sync.RWMutex

	portfolioValue  int64 // paise
	riskPerTradePct float64
	maxPositions    int

	open     map[string]bool // symbols holding a slot
	dailyPnL int64
	exits    []model.ExitEvent
}

// NewSession creates a fresh session context.
// portfolioValue is in paise; riskPerTradePct is a percentage (e.g. 1.0).
func NewSession(portfolioValue int64, riskPerTradePct float64, maxPositions int) *Session {
	return &Session{
		portfolioValue:  portfolioValue,
		riskPerTradePct: riskPerTradePct,
		maxPositions:    maxPositions,
		open:            make(map[string]bool, maxPositions),
	}
}

// TryReserve claims an open-position slot for symbol. It fails when the
// symbol already holds a slot or the aggregate count is at max_positions.
// The claim must be released via Release (entry failed) or RecordExit
// (position closed).
func (s *Session) TryReserve(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open[symbol] {
		return false
	}
	if len(s.open) >= s.maxPositions {
		return false
	}
	s.open[symbol] = true
	return true
}

// Release returns a slot without recording an exit, for entries the
// executor rejected.
func (s *Session) Release(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, symbol)
}

// RecordExit releases the symbol's slot and folds the exit into daily P&L.
func (s *Session) RecordExit(ev model.ExitEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, ev.Position.Symbol)
	s.dailyPnL += ev.PnL
	s.exits = append(s.exits, ev)
	log.Printf("[portfolio] %s closed (%s): pnl=%d daily=%d open=%d",
		ev.Position.Symbol, ev.Reason, ev.PnL, s.dailyPnL, len(s.open))
}

// OpenCount returns the number of reserved slots.
func (s *Session) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.open)
}

// HasOpen reports whether symbol currently holds a slot.
func (s *Session) HasOpen(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open[symbol]
}

// OpenSymbols returns a snapshot of symbols holding slots.
func (s *Session) OpenSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.open))
	for sym := range s.open {
		out = append(out, sym)
	}
	return out
}

// DailyPnL returns realized P&L for the session in paise.
func (s *Session) DailyPnL() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dailyPnL
}

// Exits returns a copy of the session's exit records.
func (s *Session) Exits() []model.ExitEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.ExitEvent, len(s.exits))
	copy(cp, s.exits)
	return cp
}

// PositionSize returns the share quantity such that a stop-out loses about
// riskPerTradePct of portfolio value. Zero stop distance sizes to 0, which
// callers must treat as "do not enter".
func (s *Session) PositionSize(entryPrice, stopPrice int64) int64 {
	dist := entryPrice - stopPrice
	if dist < 0 {
		dist = -dist
	}
	if dist == 0 {
		return 0
	}
	riskAmount := float64(s.portfolioValue) * s.riskPerTradePct / 100
	qty := int64(riskAmount / float64(dist))
	if qty < 1 {
		qty = 1
	}
	return qty
}

// Reset clears all slots and P&L at a session boundary.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = make(map[string]bool, s.maxPositions)
	s.dailyPnL = 0
	s.exits = nil
}

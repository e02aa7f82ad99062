// Package position runs the per-symbol position state machine.
//
// Each symbol is either idle or holds exactly one open position. Exits fire
// on the first of: square-off deadline, intrabar stop breach, or an
// opposite-direction qualified signal. The deadline is checked on every
// processing step and by a background sweep, so it fires even when no new
// bar arrives.
//
// Per-symbol slots carry their own mutex: tick-driven updates and the sweep
// never race on the same position, and state is mutated only after the
// executor confirms a fill.
package position

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/execution"
	"adx-systemv1/internal/markethours"
	"adx-systemv1/internal/model"
	"adx-systemv1/internal/portfolio"
)

// Config holds the manager's resolved-once parameters.
type Config struct {
	TrailingStopPct float64 // e.g. 5.0
	SquareOffTime   markethours.TimeOfDay
}

type slot struct {
	mu        sync.Mutex
	pos       *model.Position // nil when idle
	lastClose int64           // last seen close, used for square-off fills
}

// Manager owns all position state for one session.
type Manager struct {
	cfg     Config
	clk     clock.Clock
	session *portfolio.Session
	exec    execution.Executor

	mu    sync.RWMutex
	slots map[string]*slot

	exitCh chan model.ExitEvent

	// DeadlineMissedHook fires when a square-off attempt fails and a
	// position is still open past the deadline. Optional.
	DeadlineMissedHook func(symbol string)
}

// NewManager creates a position manager.
func NewManager(cfg Config, clk clock.Clock, session *portfolio.Session, exec execution.Executor) *Manager {
	return &Manager{
		cfg:     cfg,
		clk:     clk,
		session: session,
		exec:    exec,
		slots:   make(map[string]*slot, 64),
		exitCh:  make(chan model.ExitEvent, 256),
	}
}

// Session returns the portfolio session backing this manager.
func (m *Manager) Session() *portfolio.Session {
	return m.session
}

// Exits returns a best-effort feed of exit events for external collaborators.
// The authoritative record is the portfolio session.
func (m *Manager) Exits() <-chan model.ExitEvent {
	return m.exitCh
}

func (m *Manager) slot(symbol string) *slot {
	m.mu.RLock()
	s, ok := m.slots[symbol]
	m.mu.RUnlock()
	if ok {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.slots[symbol]; ok {
		return s
	}
	s = &slot{}
	m.slots[symbol] = s
	return s
}

// OnSignal consumes one qualified signal synchronously. An opposite signal
// closes the open position; a signal for an idle symbol opens one, subject
// to the global capacity bound and executor acceptance.
func (m *Manager) OnSignal(ctx context.Context, sig *model.Signal) {
	s := m.slot(sig.Symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastClose == 0 {
		s.lastClose = sig.EntryPrice
	}

	if s.pos != nil {
		if s.pos.Direction == sig.Direction {
			return
		}
		m.closeLocked(ctx, s, sig.EntryPrice, model.ExitOppositeSignal)
		return
	}

	// Never open at or past the square-off deadline.
	if m.cfg.SquareOffTime.Reached(m.clk.Now()) {
		return
	}

	entry := sig.EntryPrice
	stop := stopFromRef(sig.Direction, entry, m.cfg.TrailingStopPct)
	qty := m.session.PositionSize(entry, stop)
	if qty == 0 {
		log.Printf("[position] %s: zero stop distance, entry skipped", sig.Symbol)
		return
	}

	if !m.session.TryReserve(sig.Symbol) {
		log.Printf("[position] %s: no capacity (open=%d), signal dropped",
			sig.Symbol, m.session.OpenCount())
		return
	}

	side := execution.SideBuy
	if sig.Direction == model.Short {
		side = execution.SideSell
	}
	fill, err := m.exec.Execute(ctx, execution.Order{
		Symbol: sig.Symbol,
		Side:   side,
		Kind:   execution.KindEntry,
		Qty:    qty,
		Price:  entry,
		Reason: string(sig.Direction) + " crossover",
		TS:     m.clk.Now(),
	})
	if err != nil {
		// Executor declined: slot stays idle, retry on the next signal.
		m.session.Release(sig.Symbol)
		log.Printf("[position] %s: entry rejected: %v", sig.Symbol, err)
		return
	}

	s.pos = &model.Position{
		Symbol:       sig.Symbol,
		Direction:    sig.Direction,
		EntryPrice:   fill.FillPrice,
		EntryTime:    fill.FilledAt,
		Qty:          qty,
		StopPrice:    stopFromRef(sig.Direction, fill.FillPrice, m.cfg.TrailingStopPct),
		ExtremePrice: fill.FillPrice,
		Status:       model.PositionOpen,
		EntryDIPlus:  sig.DIPlus,
		EntryDIMinus: sig.DIMinus,
		EntryADX:     sig.ADX,
	}
	log.Printf("[position] %s OPEN %s qty=%d entry=%d stop=%d conf=%.2f",
		sig.Symbol, sig.Direction, qty, fill.FillPrice, s.pos.StopPrice, sig.Confidence)
}

// OnBar advances the symbol's state machine by one bar: square-off check,
// then stop breach against the current stop, then trail tightening.
func (m *Manager) OnBar(ctx context.Context, bar model.Bar) {
	s := m.slot(bar.Symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastClose = bar.Close
	if s.pos == nil {
		return
	}

	if m.cfg.SquareOffTime.Reached(m.clk.Now()) {
		m.closeLocked(ctx, s, bar.Close, model.ExitSquareOff)
		return
	}

	// Breach is tested against the stop as it stood entering the bar.
	pos := s.pos
	if pos.Direction == model.Long {
		if bar.Low <= pos.StopPrice {
			m.closeLocked(ctx, s, pos.StopPrice, model.ExitTrailingStop)
			return
		}
		if bar.High > pos.ExtremePrice {
			pos.ExtremePrice = bar.High
			if stop := stopFromRef(model.Long, pos.ExtremePrice, m.cfg.TrailingStopPct); stop > pos.StopPrice {
				pos.StopPrice = stop
			}
		}
	} else {
		if bar.High >= pos.StopPrice {
			m.closeLocked(ctx, s, pos.StopPrice, model.ExitTrailingStop)
			return
		}
		if bar.Low < pos.ExtremePrice {
			pos.ExtremePrice = bar.Low
			if stop := stopFromRef(model.Short, pos.ExtremePrice, m.cfg.TrailingStopPct); stop < pos.StopPrice {
				pos.StopPrice = stop
			}
		}
	}
}

// Sweep force-closes every open position at or past the square-off
// deadline. It runs independently of market data and fills at the last
// seen close.
func (m *Manager) Sweep(ctx context.Context) {
	if !m.cfg.SquareOffTime.Reached(m.clk.Now()) {
		return
	}

	m.mu.RLock()
	slots := make([]*slot, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	m.mu.RUnlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.pos != nil {
			price := s.lastClose
			if price == 0 {
				price = s.pos.EntryPrice
			}
			m.closeLocked(ctx, s, price, model.ExitSquareOff)
		}
		s.mu.Unlock()
	}
}

// Run drives the background square-off sweep until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// ManualClose exits an open position at the last seen close.
func (m *Manager) ManualClose(ctx context.Context, symbol string) bool {
	s := m.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return false
	}
	price := s.lastClose
	if price == 0 {
		price = s.pos.EntryPrice
	}
	return m.closeLocked(ctx, s, price, model.ExitManual)
}

// closeLocked exits the slot's position at price. Caller holds s.mu.
// State mutates only after the executor confirms the fill.
func (m *Manager) closeLocked(ctx context.Context, s *slot, price int64, reason model.ExitReason) bool {
	pos := s.pos

	side := execution.SideSell
	if pos.Direction == model.Short {
		side = execution.SideBuy
	}
	fill, err := m.exec.Execute(ctx, execution.Order{
		Symbol: pos.Symbol,
		Side:   side,
		Kind:   execution.KindExit,
		Qty:    pos.Qty,
		Price:  price,
		Reason: string(reason),
		TS:     m.clk.Now(),
	})
	if err != nil {
		log.Printf("[position] %s: exit (%s) rejected: %v", pos.Symbol, reason, err)
		if reason == model.ExitSquareOff {
			// Still open past the deadline. This violates the core
			// invariant and must never be silently absorbed.
			log.Printf("[position] CRITICAL: %s open past square-off deadline", pos.Symbol)
			if m.DeadlineMissedHook != nil {
				m.DeadlineMissedHook(pos.Symbol)
			}
		}
		return false
	}

	closed := *pos
	closed.Status = model.PositionClosed
	ev := model.ExitEvent{
		Position:  closed,
		ExitPrice: fill.FillPrice,
		ExitTime:  fill.FilledAt,
		Reason:    reason,
		PnL:       (fill.FillPrice - closed.EntryPrice) * closed.Direction.Sign() * closed.Qty,
	}
	s.pos = nil
	m.session.RecordExit(ev)

	select {
	case m.exitCh <- ev:
	default:
		// feed full, authoritative record already in the session
	}
	return true
}

// Open returns a copy of the symbol's open position, if any.
func (m *Manager) Open(symbol string) (model.Position, bool) {
	s := m.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return model.Position{}, false
	}
	return *s.pos, true
}

// Snapshots returns copies of all open positions for status display,
// marked to the last seen close.
func (m *Manager) Snapshots() []model.Position {
	m.mu.RLock()
	slots := make([]*slot, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	m.mu.RUnlock()

	out := make([]model.Position, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		if s.pos != nil {
			cp := *s.pos
			cp.Unrealized = cp.UnrealizedPnL(s.lastClose)
			out = append(out, cp)
		}
		s.mu.Unlock()
	}
	return out
}

// stopFromRef computes the trailing stop anchored at ref (entry price on
// open, extreme price while trailing).
func stopFromRef(dir model.Direction, ref int64, pct float64) int64 {
	m := pct / 100
	if dir == model.Long {
		return int64(math.Round(float64(ref) * (1 - m)))
	}
	return int64(math.Round(float64(ref) * (1 + m)))
}

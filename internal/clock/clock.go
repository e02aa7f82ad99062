// Package clock provides the single time authority for the trading pipeline.
//
// Every time-sensitive component (signal detector, position manager, deadline
// sweep) reads time exclusively through a Clock, never from the wall clock
// directly. Live trading injects Wall; backtests inject Sim, advanced by the
// replay driver from bar timestamps. This is what makes live and replay runs
// produce identical decisions for identical data.
package clock

import (
	"sync"
	"time"
)

// Clock is the abstraction for "now".
type Clock interface {
	Now() time.Time
}

// Wall reads the operating system clock in the given location.
type Wall struct {
	loc *time.Location
}

// NewWall creates a wall clock that reports time in loc.
func NewWall(loc *time.Location) *Wall {
	if loc == nil {
		loc = time.UTC
	}
	return &Wall{loc: loc}
}

func (w *Wall) Now() time.Time {
	return time.Now().In(w.loc)
}

// Sim is a settable clock for backtest replay. The replay driver sets it to
// each bar's timestamp before the bar enters the pipeline, so downstream
// deadline checks see "now" exactly as it was when the bar closed.
type Sim struct {
	mu  sync.RWMutex
	now time.Time
}

// NewSim creates a simulated clock starting at t.
func NewSim(t time.Time) *Sim {
	return &Sim{now: t}
}

func (s *Sim) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// Set moves the simulated clock to t. Time never moves backwards: earlier
// values are ignored so out-of-order data cannot rewind deadline checks.
func (s *Sim) Set(t time.Time) {
	s.mu.Lock()
	if t.After(s.now) {
		s.now = t
	}
	s.mu.Unlock()
}

// Advance moves the simulated clock forward by d.
func (s *Sim) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

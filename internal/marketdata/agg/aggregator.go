// Package agg builds fixed-interval OHLCV bars from a stream of ticks.
package agg

import (
	"context"
	"log"
	"sync"
	"time"

	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/model"
)

// barState holds the in-progress bar for one symbol in the current bucket.
type barState struct {
	bucket int64 // Unix second of the bucket start
	bar    model.Bar
}

// Aggregator builds interval bars from ticks. It runs in a single goroutine
// and emits a finalized bar when the symbol's bucket rolls over or the
// periodic flush finds the bucket in the past.
//
// Late ticks (older than the open bucket) are data gaps: dropped, logged,
// state retained.
type Aggregator struct {
	mu     sync.Mutex
	states map[string]*barState

	interval int64 // bar length in seconds
	clk      clock.Clock

	flushInterval time.Duration

	// OnDroppedTick fires for each late tick. Optional.
	OnDroppedTick func(symbol string)
}

// New creates an Aggregator producing bars of intervalSec seconds.
func New(intervalSec int, clk clock.Clock) *Aggregator {
	return &Aggregator{
		states:        make(map[string]*barState),
		interval:      int64(intervalSec),
		clk:           clk,
		flushInterval: 100 * time.Millisecond,
	}
}

// Run consumes ticks from tickCh, aggregates into interval bars, and sends
// finalized bars to barCh. Blocks until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, tickCh <-chan model.Tick, barCh chan<- model.Bar) {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flushAll(barCh)
			return

		case tick, ok := <-tickCh:
			if !ok {
				a.flushAll(barCh)
				return
			}
			a.processTick(tick, barCh)

		case <-ticker.C:
			a.flushOld(barCh)
		}
	}
}

func (a *Aggregator) bucketOf(ts time.Time) int64 {
	return ts.Unix() / a.interval * a.interval
}

// processTick incorporates a single tick into the bar state.
func (a *Aggregator) processTick(tick model.Tick, barCh chan<- model.Bar) {
	bucket := a.bucketOf(tick.TickTS)

	a.mu.Lock()
	defer a.mu.Unlock()

	state, exists := a.states[tick.Symbol]

	if exists && bucket < state.bucket {
		// Late tick from an already-closed bucket. Keep prior state.
		log.Printf("[agg] %s: late tick ts=%v dropped", tick.Symbol, tick.TickTS)
		if a.OnDroppedTick != nil {
			a.OnDroppedTick(tick.Symbol)
		}
		return
	}

	if exists && bucket > state.bucket {
		a.emit(state, barCh)
		delete(a.states, tick.Symbol)
		exists = false
	}

	if !exists {
		a.states[tick.Symbol] = &barState{
			bucket: bucket,
			bar: model.Bar{
				Symbol:     tick.Symbol,
				Interval:   int(a.interval),
				TS:         time.Unix(bucket, 0).UTC(),
				Open:       tick.Price,
				High:       tick.Price,
				Low:        tick.Price,
				Close:      tick.Price,
				Volume:     tick.Qty,
				TicksCount: 1,
			},
		}
		return
	}

	b := &state.bar
	if tick.Price > b.High {
		b.High = tick.Price
	}
	if tick.Price < b.Low {
		b.Low = tick.Price
	}
	b.Close = tick.Price
	b.Volume += tick.Qty
	b.TicksCount++
}

// flushOld emits bars whose bucket has fully elapsed.
func (a *Aggregator) flushOld(barCh chan<- model.Bar) {
	now := a.clk.Now().Unix()

	a.mu.Lock()
	defer a.mu.Unlock()

	for symbol, state := range a.states {
		if state.bucket+a.interval <= now {
			a.emit(state, barCh)
			delete(a.states, symbol)
		}
	}
}

// flushAll emits all open bars regardless of bucket.
func (a *Aggregator) flushAll(barCh chan<- model.Bar) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for symbol, state := range a.states {
		a.emit(state, barCh)
		delete(a.states, symbol)
	}
}

// emit sends a finalized bar. Non-blocking to avoid deadlocks.
func (a *Aggregator) emit(state *barState, barCh chan<- model.Bar) {
	select {
	case barCh <- state.bar:
	default:
		log.Printf("[agg] barCh full, dropping bar %s ts=%v", state.bar.Symbol, state.bar.TS)
	}
}

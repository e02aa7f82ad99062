package engine

import (
	"context"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/execution"
	"adx-systemv1/internal/indicator"
	"adx-systemv1/internal/markethours"
	"adx-systemv1/internal/model"
	"adx-systemv1/internal/portfolio"
	"adx-systemv1/internal/position"
	"adx-systemv1/internal/signal"
)

const barInterval = 300

type pipeline struct {
	clk *clock.Sim
	eng *Engine
	pos *position.Manager
	ses *portfolio.Session
	ind *indicator.Engine
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	clk := clock.NewSim(time.Date(2026, 3, 2, 9, 15, 0, 0, markethours.IST))
	ses := portfolio.NewSession(100000000, 1.0, 5)
	exec := execution.NewPaperExecutor(clk, 0)
	squareOff, _ := markethours.ParseTimeOfDay("15:20")
	cutoff, _ := markethours.ParseTimeOfDay("14:30")

	ind := indicator.NewEngine(3)
	det := signal.NewDetector(signal.Config{
		MinDISeparation:  2.0,
		MinADXStrength:   20,
		VolumePercentile: 60,
		VolumeWindow:     100,
		MinVolumeRatio:   1.5,
		MinConfidence:    0.60,
		SignalCutoff:     cutoff,
	}, clk)
	pos := position.NewManager(position.Config{
		TrailingStopPct: 5.0,
		SquareOffTime:   squareOff,
	}, clk, ses, exec)

	eng := New(Config{Indicator: ind, Detector: det, Positions: pos})
	return &pipeline{clk: clk, eng: eng, pos: pos, ses: ses, ind: ind}
}

// randomBars produces a deterministic pseudo-random walk. The same seed
// always yields the same bar sequence.
func randomBars(seed int64, symbol string, n int) []model.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]model.Bar, 0, n)
	ts := time.Date(2026, 3, 2, 9, 15, 0, 0, markethours.IST)
	price := int64(245000)

	for i := 0; i < n; i++ {
		drift := rng.Int63n(2001) - 1000 // ±10 rupees
		open := price
		close := price + drift
		high := max64(open, close) + rng.Int63n(500)
		low := min64(open, close) - rng.Int63n(500)
		bars = append(bars, model.Bar{
			Symbol:   symbol,
			Interval: barInterval,
			TS:       ts,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   500 + rng.Int63n(2000),
		})
		price = close
		ts = ts.Add(barInterval * time.Second)
	}
	return bars
}

// feed emulates the replayer's clock discipline: the sim clock is set
// to the bar's close time before the bar is processed.
func (p *pipeline) feed(ctx context.Context, bars []model.Bar) {
	for _, b := range bars {
		p.clk.Set(b.TS.Add(barInterval * time.Second))
		p.eng.OnBar(ctx, b)
	}
}

func entrySignal(sym string, dir model.Direction, price int64, ts time.Time) *model.Signal {
	return &model.Signal{
		Symbol: sym, Direction: dir, TS: ts,
		DIPlus: 24, DIMinus: 18, ADX: 32,
		DISeparation: 6, Confidence: 0.72, VolumeRatio: 1.8,
		EntryPrice: price, Volume: 2000,
	}
}

func TestEngine_ReplayParity(t *testing.T) {
	ctx := context.Background()
	run := func() (Stats, []model.ExitEvent, indicator.Values) {
		p := newPipeline(t)
		bars := randomBars(42, "SBIN", 80)

		// Take a position partway through so exits exercise the full
		// lifecycle, not just the detector path.
		p.feed(ctx, bars[:40])
		p.pos.OnSignal(ctx, entrySignal("SBIN", model.Long, bars[39].Close, bars[39].TS))
		p.feed(ctx, bars[40:])

		vals, _ := p.ind.Peek("SBIN")
		return p.eng.Stats(), p.ses.Exits(), vals
	}

	stats1, exits1, vals1 := run()
	stats2, exits2, vals2 := run()

	if !reflect.DeepEqual(stats1, stats2) {
		t.Errorf("stats diverged between identical runs:\n%+v\n%+v", stats1, stats2)
	}
	if !reflect.DeepEqual(exits1, exits2) {
		t.Errorf("exits diverged between identical runs:\n%+v\n%+v", exits1, exits2)
	}
	if vals1 != vals2 {
		t.Errorf("indicator state diverged: %+v vs %+v", vals1, vals2)
	}
	if stats1.BarsProcessed != 80 {
		t.Errorf("expected 80 bars processed, got %d", stats1.BarsProcessed)
	}
	if len(exits1) == 0 {
		t.Fatal("expected at least one exit from the injected position")
	}
}

func TestEngine_NoOpenPositionPastDeadline(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	// 9:15 to 16:00 is 81 five-minute bars.
	bars := randomBars(7, "TCS", 81)

	// Open a position at 15:00, well before the 15:20 deadline.
	p.feed(ctx, bars[:69])
	p.pos.OnSignal(ctx, entrySignal("TCS", model.Short, bars[68].Close, bars[68].TS))
	if p.ses.OpenCount() != 1 {
		t.Fatal("expected position to open before the deadline")
	}
	p.feed(ctx, bars[69:])

	if p.ses.OpenCount() != 0 {
		t.Errorf("expected zero open positions past square-off, got %d", p.ses.OpenCount())
	}
	found := false
	for _, ev := range p.ses.Exits() {
		if ev.Reason == model.ExitSquareOff || ev.Reason == model.ExitTrailingStop {
			found = true
		}
	}
	if !found {
		t.Error("expected a square-off or stop exit for the injected position")
	}
}

func TestEngine_SweepsStaleSymbolPastDeadline(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	// Only TCS bars flow; the SBIN position has no data of its own, so
	// the per-bar sweep is the only thing that can square it off.
	bars := randomBars(11, "TCS", 81)

	p.feed(ctx, bars[:69]) // clock now 15:00
	p.pos.OnSignal(ctx, entrySignal("SBIN", model.Long, 245000, bars[68].TS))
	if p.ses.OpenCount() != 1 {
		t.Fatal("expected position to open before the deadline")
	}
	p.feed(ctx, bars[69:]) // TCS bars carry the clock past 15:20

	if p.ses.OpenCount() != 0 {
		t.Fatalf("expected zero open positions past square-off, got %d", p.ses.OpenCount())
	}
	deadline := time.Date(2026, 3, 2, 15, 20, 0, 0, markethours.IST)
	found := false
	for _, ev := range p.ses.Exits() {
		if ev.Position.Symbol != "SBIN" {
			continue
		}
		found = true
		if ev.Reason != model.ExitSquareOff {
			t.Errorf("expected SQUARE_OFF exit for the stale symbol, got %s", ev.Reason)
		}
		if ev.ExitTime.After(deadline) {
			t.Errorf("exit recorded at %s, after the %s deadline", ev.ExitTime, deadline)
		}
	}
	if !found {
		t.Fatal("expected an exit for the symbol whose bars stopped")
	}
}

func TestEngine_CountsWarmupRejections(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	// Period 3 needs 6 bars before Ready; every bar before that is a
	// warmup rejection.
	p.feed(ctx, randomBars(1, "SBIN", 5))

	stats := p.eng.Stats()
	if stats.BarsProcessed != 5 {
		t.Errorf("expected 5 bars, got %d", stats.BarsProcessed)
	}
	if stats.Rejections[signal.RejectWarmup] != 5 {
		t.Errorf("expected 5 warmup rejections, got %d", stats.Rejections[signal.RejectWarmup])
	}
	if stats.SignalsEmitted != 0 {
		t.Errorf("expected no signals during warmup, got %d", stats.SignalsEmitted)
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

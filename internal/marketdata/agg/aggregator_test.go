package agg

import (
	"testing"
	"time"

	"adx-systemv1/internal/clock"
	"adx-systemv1/internal/model"
)

func tick(symbol string, ts time.Time, price, qty int64) model.Tick {
	return model.Tick{Symbol: symbol, Price: price, Qty: qty, TickTS: ts}
}

func TestAggregator_BucketRollover(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clk := clock.NewSim(base)
	a := New(300, clk)
	barCh := make(chan model.Bar, 4)

	// Three ticks inside one 5-minute bucket.
	a.processTick(tick("SBIN", base.Add(10*time.Second), 245000, 5), barCh)
	a.processTick(tick("SBIN", base.Add(60*time.Second), 246000, 3), barCh)
	a.processTick(tick("SBIN", base.Add(200*time.Second), 244000, 2), barCh)

	// First tick of the next bucket finalizes the previous bar.
	a.processTick(tick("SBIN", base.Add(310*time.Second), 245500, 1), barCh)

	select {
	case bar := <-barCh:
		if bar.Open != 245000 || bar.High != 246000 || bar.Low != 244000 || bar.Close != 244000 {
			t.Errorf("OHLC = %d/%d/%d/%d", bar.Open, bar.High, bar.Low, bar.Close)
		}
		if bar.Volume != 10 || bar.TicksCount != 3 {
			t.Errorf("volume=%d ticks=%d, want 10/3", bar.Volume, bar.TicksCount)
		}
		if !bar.TS.Equal(base) {
			t.Errorf("bar TS = %v, want bucket start %v", bar.TS, base)
		}
		if bar.Interval != 300 {
			t.Errorf("interval = %d, want 300", bar.Interval)
		}
	default:
		t.Fatal("expected a finalized bar on rollover")
	}
}

func TestAggregator_LateTickDropped(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clk := clock.NewSim(base)
	a := New(300, clk)
	barCh := make(chan model.Bar, 4)

	var dropped []string
	a.OnDroppedTick = func(symbol string) { dropped = append(dropped, symbol) }

	a.processTick(tick("SBIN", base.Add(310*time.Second), 245000, 5), barCh)
	// Tick from the already-closed bucket arrives late.
	a.processTick(tick("SBIN", base.Add(100*time.Second), 999999, 5), barCh)

	if len(dropped) != 1 || dropped[0] != "SBIN" {
		t.Fatalf("dropped = %v, want [SBIN]", dropped)
	}

	// Prior state remains intact: the open bar is untouched by the late tick.
	a.processTick(tick("SBIN", base.Add(610*time.Second), 245500, 1), barCh)
	bar := <-barCh
	if bar.High == 999999 {
		t.Error("late tick leaked into the open bar")
	}
	if bar.Volume != 5 || bar.TicksCount != 1 {
		t.Errorf("volume=%d ticks=%d, want 5/1", bar.Volume, bar.TicksCount)
	}
}

func TestAggregator_FlushOldUsesClock(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clk := clock.NewSim(base)
	a := New(300, clk)
	barCh := make(chan model.Bar, 4)

	a.processTick(tick("TCS", base.Add(5*time.Second), 350000, 2), barCh)

	// Bucket not yet elapsed: nothing flushes.
	a.flushOld(barCh)
	if len(barCh) != 0 {
		t.Fatal("flush before bucket end should emit nothing")
	}

	clk.Set(base.Add(301 * time.Second))
	a.flushOld(barCh)
	if len(barCh) != 1 {
		t.Fatal("elapsed bucket should flush")
	}
}

func TestAggregator_PerSymbolBars(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clk := clock.NewSim(base)
	a := New(300, clk)
	barCh := make(chan model.Bar, 4)

	a.processTick(tick("SBIN", base.Add(time.Second), 245000, 1), barCh)
	a.processTick(tick("TCS", base.Add(2*time.Second), 350000, 1), barCh)
	a.flushAll(barCh)

	seen := map[string]bool{}
	for len(barCh) > 0 {
		bar := <-barCh
		seen[bar.Symbol] = true
	}
	if !seen["SBIN"] || !seen["TCS"] {
		t.Errorf("seen = %v, want both symbols", seen)
	}
}

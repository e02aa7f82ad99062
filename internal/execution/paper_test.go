package execution

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"adx-systemv1/internal/clock"
)

func TestPaperExecutor_SlippageDirection(t *testing.T) {
	clk := clock.NewSim(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	p := NewPaperExecutor(clk, 10) // 0.10%

	buy, err := p.Execute(context.Background(), Order{
		Symbol: "SBIN", Side: SideBuy, Kind: KindEntry, Qty: 10, Price: 100000,
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if buy.FillPrice != 100100 {
		t.Errorf("buy fill = %d, want 100100", buy.FillPrice)
	}

	sell, err := p.Execute(context.Background(), Order{
		Symbol: "SBIN", Side: SideSell, Kind: KindExit, Qty: 10, Price: 100000,
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if sell.FillPrice != 99900 {
		t.Errorf("sell fill = %d, want 99900", sell.FillPrice)
	}
	if !sell.FilledAt.Equal(clk.Now()) {
		t.Error("fill timestamp should come from the injected clock")
	}
	if got := len(p.Fills()); got != 2 {
		t.Errorf("fills = %d, want 2", got)
	}
}

func TestPaperExecutor_RejectsInvalidOrders(t *testing.T) {
	clk := clock.NewSim(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	p := NewPaperExecutor(clk, 0)

	if _, err := p.Execute(context.Background(), Order{Symbol: "SBIN", Side: SideBuy, Qty: 0, Price: 100}); err == nil {
		t.Error("zero qty should be rejected")
	}
	if _, err := p.Execute(context.Background(), Order{Symbol: "SBIN", Side: SideBuy, Qty: 1, Price: 0}); err == nil {
		t.Error("zero price should be rejected")
	}
	if got := len(p.Fills()); got != 0 {
		t.Errorf("rejected orders must not record fills, got %d", got)
	}
}

func TestJournal_RoundTrip(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	defer j.Close()

	fill := Fill{
		OrderID: "PAPER-1",
		Order: Order{
			Symbol: "SBIN", Side: SideSell, Kind: KindExit,
			Qty: 40, Price: 237500, Reason: "TRAILING_STOP",
		},
		FillPrice: 237500,
		FilledAt:  time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC),
	}
	if err := j.RecordFill(fill); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}

	trades, err := j.GetTrades(10)
	if err != nil {
		t.Fatalf("GetTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	got := trades[0]
	if got.Symbol != "SBIN" || got.Kind != "EXIT" || got.Qty != 40 || got.Price != 237500 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Reason != "TRAILING_STOP" {
		t.Errorf("reason = %q, want TRAILING_STOP", got.Reason)
	}
}

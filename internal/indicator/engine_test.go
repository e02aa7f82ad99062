package indicator

import (
	"testing"
)

func TestEngine_PerSymbolIsolation(t *testing.T) {
	e := NewEngine(3)

	rising := risingBars("SBIN", 10)
	for _, bar := range rising {
		e.Process(bar)
	}

	// A brand-new symbol starts cold regardless of SBIN's progress.
	fresh := risingBars("TCS", 1)
	res := e.Process(fresh[0])
	if res.Symbol != "TCS" {
		t.Fatalf("Result.Symbol = %q, want TCS", res.Symbol)
	}
	if res.Values.DIReady || res.Values.Ready {
		t.Errorf("first TCS bar: DIReady=%v Ready=%v, want cold start", res.Values.DIReady, res.Values.Ready)
	}

	sbin, ok := e.Peek("SBIN")
	if !ok {
		t.Fatal("Peek(SBIN) should find state")
	}
	if !sbin.Ready {
		t.Error("SBIN should be Ready after 10 bars with period 3")
	}
	if _, ok := e.Peek("INFY"); ok {
		t.Error("Peek on unseen symbol should report false")
	}
}

func TestEngine_SnapshotRoundTrip(t *testing.T) {
	const period = 3
	e := NewEngine(period)

	bars := risingBars("SBIN", 12)
	split := 7
	for _, bar := range bars[:split] {
		e.Process(bar)
	}

	data, err := e.Snapshot().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}
	restored := RestoreEngine(period, snap)

	// Feeding the remaining bars to both engines must stay bit-identical.
	for _, bar := range bars[split:] {
		want := e.Process(bar)
		got := restored.Process(bar)
		if got != want {
			t.Fatalf("restored engine diverged at %s: %+v vs %+v", bar.TS, got, want)
		}
	}
}

func TestEngine_RestoreSkipsPeriodMismatch(t *testing.T) {
	e := NewEngine(3)
	for _, bar := range risingBars("SBIN", 8) {
		e.Process(bar)
	}

	restored := RestoreEngine(14, e.Snapshot())
	if _, ok := restored.Peek("SBIN"); ok {
		t.Error("snapshot with different period should cold-start the symbol")
	}
}
